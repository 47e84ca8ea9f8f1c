package services

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/airies-ai/backend/models"
)

func TestDirectSipHealthCheck(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	provider := NewDirectSipProvider(host, port, "sipuser")
	res, err := provider.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() error: %v", err)
	}
	if !res.Healthy {
		t.Errorf("HealthCheck().Healthy = false for a listening endpoint (detail: %s)", res.Detail)
	}
}

func TestDirectSipHealthCheckUnreachable(t *testing.T) {
	// Grab a port and close it so nothing is listening there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	listener.Close()

	provider := NewDirectSipProvider(host, port, "sipuser")
	res, err := provider.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() error: %v", err)
	}
	if res.Healthy {
		t.Error("HealthCheck().Healthy = true for a closed port, expected false")
	}
}

func TestDirectSipHealthCheckMissingConfig(t *testing.T) {
	provider := NewDirectSipProvider("", 5060, "")
	if _, err := provider.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() with no domain expected an error")
	}
}

func TestDirectSipDial(t *testing.T) {
	provider := NewDirectSipProvider("sip.example.com", 5060, "sipuser")
	res, err := provider.Dial(context.Background(), DialRequest{ToNumber: "+15551230002"})
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	if res.ProviderCallID == "" {
		t.Error("Dial() returned an empty provider call ID")
	}
	if res.Status != models.CallInitiated {
		t.Errorf("Dial().Status = %q, expected %q", res.Status, models.CallInitiated)
	}
	if err := provider.Hangup(context.Background(), res.ProviderCallID); err != nil {
		t.Errorf("Hangup() error: %v", err)
	}
}
