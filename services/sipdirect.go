package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/airies-ai/backend/models"
)

// DirectSipProvider covers trunks that point straight at a SIP endpoint.
// There is no SIP stack here: health is a transport reachability probe
// and call control is delegated to the far end, so dial and hangup only
// account for the call locally.
type DirectSipProvider struct {
	domain   string
	port     int
	username string
	dialer   net.Dialer
}

func NewDirectSipProvider(domain string, port int, username string) *DirectSipProvider {
	if port <= 0 {
		port = 5060
	}
	return &DirectSipProvider{
		domain:   domain,
		port:     port,
		username: username,
	}
}

func (d *DirectSipProvider) Name() string {
	return models.ProviderCustom
}

// HealthCheck probes the SIP endpoint for TCP reachability.
func (d *DirectSipProvider) HealthCheck(ctx context.Context) (*HealthResult, error) {
	if d.domain == "" || d.username == "" {
		return nil, fmt.Errorf("sip domain and username are required")
	}

	addr := net.JoinHostPort(d.domain, strconv.Itoa(d.port))
	start := time.Now()
	conn, err := d.dialer.DialContext(ctx, "tcp", addr)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		return &HealthResult{
			Healthy:   false,
			LatencyMs: latency,
			Detail:    fmt.Sprintf("endpoint %s unreachable: %v", addr, err),
		}, nil
	}
	conn.Close()

	return &HealthResult{
		Healthy:   true,
		LatencyMs: latency,
		Detail:    fmt.Sprintf("endpoint %s reachable", addr),
	}, nil
}

// Dial registers the call locally; signaling happens on the trunk itself.
func (d *DirectSipProvider) Dial(ctx context.Context, dial DialRequest) (*DialResult, error) {
	callID := fmt.Sprintf("custom_%d", time.Now().UnixNano())
	slog.Info("Direct SIP call registered", "provider_call_id", callID, "to", dial.ToNumber)
	return &DialResult{
		ProviderCallID: callID,
		Status:         models.CallInitiated,
	}, nil
}

// Hangup is local-only for direct SIP trunks.
func (d *DirectSipProvider) Hangup(ctx context.Context, providerCallID string) error {
	slog.Info("Direct SIP call released", "provider_call_id", providerCallID)
	return nil
}
