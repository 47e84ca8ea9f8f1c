package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelnyxHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account" {
			t.Errorf("path = %q, expected /account", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer KEY123" {
			t.Errorf("Authorization = %q, expected bearer key", auth)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "acct-1", "company_name": "Test Co"},
		})
	}))
	defer srv.Close()

	provider := NewTelnyxProvider("KEY123", "conn-1", srv.URL)
	res, err := provider.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() error: %v", err)
	}
	if !res.Healthy {
		t.Errorf("HealthCheck().Healthy = false, expected true (detail: %s)", res.Detail)
	}
}

func TestTelnyxHealthCheckUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	provider := NewTelnyxProvider("KEY123", "conn-1", srv.URL)
	res, err := provider.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() error: %v", err)
	}
	if res.Healthy {
		t.Error("HealthCheck().Healthy = true for a 401, expected false")
	}
}

func TestTelnyxHealthCheckMissingKey(t *testing.T) {
	provider := NewTelnyxProvider("", "", "http://localhost:1")
	if _, err := provider.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() with no API key expected an error")
	}
}

func TestTelnyxDial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calls" {
			t.Errorf("path = %q, expected /calls", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, expected application/json", ct)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["connection_id"] != "conn-1" {
			t.Errorf("connection_id = %q, expected conn-1", payload["connection_id"])
		}
		if payload["to"] != "+15551230002" || payload["from"] != "+15551230001" {
			t.Errorf("numbers = %q -> %q, expected test numbers", payload["from"], payload["to"])
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"call_control_id": "cc-42", "call_state": "ringing"},
		})
	}))
	defer srv.Close()

	provider := NewTelnyxProvider("KEY123", "conn-1", srv.URL)
	res, err := provider.Dial(context.Background(), DialRequest{
		FromNumber: "+15551230001",
		ToNumber:   "+15551230002",
		WebhookURL: "https://example.com/api/v1/telephony/webhooks/telnyx",
	})
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	if res.ProviderCallID != "cc-42" || res.Status != "ringing" {
		t.Errorf("Dial() = %+v, expected call_control_id cc-42 state ringing", res)
	}
}

func TestTelnyxDialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors": [{"detail": "invalid destination"}]}`))
	}))
	defer srv.Close()

	provider := NewTelnyxProvider("KEY123", "conn-1", srv.URL)
	_, err := provider.Dial(context.Background(), DialRequest{ToNumber: "bogus"})
	if err == nil {
		t.Fatal("Dial() expected an error for a rejected call")
	}
	if !strings.Contains(err.Error(), "422") {
		t.Errorf("Dial() error %q should carry the status code", err)
	}
}

func TestTelnyxHangup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calls/cc-42/actions/hangup" {
			t.Errorf("path = %q, expected the hangup action", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"result": "ok"}})
	}))
	defer srv.Close()

	provider := NewTelnyxProvider("KEY123", "conn-1", srv.URL)
	if err := provider.Hangup(context.Background(), "cc-42"); err != nil {
		t.Errorf("Hangup() error: %v", err)
	}
}
