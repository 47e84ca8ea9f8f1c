package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTwilioHealthCheck(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		accountStatus string
		healthy       bool
	}{
		{"active account", http.StatusOK, "active", true},
		{"suspended account", http.StatusOK, "suspended", false},
		{"bad credentials", http.StatusUnauthorized, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/Accounts/AC123.json" {
					t.Errorf("path = %q, expected /Accounts/AC123.json", r.URL.Path)
				}
				sid, token, ok := r.BasicAuth()
				if !ok || sid != "AC123" || token != "token123" {
					t.Errorf("basic auth = (%q, %q, %v), expected account SID and token", sid, token, ok)
				}
				w.WriteHeader(tt.statusCode)
				if tt.statusCode == http.StatusOK {
					json.NewEncoder(w).Encode(map[string]string{
						"status":        tt.accountStatus,
						"friendly_name": "Test Account",
					})
				}
			}))
			defer srv.Close()

			provider := NewTwilioProvider("AC123", "token123", srv.URL)
			res, err := provider.HealthCheck(context.Background())
			if err != nil {
				t.Fatalf("HealthCheck() error: %v", err)
			}
			if res.Healthy != tt.healthy {
				t.Errorf("HealthCheck().Healthy = %v, expected %v (detail: %s)", res.Healthy, tt.healthy, res.Detail)
			}
		})
	}
}

func TestTwilioHealthCheckMissingCredentials(t *testing.T) {
	provider := NewTwilioProvider("", "", "http://localhost:1")
	if _, err := provider.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() with no credentials expected an error")
	}
}

func TestTwilioDial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC123/Calls.json" {
			t.Errorf("path = %q, expected /Accounts/AC123/Calls.json", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q, expected form encoding", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if from := r.PostFormValue("From"); from != "+15551230001" {
			t.Errorf("From = %q, expected +15551230001", from)
		}
		if to := r.PostFormValue("To"); to != "+15551230002" {
			t.Errorf("To = %q, expected +15551230002", to)
		}
		if cb := r.PostFormValue("StatusCallback"); !strings.HasSuffix(cb, "/status") {
			t.Errorf("StatusCallback = %q, expected status suffix", cb)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"sid": "CA999", "status": "queued"})
	}))
	defer srv.Close()

	provider := NewTwilioProvider("AC123", "token123", srv.URL)
	res, err := provider.Dial(context.Background(), DialRequest{
		FromNumber: "+15551230001",
		ToNumber:   "+15551230002",
		WebhookURL: "https://example.com/api/v1/telephony/webhooks/twilio",
	})
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	if res.ProviderCallID != "CA999" || res.Status != "queued" {
		t.Errorf("Dial() = %+v, expected sid CA999 status queued", res)
	}
}

func TestTwilioDialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "The 'To' number is not a valid phone number."}`))
	}))
	defer srv.Close()

	provider := NewTwilioProvider("AC123", "token123", srv.URL)
	_, err := provider.Dial(context.Background(), DialRequest{ToNumber: "bogus"})
	if err == nil {
		t.Fatal("Dial() expected an error for a rejected call")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("Dial() error %q should carry the status code", err)
	}
}

func TestTwilioHangup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC123/Calls/CA999.json" {
			t.Errorf("path = %q, expected the call resource", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if status := r.PostFormValue("Status"); status != "completed" {
			t.Errorf("Status = %q, expected completed", status)
		}
		json.NewEncoder(w).Encode(map[string]string{"sid": "CA999", "status": "completed"})
	}))
	defer srv.Close()

	provider := NewTwilioProvider("AC123", "token123", srv.URL)
	if err := provider.Hangup(context.Background(), "CA999"); err != nil {
		t.Errorf("Hangup() error: %v", err)
	}
}
