package services

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func TestCorsOrigins(t *testing.T) {
	tests := []struct {
		name     string
		allowed  string
		expected []string
	}{
		{"empty allows everything", "", []string{"*"}},
		{"whitespace only allows everything", "   ", []string{"*"}},
		{"single origin", "https://app.example.com", []string{"https://app.example.com"}},
		{"list with spaces", "https://app.example.com, https://admin.example.com", []string{"https://app.example.com", "https://admin.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := corsOrigins(tt.allowed); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("corsOrigins(%q) = %v, expected %v", tt.allowed, got, tt.expected)
			}
		})
	}
}

func TestCorsPreflight(t *testing.T) {
	server := &Server{config: &Config{
		WebSocket: WebSocketConfig{AllowedOrigins: "https://app.example.com"},
	}}
	router := server.SetupRoutes()

	req := httptest.NewRequest("OPTIONS", "/api/v1/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, expected the allowed origin", got)
	}

	req = httptest.NewRequest("OPTIONS", "/api/v1/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q for a disallowed origin, expected empty", got)
	}
}

func TestHealthHandlerReportsStreamClients(t *testing.T) {
	server := &Server{config: &Config{}}
	router := server.SetupRoutes()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	body := rec.Body.String()
	if want := `"stream_clients":0`; !strings.Contains(body, want) {
		t.Errorf("health body = %s, expected it to contain %s", body, want)
	}
}
