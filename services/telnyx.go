package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/airies-ai/backend/models"
)

// TelnyxProvider drives trunks terminated on Telnyx. The trunk's SIP
// password carries the API key; the Call Control connection ID lives in
// the trunk's advanced config.
type TelnyxProvider struct {
	apiKey       string
	connectionID string
	baseURL      string
	client       *http.Client
}

func NewTelnyxProvider(apiKey, connectionID, baseURL string) *TelnyxProvider {
	return &TelnyxProvider{
		apiKey:       apiKey,
		connectionID: connectionID,
		baseURL:      baseURL,
		client: &http.Client{
			Timeout: providerTimeout,
		},
	}
}

func (t *TelnyxProvider) Name() string {
	return models.ProviderTelnyx
}

// HealthCheck validates the API key against the account endpoint.
func (t *TelnyxProvider) HealthCheck(ctx context.Context) (*HealthResult, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("telnyx API key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", t.baseURL+"/account", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	latency := float64(time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return &HealthResult{
			Healthy:   false,
			LatencyMs: latency,
			Detail:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}, nil
	}

	var account struct {
		Data struct {
			ID          string `json:"id"`
			CompanyName string `json:"company_name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to decode account response: %w", err)
	}

	return &HealthResult{
		Healthy:   true,
		LatencyMs: latency,
		Detail:    fmt.Sprintf("account %s", account.Data.CompanyName),
	}, nil
}

// Dial originates an outbound call through the Call Control connection.
func (t *TelnyxProvider) Dial(ctx context.Context, dial DialRequest) (*DialResult, error) {
	payload := map[string]string{
		"connection_id":      t.connectionID,
		"to":                 dial.ToNumber,
		"from":               dial.FromNumber,
		"webhook_url":        dial.WebhookURL,
		"webhook_url_method": "POST",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+"/calls", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("telnyx call failed: %d - %s", resp.StatusCode, string(body))
	}

	var call struct {
		Data struct {
			CallControlID string `json:"call_control_id"`
			CallState     string `json:"call_state"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		return nil, fmt.Errorf("failed to decode call response: %w", err)
	}

	slog.Info("Telnyx call placed", "provider_call_id", call.Data.CallControlID, "status", call.Data.CallState)
	return &DialResult{
		ProviderCallID: call.Data.CallControlID,
		Status:         call.Data.CallState,
	}, nil
}

// Hangup tears down an in-progress call.
func (t *TelnyxProvider) Hangup(ctx context.Context, providerCallID string) error {
	endpoint := fmt.Sprintf("%s/calls/%s/actions/hangup", t.baseURL, providerCallID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telnyx hangup failed: %d - %s", resp.StatusCode, string(body))
	}

	slog.Info("Telnyx call hung up", "provider_call_id", providerCallID)
	return nil
}
