package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/airies-ai/backend/models"
)

// TwilioProvider drives trunks terminated on Twilio. Credentials come
// from the trunk's advanced_config or the service config, resolved by
// the provider factory.
type TwilioProvider struct {
	accountSID string
	authToken  string
	baseURL    string
	client     *http.Client
}

func NewTwilioProvider(accountSID, authToken, baseURL string) *TwilioProvider {
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    baseURL,
		client: &http.Client{
			Timeout: providerTimeout,
		},
	}
}

func (t *TwilioProvider) Name() string {
	return models.ProviderTwilio
}

// HealthCheck validates the account credentials and state.
func (t *TwilioProvider) HealthCheck(ctx context.Context) (*HealthResult, error) {
	if t.accountSID == "" || t.authToken == "" {
		return nil, fmt.Errorf("twilio credentials not configured")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)

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
		Status       string `json:"status"`
		FriendlyName string `json:"friendly_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to decode account response: %w", err)
	}

	return &HealthResult{
		Healthy:   account.Status == "active",
		LatencyMs: latency,
		Detail:    fmt.Sprintf("account %s: %s", account.FriendlyName, account.Status),
	}, nil
}

// Dial originates an outbound call through the account.
func (t *TwilioProvider) Dial(ctx context.Context, dial DialRequest) (*DialResult, error) {
	form := url.Values{}
	form.Set("From", dial.FromNumber)
	form.Set("To", dial.ToNumber)
	form.Set("Url", dial.WebhookURL)
	form.Set("Method", "POST")
	form.Set("StatusCallback", dial.WebhookURL+"/status")
	form.Set("StatusCallbackMethod", "POST")

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twilio call failed: %d - %s", resp.StatusCode, string(body))
	}

	var call struct {
		Sid    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		return nil, fmt.Errorf("failed to decode call response: %w", err)
	}

	slog.Info("Twilio call placed", "provider_call_id", call.Sid, "status", call.Status)
	return &DialResult{
		ProviderCallID: call.Sid,
		Status:         call.Status,
	}, nil
}

// Hangup completes an in-progress call.
func (t *TwilioProvider) Hangup(ctx context.Context, providerCallID string) error {
	form := url.Values{}
	form.Set("Status", "completed")

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", t.baseURL, t.accountSID, providerCallID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("twilio hangup failed: %d - %s", resp.StatusCode, string(body))
	}

	slog.Info("Twilio call hung up", "provider_call_id", providerCallID)
	return nil
}
