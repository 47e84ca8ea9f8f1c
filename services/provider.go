package services

import (
	"context"
	"time"

	"github.com/airies-ai/backend/models"
)

// HealthResult is the outcome of one provider probe. A transport failure
// is returned as an error instead; Healthy=false means the provider
// answered and reported the trunk out of service.
type HealthResult struct {
	Healthy   bool
	LatencyMs float64
	Detail    string
}

// DialRequest asks a provider to originate an outbound call.
type DialRequest struct {
	FromNumber string
	ToNumber   string
	WebhookURL string
}

// DialResult reports the provider-side identity of a placed call.
type DialResult struct {
	ProviderCallID string
	Status         string
}

// TelephonyProvider abstracts the carrier behind a SIP trunk.
type TelephonyProvider interface {
	Name() string
	HealthCheck(ctx context.Context) (*HealthResult, error)
	Dial(ctx context.Context, req DialRequest) (*DialResult, error)
	Hangup(ctx context.Context, providerCallID string) error
}

const providerTimeout = 30 * time.Second

// NewTelephonyProvider builds the adapter for a trunk. Credentials on the
// trunk must already be decrypted. Providers without a dedicated adapter
// fall back to the direct SIP one, which only needs the trunk's SIP
// endpoint config.
func NewTelephonyProvider(trunk *models.SipTrunk, cfg *TelephonyConfig) TelephonyProvider {
	switch trunk.Provider {
	case models.ProviderTwilio:
		accountSID, authToken := twilioCredentials(trunk, cfg)
		return NewTwilioProvider(accountSID, authToken, cfg.TwilioBaseURL)
	case models.ProviderTelnyx:
		connectionID, _ := trunk.AdvancedConfig["connection_id"].(string)
		return NewTelnyxProvider(trunk.SipPassword, connectionID, cfg.TelnyxBaseURL)
	default:
		return NewDirectSipProvider(trunk.SipDomain, trunk.SipPort, trunk.SipUsername)
	}
}

// twilioCredentials resolves the account SID and auth token for a Twilio
// trunk: per-trunk values in advanced_config win, then service-level
// config, then the trunk's SIP credential pair for trunks provisioned
// before advanced_config carried them.
func twilioCredentials(trunk *models.SipTrunk, cfg *TelephonyConfig) (string, string) {
	accountSID, _ := trunk.AdvancedConfig["account_sid"].(string)
	authToken, _ := trunk.AdvancedConfig["auth_token"].(string)
	if accountSID == "" {
		accountSID = cfg.TwilioAccountSID
	}
	if authToken == "" {
		authToken = cfg.TwilioAuthToken
	}
	if accountSID == "" && authToken == "" {
		return trunk.SipUsername, trunk.SipPassword
	}
	return accountSID, authToken
}
