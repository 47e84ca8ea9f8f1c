package services

import (
	"testing"

	"github.com/airies-ai/backend/models"
)

func TestNewTelephonyProvider(t *testing.T) {
	cfg := &TelephonyConfig{
		TwilioBaseURL: "https://api.twilio.com/2010-04-01",
		TelnyxBaseURL: "https://api.telnyx.com/v2",
	}

	tests := []struct {
		name     string
		trunk    models.SipTrunk
		expected string
	}{
		{
			name:     "twilio trunk",
			trunk:    models.SipTrunk{Provider: models.ProviderTwilio, SipUsername: "AC1", SipPassword: "tok"},
			expected: models.ProviderTwilio,
		},
		{
			name: "telnyx trunk",
			trunk: models.SipTrunk{
				Provider:       models.ProviderTelnyx,
				SipPassword:    "key",
				AdvancedConfig: models.JSONMap{"connection_id": "conn-1"},
			},
			expected: models.ProviderTelnyx,
		},
		{
			name:     "custom trunk",
			trunk:    models.SipTrunk{Provider: models.ProviderCustom, SipDomain: "sip.example.com"},
			expected: models.ProviderCustom,
		},
		{
			name:     "bandwidth falls back to direct sip",
			trunk:    models.SipTrunk{Provider: models.ProviderBandwidth, SipDomain: "sip.bw.com"},
			expected: models.ProviderCustom,
		},
		{
			name:     "vonage falls back to direct sip",
			trunk:    models.SipTrunk{Provider: models.ProviderVonage, SipDomain: "sip.vonage.com"},
			expected: models.ProviderCustom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewTelephonyProvider(&tt.trunk, cfg)
			if provider.Name() != tt.expected {
				t.Errorf("NewTelephonyProvider(%s).Name() = %q, expected %q", tt.trunk.Provider, provider.Name(), tt.expected)
			}
		})
	}
}

func TestNewTelephonyProviderTwilioCredentials(t *testing.T) {
	tests := []struct {
		name      string
		trunk     models.SipTrunk
		cfg       TelephonyConfig
		wantSID   string
		wantToken string
	}{
		{
			name: "advanced config wins over service config",
			trunk: models.SipTrunk{
				Provider:       models.ProviderTwilio,
				SipUsername:    "sip-user",
				SipPassword:    "sip-pass",
				AdvancedConfig: models.JSONMap{"account_sid": "ACtrunk", "auth_token": "tok-trunk"},
			},
			cfg:       TelephonyConfig{TwilioAccountSID: "ACglobal", TwilioAuthToken: "tok-global"},
			wantSID:   "ACtrunk",
			wantToken: "tok-trunk",
		},
		{
			name: "service config fallback",
			trunk: models.SipTrunk{
				Provider:    models.ProviderTwilio,
				SipUsername: "sip-user",
				SipPassword: "sip-pass",
			},
			cfg:       TelephonyConfig{TwilioAccountSID: "ACglobal", TwilioAuthToken: "tok-global"},
			wantSID:   "ACglobal",
			wantToken: "tok-global",
		},
		{
			name: "partial advanced config filled from service config",
			trunk: models.SipTrunk{
				Provider:       models.ProviderTwilio,
				AdvancedConfig: models.JSONMap{"account_sid": "ACtrunk"},
			},
			cfg:       TelephonyConfig{TwilioAccountSID: "ACglobal", TwilioAuthToken: "tok-global"},
			wantSID:   "ACtrunk",
			wantToken: "tok-global",
		},
		{
			name: "sip credential pair when nothing else is set",
			trunk: models.SipTrunk{
				Provider:    models.ProviderTwilio,
				SipUsername: "AClegacy",
				SipPassword: "tok-legacy",
			},
			wantSID:   "AClegacy",
			wantToken: "tok-legacy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, ok := NewTelephonyProvider(&tt.trunk, &tt.cfg).(*TwilioProvider)
			if !ok {
				t.Fatal("expected a *TwilioProvider")
			}
			if provider.accountSID != tt.wantSID {
				t.Errorf("accountSID = %q, expected %q", provider.accountSID, tt.wantSID)
			}
			if provider.authToken != tt.wantToken {
				t.Errorf("authToken = %q, expected %q", provider.authToken, tt.wantToken)
			}
		})
	}
}

func TestNewTelephonyProviderTelnyxConnectionID(t *testing.T) {
	cfg := &TelephonyConfig{TelnyxBaseURL: "https://api.telnyx.com/v2"}
	trunk := models.SipTrunk{
		Provider:       models.ProviderTelnyx,
		SipPassword:    "key",
		AdvancedConfig: models.JSONMap{"connection_id": "conn-9"},
	}

	provider, ok := NewTelephonyProvider(&trunk, cfg).(*TelnyxProvider)
	if !ok {
		t.Fatal("expected a *TelnyxProvider")
	}
	if provider.connectionID != "conn-9" {
		t.Errorf("connectionID = %q, expected conn-9 from advanced config", provider.connectionID)
	}
}
