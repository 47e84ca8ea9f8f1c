package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
	"github.com/go-chi/chi/v5"
)

type TelephonyEndpoints struct {
	trunks   *repository.TrunkRepository
	calls    *repository.CallRepository
	trunkSvc *SipTrunkService
	callSvc  *CallService
	auth     *AuthService
}

type TrunkRequest struct {
	Name                string            `json:"name" validate:"required"`
	Description         string            `json:"description"`
	Provider            string            `json:"provider" validate:"required"`
	SipDomain           string            `json:"sip_domain" validate:"required"`
	SipUsername         string            `json:"sip_username" validate:"required"`
	SipPassword         string            `json:"sip_password"`
	SipProxy            string            `json:"sip_proxy"`
	SipPort             int               `json:"sip_port"`
	Transport           string            `json:"transport"`
	AuthUsername        string            `json:"auth_username"`
	AuthPassword        string            `json:"auth_password"`
	Direction           string            `json:"direction"`
	PhoneNumbers        models.StringList `json:"phone_numbers"`
	MaxConcurrentCalls  int               `json:"max_concurrent_calls"`
	CodecPreferences    models.StringList `json:"codec_preferences"`
	DTMFMode            string            `json:"dtmf_mode"`
	HealthCheckEnabled  *bool             `json:"health_check_enabled"`
	HealthCheckInterval int               `json:"health_check_interval_seconds"`
	CostPerMinute       float64           `json:"cost_per_minute"`
	MonthlyCost         float64           `json:"monthly_cost"`
	CallerIDName        string            `json:"caller_id_name"`
	CallerIDNumber      string            `json:"caller_id_number"`
	FailoverTrunkID     *string           `json:"failover_trunk_id"`
	Priority            int               `json:"priority"`
	AdvancedConfig      models.JSONMap    `json:"advanced_config"`
}

type CreateCallRequest struct {
	// Dialing a new outbound call
	ToNumber       string         `json:"to_number"`
	FromNumber     string         `json:"from_number"`
	AgentID        *string        `json:"agent_id"`
	ConversationID *string        `json:"conversation_id"`
	TrunkID        string         `json:"trunk_id"`
	Metadata       models.JSONMap `json:"metadata"`

	// Logging a call established elsewhere (call_id present)
	CallID         string     `json:"call_id"`
	Direction      string     `json:"direction"`
	Status         string     `json:"status"`
	StartedAt      *time.Time `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
	ProviderCallID *string    `json:"provider_call_id"`
	RemoteIP       string     `json:"remote_ip"`
}

type UpdateCallRequest struct {
	Status       *string        `json:"status"`
	AnsweredAt   *time.Time     `json:"answered_at"`
	EndedAt      *time.Time     `json:"ended_at"`
	HangupCause  *string        `json:"hangup_cause"`
	QualityScore *float64       `json:"quality_score"`
	CodecUsed    *string        `json:"codec_used"`
	RemoteIP     *string        `json:"remote_ip"`
	Metadata     models.JSONMap `json:"metadata"`
}

func NewTelephonyEndpoints(trunks *repository.TrunkRepository, calls *repository.CallRepository, trunkSvc *SipTrunkService, callSvc *CallService, auth *AuthService) *TelephonyEndpoints {
	return &TelephonyEndpoints{
		trunks:   trunks,
		calls:    calls,
		trunkSvc: trunkSvc,
		callSvc:  callSvc,
		auth:     auth,
	}
}

func (e *TelephonyEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/telephony", func(r chi.Router) {
		r.Route("/trunks", func(r chi.Router) {
			r.Post("/", e.CreateTrunkHandler)
			r.Get("/", e.GetTrunksHandler)
			r.Get("/{id}", e.GetTrunkHandler)
			r.Put("/{id}", e.UpdateTrunkHandler)
			r.Delete("/{id}", e.DeleteTrunkHandler)
			r.Post("/{id}/health-check", e.HealthCheckHandler)
			r.Get("/{id}/stats", e.TrunkStatsHandler)
		})
		r.Get("/dashboard", e.DashboardHandler)
		r.Route("/calls", func(r chi.Router) {
			r.Post("/", e.CreateCallHandler)
			r.Get("/", e.GetCallsHandler)
			r.Put("/{call_id}", e.UpdateCallHandler)
			r.Post("/{call_id}/hangup", e.HangupCallHandler)
		})
		r.Post("/stream-token", e.StreamTokenHandler)
	})
}

// RegisterWebhookRoutes mounts the provider callback endpoints. These
// run outside API-key auth: providers sign requests their own way.
func (e *TelephonyEndpoints) RegisterWebhookRoutes(r chi.Router) {
	r.Route("/telephony/webhooks", func(r chi.Router) {
		r.Post("/twilio", e.TwilioWebhookHandler)
		r.Post("/twilio/status", e.TwilioWebhookHandler)
		r.Post("/telnyx", e.TelnyxWebhookHandler)
	})
}

func validTrunkProvider(provider string) bool {
	switch provider {
	case models.ProviderTwilio, models.ProviderTelnyx, models.ProviderBandwidth, models.ProviderVonage, models.ProviderCustom:
		return true
	}
	return false
}

func (e *TelephonyEndpoints) CreateTrunkHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req TrunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Provider == "" || req.SipDomain == "" || req.SipUsername == "" || req.SipPassword == "" {
		http.Error(w, "Name, provider, SIP domain, username and password are required", http.StatusBadRequest)
		return
	}
	if !validTrunkProvider(req.Provider) {
		http.Error(w, "Invalid provider", http.StatusBadRequest)
		return
	}
	if req.Direction != "" && req.Direction != models.DirectionInbound && req.Direction != models.DirectionOutbound && req.Direction != models.DirectionBidirectional {
		http.Error(w, "Invalid direction", http.StatusBadRequest)
		return
	}

	trunk := models.SipTrunk{
		Name:                req.Name,
		Description:         req.Description,
		Provider:            req.Provider,
		SipDomain:           req.SipDomain,
		SipUsername:         req.SipUsername,
		SipPassword:         req.SipPassword,
		SipProxy:            req.SipProxy,
		SipPort:             req.SipPort,
		Transport:           req.Transport,
		AuthUsername:        req.AuthUsername,
		AuthPassword:        req.AuthPassword,
		Direction:           req.Direction,
		PhoneNumbers:        req.PhoneNumbers,
		MaxConcurrentCalls:  req.MaxConcurrentCalls,
		CodecPreferences:    req.CodecPreferences,
		DTMFMode:            req.DTMFMode,
		HealthCheckEnabled:  true,
		HealthCheckInterval: req.HealthCheckInterval,
		CostPerMinute:       req.CostPerMinute,
		MonthlyCost:         req.MonthlyCost,
		CallerIDName:        req.CallerIDName,
		CallerIDNumber:      req.CallerIDNumber,
		FailoverTrunkID:     req.FailoverTrunkID,
		Priority:            req.Priority,
		AdvancedConfig:      req.AdvancedConfig,
	}
	if req.HealthCheckEnabled != nil {
		trunk.HealthCheckEnabled = *req.HealthCheckEnabled
	}

	if err := e.trunkSvc.CreateTrunk(r.Context(), user, &trunk); err != nil {
		if errors.Is(err, ErrTrunkLimitReached) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		slog.Error("Failed to create trunk", "error", err, "account_id", user.AccountID)
		http.Error(w, "Failed to create trunk", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"trunk":   trunk,
		"message": "Trunk created successfully",
	})
}

func (e *TelephonyEndpoints) GetTrunksHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	trunks, err := e.trunks.GetTrunks(r.Context(), user.AccountID)
	if err != nil {
		http.Error(w, "Failed to get trunks", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"trunks": trunks,
		"count":  len(trunks),
	})
}

func (e *TelephonyEndpoints) GetTrunkHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	trunkID := chi.URLParam(r, "id")
	trunk, err := e.trunks.GetTrunkByID(r.Context(), trunkID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to get trunk", http.StatusInternalServerError)
		return
	}
	if trunk == nil {
		http.Error(w, "Trunk not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"trunk": trunk,
	})
}

func (e *TelephonyEndpoints) UpdateTrunkHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	trunkID := chi.URLParam(r, "id")
	trunk, err := e.trunks.GetTrunkByID(r.Context(), trunkID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to update trunk", http.StatusInternalServerError)
		return
	}
	if trunk == nil {
		http.Error(w, "Trunk not found", http.StatusNotFound)
		return
	}

	var req TrunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Credential or provider changes force a re-probe.
	reinitialize := false
	if req.Provider != "" && req.Provider != trunk.Provider {
		if !validTrunkProvider(req.Provider) {
			http.Error(w, "Invalid provider", http.StatusBadRequest)
			return
		}
		trunk.Provider = req.Provider
		reinitialize = true
	}
	if req.SipDomain != "" && req.SipDomain != trunk.SipDomain {
		trunk.SipDomain = req.SipDomain
		reinitialize = true
	}
	if req.SipUsername != "" && req.SipUsername != trunk.SipUsername {
		trunk.SipUsername = req.SipUsername
		reinitialize = true
	}
	if req.SipPassword != "" {
		trunk.SipPassword = req.SipPassword
		reinitialize = true
	}
	if req.AuthPassword != "" {
		trunk.AuthPassword = req.AuthPassword
	}

	if req.Name != "" {
		trunk.Name = req.Name
	}
	if req.Description != "" {
		trunk.Description = req.Description
	}
	if req.SipProxy != "" {
		trunk.SipProxy = req.SipProxy
	}
	if req.SipPort > 0 {
		trunk.SipPort = req.SipPort
	}
	if req.Transport != "" {
		trunk.Transport = req.Transport
	}
	if req.AuthUsername != "" {
		trunk.AuthUsername = req.AuthUsername
	}
	if req.Direction != "" {
		switch req.Direction {
		case models.DirectionInbound, models.DirectionOutbound, models.DirectionBidirectional:
			trunk.Direction = req.Direction
		default:
			http.Error(w, "Invalid direction", http.StatusBadRequest)
			return
		}
	}
	if req.PhoneNumbers != nil {
		trunk.PhoneNumbers = req.PhoneNumbers
	}
	if req.MaxConcurrentCalls > 0 {
		trunk.MaxConcurrentCalls = req.MaxConcurrentCalls
	}
	if req.CodecPreferences != nil {
		trunk.CodecPreferences = req.CodecPreferences
	}
	if req.DTMFMode != "" {
		trunk.DTMFMode = req.DTMFMode
	}
	if req.HealthCheckEnabled != nil {
		trunk.HealthCheckEnabled = *req.HealthCheckEnabled
	}
	if req.HealthCheckInterval > 0 {
		trunk.HealthCheckInterval = req.HealthCheckInterval
	}
	if req.CostPerMinute > 0 {
		trunk.CostPerMinute = req.CostPerMinute
	}
	if req.MonthlyCost > 0 {
		trunk.MonthlyCost = req.MonthlyCost
	}
	if req.CallerIDName != "" {
		trunk.CallerIDName = req.CallerIDName
	}
	if req.CallerIDNumber != "" {
		trunk.CallerIDNumber = req.CallerIDNumber
	}
	if req.FailoverTrunkID != nil {
		trunk.FailoverTrunkID = req.FailoverTrunkID
	}
	if req.Priority > 0 {
		trunk.Priority = req.Priority
	}
	if req.AdvancedConfig != nil {
		trunk.AdvancedConfig = req.AdvancedConfig
	}

	if err := e.trunkSvc.UpdateTrunk(r.Context(), trunk, reinitialize); err != nil {
		slog.Error("Failed to update trunk", "error", err, "trunk_id", trunkID)
		http.Error(w, "Failed to update trunk", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"trunk":   trunk,
		"message": "Trunk updated successfully",
	})
}

func (e *TelephonyEndpoints) DeleteTrunkHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	trunkID := chi.URLParam(r, "id")
	if err := e.trunkSvc.DeleteTrunk(r.Context(), trunkID, user.AccountID); err != nil {
		switch {
		case errors.Is(err, ErrTrunkNotFound):
			http.Error(w, "Trunk not found", http.StatusNotFound)
		case errors.Is(err, ErrTrunkHasActiveCalls):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			slog.Error("Failed to delete trunk", "error", err, "trunk_id", trunkID)
			http.Error(w, "Failed to delete trunk", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Trunk deleted successfully",
	})
}

func (e *TelephonyEndpoints) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	trunkID := chi.URLParam(r, "id")
	trunk, err := e.trunks.GetTrunkByID(r.Context(), trunkID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to check trunk health", http.StatusInternalServerError)
		return
	}
	if trunk == nil {
		http.Error(w, "Trunk not found", http.StatusNotFound)
		return
	}

	if err := e.trunkSvc.CheckTrunkHealth(r.Context(), trunk); err != nil {
		slog.Error("Failed to persist health check", "error", err, "trunk_id", trunkID)
		http.Error(w, "Failed to check trunk health", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"trunk_id":             trunk.ID,
		"status":               trunk.Status,
		"health_status":        trunk.HealthStatus,
		"latency_ms":           trunk.LatencyMs,
		"consecutive_failures": trunk.ConsecutiveFailures,
		"checked_at":           trunk.LastHealthCheckAt,
	})
}

func (e *TelephonyEndpoints) TrunkStatsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	trunkID := chi.URLParam(r, "id")
	periodDays, _ := strconv.Atoi(r.URL.Query().Get("period_days"))

	stats, err := e.trunkSvc.TrunkStats(r.Context(), trunkID, user.AccountID, periodDays)
	if err != nil {
		if errors.Is(err, ErrTrunkNotFound) {
			http.Error(w, "Trunk not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get trunk stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (e *TelephonyEndpoints) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	dashboard, err := e.trunkSvc.Dashboard(r.Context(), user.AccountID)
	if err != nil {
		slog.Error("Failed to build dashboard", "error", err, "account_id", user.AccountID)
		http.Error(w, "Failed to get dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dashboard)
}

func (e *TelephonyEndpoints) CreateCallHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req CreateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// A call_id means the call was established elsewhere and is being
	// recorded; otherwise we dial it ourselves.
	if req.CallID != "" {
		if req.TrunkID == "" {
			http.Error(w, "Trunk ID is required", http.StatusBadRequest)
			return
		}
		call := models.CallLog{
			TrunkID:        req.TrunkID,
			ConversationID: req.ConversationID,
			AgentID:        req.AgentID,
			CallID:         req.CallID,
			Direction:      req.Direction,
			FromNumber:     req.FromNumber,
			ToNumber:       req.ToNumber,
			Status:         req.Status,
			EndedAt:        req.EndedAt,
			ProviderCallID: req.ProviderCallID,
			RemoteIP:       req.RemoteIP,
			Metadata:       req.Metadata,
		}
		if req.StartedAt != nil {
			call.StartedAt = *req.StartedAt
		}
		if err := e.callSvc.LogCall(r.Context(), user, &call); err != nil {
			if errors.Is(err, ErrTrunkNotFound) {
				http.Error(w, "Trunk not found", http.StatusNotFound)
				return
			}
			slog.Error("Failed to log call", "error", err, "call_id", req.CallID)
			http.Error(w, "Failed to log call", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"call":    call,
			"message": "Call logged",
		})
		return
	}

	if req.ToNumber == "" {
		http.Error(w, "Destination number is required", http.StatusBadRequest)
		return
	}

	call, err := e.callSvc.PlaceCall(r.Context(), user, PlaceCallRequest{
		FromNumber:     req.FromNumber,
		ToNumber:       req.ToNumber,
		AgentID:        req.AgentID,
		ConversationID: req.ConversationID,
		TrunkID:        req.TrunkID,
		Metadata:       req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCallLimitReached):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, ErrNoTrunkAvailable):
			http.Error(w, "No available trunks", http.StatusServiceUnavailable)
		case errors.Is(err, ErrDialFailed):
			http.Error(w, "Call could not be placed", http.StatusBadGateway)
		default:
			slog.Error("Failed to place call", "error", err, "account_id", user.AccountID)
			http.Error(w, "Failed to place call", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"call":    call,
		"message": "Call placed",
	})
}

func (e *TelephonyEndpoints) GetCallsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter := repository.CallFilter{
		TrunkID:   q.Get("trunk_id"),
		Status:    q.Get("status"),
		Direction: q.Get("direction"),
		Limit:     limit,
		Offset:    offset,
	}

	calls, err := e.calls.GetCallLogs(r.Context(), user.AccountID, filter)
	if err != nil {
		http.Error(w, "Failed to get calls", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"calls": calls,
		"count": len(calls),
	})
}

func (e *TelephonyEndpoints) UpdateCallHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	callID := chi.URLParam(r, "call_id")
	var req UpdateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status != nil {
		switch *req.Status {
		case models.CallInitiated, models.CallRinging, models.CallAnswered,
			models.CallCompleted, models.CallFailed, models.CallBusy,
			models.CallNoAnswer, models.CallCancelled:
		default:
			http.Error(w, "Invalid call status", http.StatusBadRequest)
			return
		}
	}

	call, err := e.callSvc.UpdateCall(r.Context(), callID, user.AccountID, CallUpdate{
		Status:       req.Status,
		AnsweredAt:   req.AnsweredAt,
		EndedAt:      req.EndedAt,
		HangupCause:  req.HangupCause,
		QualityScore: req.QualityScore,
		CodecUsed:    req.CodecUsed,
		RemoteIP:     req.RemoteIP,
		Metadata:     req.Metadata,
	})
	if err != nil {
		if errors.Is(err, ErrCallNotFound) {
			http.Error(w, "Call not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to update call", "error", err, "call_id", callID)
		http.Error(w, "Failed to update call", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"call":    call,
		"message": "Call updated",
	})
}

func (e *TelephonyEndpoints) HangupCallHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	callID := chi.URLParam(r, "call_id")
	call, err := e.callSvc.HangupCall(r.Context(), callID, user.AccountID)
	if err != nil {
		if errors.Is(err, ErrCallNotFound) {
			http.Error(w, "Call not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to hang up call", "error", err, "call_id", callID)
		http.Error(w, "Failed to hang up call", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"call":    call,
		"message": "Call ended",
	})
}

func (e *TelephonyEndpoints) StreamTokenHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	token, err := e.auth.IssueStreamToken(user)
	if err != nil {
		slog.Error("Failed to issue stream token", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to issue stream token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":      token,
		"expires_in": int(e.auth.streamExpiry.Seconds()),
	})
}

func (e *TelephonyEndpoints) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		return
	}

	callSid := r.PostFormValue("CallSid")
	callStatus := r.PostFormValue("CallStatus")
	status, known := MapTwilioStatus(callStatus)
	if callSid == "" || !known {
		slog.Warn("Ignoring Twilio webhook", "call_sid", callSid, "call_status", callStatus)
		writeWebhookAck(w)
		return
	}

	if err := e.callSvc.HandleProviderStatus(r.Context(), callSid, status, nil); err != nil {
		slog.Error("Failed to process Twilio webhook", "error", err, "call_sid", callSid)
		http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}
	writeWebhookAck(w)
}

func (e *TelephonyEndpoints) TelnyxWebhookHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Data struct {
			EventType string `json:"event_type"`
			Payload   struct {
				CallControlID string  `json:"call_control_id"`
				HangupCause   *string `json:"hangup_cause"`
			} `json:"payload"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		return
	}

	status, known := MapTelnyxEvent(payload.Data.EventType)
	if payload.Data.Payload.CallControlID == "" || !known {
		slog.Warn("Ignoring Telnyx webhook", "event_type", payload.Data.EventType)
		writeWebhookAck(w)
		return
	}

	var cause *string
	if models.IsTerminalStatus(status) {
		cause = payload.Data.Payload.HangupCause
	}
	if err := e.callSvc.HandleProviderStatus(r.Context(), payload.Data.Payload.CallControlID, status, cause); err != nil {
		slog.Error("Failed to process Telnyx webhook", "error", err, "call_control_id", payload.Data.Payload.CallControlID)
		http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}
	writeWebhookAck(w)
}

func writeWebhookAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "received"})
}
