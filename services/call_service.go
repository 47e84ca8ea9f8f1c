package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/airies-ai/backend/events"
	"github.com/airies-ai/backend/metrics"
	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
	"github.com/google/uuid"
)

var (
	ErrCallNotFound     = errors.New("call not found")
	ErrCallLimitReached = errors.New("concurrent call limit reached")
	ErrNoTrunkAvailable = errors.New("no trunk available")
	ErrDialFailed       = errors.New("call could not be placed")
)

// CallService places and tracks calls: trunk selection with failover,
// capacity reservation, provider dialing and end-of-call accounting.
type CallService struct {
	trunks    *repository.TrunkRepository
	calls     *repository.CallRepository
	trunkSvc  *SipTrunkService
	usage     *UsageService
	publisher events.Publisher
	telephony *TelephonyConfig
}

func NewCallService(trunks *repository.TrunkRepository, calls *repository.CallRepository, trunkSvc *SipTrunkService, usage *UsageService, publisher events.Publisher, telephony *TelephonyConfig) *CallService {
	return &CallService{
		trunks:    trunks,
		calls:     calls,
		trunkSvc:  trunkSvc,
		usage:     usage,
		publisher: publisher,
		telephony: telephony,
	}
}

// PlaceCallRequest describes an outbound call to place.
type PlaceCallRequest struct {
	FromNumber     string
	ToNumber       string
	AgentID        *string
	ConversationID *string
	TrunkID        string // pin the call to one trunk instead of selecting
	Metadata       models.JSONMap
}

// PlaceCall dials an outbound call. Trunks are tried in selection order;
// when a dial fails, the trunk's configured failover is tried next. The
// account-wide concurrent call limit for the user's tier applies before
// any trunk is touched.
func (s *CallService) PlaceCall(ctx context.Context, user *models.User, req PlaceCallRequest) (*models.CallLog, error) {
	active, err := s.trunks.SumActiveCalls(ctx, user.AccountID)
	if err != nil {
		return nil, err
	}
	limit := models.MaxConcurrentCallsForTier(user.Tier)
	if active >= int64(limit) {
		return nil, fmt.Errorf("%w: %s tier allows %d", ErrCallLimitReached, user.Tier, limit)
	}

	candidates, err := s.trunks.SelectCandidates(ctx, user.AccountID, models.DirectionOutbound)
	if err != nil {
		return nil, err
	}
	if req.TrunkID != "" {
		candidates = pinCandidates(candidates, req.TrunkID)
	}
	if len(candidates) == 0 {
		return nil, ErrNoTrunkAvailable
	}

	byID := make(map[string]*models.SipTrunk, len(candidates))
	queue := make([]*models.SipTrunk, 0, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
		queue = append(queue, &candidates[i])
	}

	tried := make(map[string]bool, len(candidates))
	var lastErr error
	for len(queue) > 0 {
		trunk := queue[0]
		queue = queue[1:]
		if tried[trunk.ID] {
			continue
		}
		tried[trunk.ID] = true

		call, err := s.dialOn(ctx, user, trunk, req)
		if err == nil {
			return call, nil
		}
		lastErr = err
		slog.Warn("Dial attempt failed", "trunk_id", trunk.ID, "provider", trunk.Provider, "error", err)

		// Failed trunk's configured failover jumps the queue.
		if trunk.FailoverTrunkID != nil {
			if next, ok := byID[*trunk.FailoverTrunkID]; ok && !tried[next.ID] {
				queue = append([]*models.SipTrunk{next}, queue...)
			}
		}
	}

	metrics.Global().CallsFailed.Inc()
	return nil, fmt.Errorf("%w: %v", ErrDialFailed, lastErr)
}

// pinCandidates narrows the selection to the pinned trunk followed by
// its failover chain, keeping only trunks that were eligible in the
// first place. The seen set guards against failover cycles.
func pinCandidates(candidates []models.SipTrunk, trunkID string) []models.SipTrunk {
	byID := make(map[string]*models.SipTrunk, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	var pinned []models.SipTrunk
	seen := make(map[string]bool)
	id := trunkID
	for id != "" && !seen[id] {
		trunk, ok := byID[id]
		if !ok {
			break
		}
		seen[id] = true
		pinned = append(pinned, *trunk)
		if trunk.FailoverTrunkID == nil {
			break
		}
		id = *trunk.FailoverTrunkID
	}
	return pinned
}

// dialOn reserves capacity on the trunk, dials through its provider and
// records the call. The reservation is released on any failure.
func (s *CallService) dialOn(ctx context.Context, user *models.User, trunk *models.SipTrunk, req PlaceCallRequest) (*models.CallLog, error) {
	reserved, err := s.trunks.IncrementActiveCalls(ctx, trunk.ID)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, fmt.Errorf("trunk %s at capacity", trunk.ID)
	}

	provider, err := s.trunkSvc.ProviderFor(trunk)
	if err != nil {
		s.releaseTrunk(ctx, trunk.ID)
		return nil, err
	}

	from := req.FromNumber
	if from == "" {
		from = trunk.CallerIDNumber
	}
	if from == "" && len(trunk.PhoneNumbers) > 0 {
		from = trunk.PhoneNumbers[0]
	}

	res, err := provider.Dial(ctx, DialRequest{
		FromNumber: from,
		ToNumber:   req.ToNumber,
		WebhookURL: s.webhookURL(trunk.Provider),
	})
	if err != nil {
		s.releaseTrunk(ctx, trunk.ID)
		return nil, err
	}

	call := &models.CallLog{
		AccountID:      user.AccountID,
		UserID:         user.ID,
		TrunkID:        trunk.ID,
		ConversationID: req.ConversationID,
		AgentID:        req.AgentID,
		CallID:         fmt.Sprintf("call_%s", uuid.NewString()),
		Direction:      models.DirectionOutbound,
		FromNumber:     from,
		ToNumber:       req.ToNumber,
		Status:         models.CallInitiated,
		StartedAt:      time.Now().UTC(),
		ProviderCallID: &res.ProviderCallID,
		Metadata:       req.Metadata,
	}
	if err := s.calls.CreateCallLog(ctx, call); err != nil {
		// The provider call is already in flight; abort it.
		if hangupErr := provider.Hangup(ctx, res.ProviderCallID); hangupErr != nil {
			slog.Error("Failed to abort orphaned call", "provider_call_id", res.ProviderCallID, "error", hangupErr)
		}
		s.releaseTrunk(ctx, trunk.ID)
		return nil, err
	}

	m := metrics.Global()
	m.CallsStarted.Inc()
	m.ActiveCalls.Inc()
	s.publishCallStarted(call, trunk.Provider)

	slog.Info("Call placed", "call_id", call.CallID, "trunk_id", trunk.ID, "provider", trunk.Provider, "to", req.ToNumber)
	return call, nil
}

// LogCall records a call the platform did not dial itself, typically an
// inbound call reported by the SIP edge. Active ongoing calls reserve
// trunk capacity; already-ended records are stored as history only.
func (s *CallService) LogCall(ctx context.Context, user *models.User, call *models.CallLog) error {
	if call.CallID == "" {
		return fmt.Errorf("call_id is required")
	}

	trunk, err := s.trunks.GetTrunkByID(ctx, call.TrunkID, user.AccountID)
	if err != nil {
		return err
	}
	if trunk == nil {
		return ErrTrunkNotFound
	}

	call.AccountID = user.AccountID
	call.UserID = user.ID
	if call.StartedAt.IsZero() {
		call.StartedAt = time.Now().UTC()
	}
	if call.Status == "" {
		call.Status = models.CallInitiated
	}
	if call.Direction == "" {
		call.Direction = models.DirectionInbound
	}

	ongoing := call.EndedAt == nil
	if ongoing {
		reserved, err := s.trunks.IncrementActiveCalls(ctx, call.TrunkID)
		if err != nil {
			return err
		}
		if !reserved {
			return fmt.Errorf("trunk %s at capacity", call.TrunkID)
		}
	}

	if err := s.calls.CreateCallLog(ctx, call); err != nil {
		if ongoing {
			s.releaseTrunk(ctx, call.TrunkID)
		}
		return err
	}

	if ongoing {
		m := metrics.Global()
		m.CallsStarted.Inc()
		m.ActiveCalls.Inc()
		s.publishCallStarted(call, trunk.Provider)
	}
	slog.Info("Call logged", "call_id", call.CallID, "trunk_id", call.TrunkID, "direction", call.Direction)
	return nil
}

// CallUpdate carries the mutable fields of a call log. Nil fields are
// left unchanged; answered and ended timestamps stick once set.
type CallUpdate struct {
	Status       *string
	AnsweredAt   *time.Time
	EndedAt      *time.Time
	HangupCause  *string
	QualityScore *float64
	CodecUsed    *string
	RemoteIP     *string
	Metadata     models.JSONMap
}

// UpdateCall applies a progress update to a call by its platform call ID.
func (s *CallService) UpdateCall(ctx context.Context, callID, accountID string, update CallUpdate) (*models.CallLog, error) {
	call, err := s.calls.GetCallLogByCallID(ctx, callID, accountID)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, ErrCallNotFound
	}
	return s.applyCallUpdate(ctx, call, update)
}

// HangupCall ends an in-progress call through its provider. Hanging up
// an already-ended call returns it unchanged.
func (s *CallService) HangupCall(ctx context.Context, callID, accountID string) (*models.CallLog, error) {
	call, err := s.calls.GetCallLogByCallID(ctx, callID, accountID)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, ErrCallNotFound
	}
	if call.IsCompleted() {
		return call, nil
	}

	trunk, err := s.trunks.GetTrunkByID(ctx, call.TrunkID, accountID)
	if err != nil {
		return nil, err
	}
	if trunk != nil && call.ProviderCallID != nil {
		provider, err := s.trunkSvc.ProviderFor(trunk)
		if err != nil {
			return nil, err
		}
		if err := provider.Hangup(ctx, *call.ProviderCallID); err != nil {
			slog.Warn("Provider hangup failed", "call_id", call.CallID, "provider", trunk.Provider, "error", err)
		}
	}

	status := models.CallCompleted
	if !call.WasAnswered() {
		status = models.CallCancelled
	}
	now := time.Now().UTC()
	return s.applyCallUpdate(ctx, call, CallUpdate{Status: &status, EndedAt: &now})
}

// applyUpdateFields copies the update onto the call. A terminal status
// without an explicit ended timestamp stamps one, so REST updates end a
// call the same way provider webhooks do. Returns whether this update
// is the one that ended the call.
func applyUpdateFields(call *models.CallLog, update CallUpdate) (ended bool) {
	wasEnded := call.EndedAt != nil

	if update.Status != nil {
		call.Status = *update.Status
	}
	if update.AnsweredAt != nil && call.AnsweredAt == nil {
		call.AnsweredAt = update.AnsweredAt
	}
	if update.EndedAt != nil && call.EndedAt == nil {
		call.EndedAt = update.EndedAt
	}
	if call.EndedAt == nil && models.IsTerminalStatus(call.Status) {
		now := time.Now().UTC()
		call.EndedAt = &now
	}
	if update.HangupCause != nil {
		call.HangupCause = update.HangupCause
	}
	if update.QualityScore != nil {
		call.QualityScore = update.QualityScore
	}
	if update.CodecUsed != nil {
		call.CodecUsed = *update.CodecUsed
	}
	if update.RemoteIP != nil {
		call.RemoteIP = *update.RemoteIP
	}
	if update.Metadata != nil {
		call.Metadata = update.Metadata
	}

	return !wasEnded && call.EndedAt != nil
}

// applyCallUpdate mutates the call, runs end-of-call accounting exactly
// once when the ended timestamp first appears, and persists the result.
func (s *CallService) applyCallUpdate(ctx context.Context, call *models.CallLog, update CallUpdate) (*models.CallLog, error) {
	ended := applyUpdateFields(call, update)
	if ended {
		call.CalculateDuration()
		if call.DurationSeconds > 0 {
			trunk, err := s.trunks.GetTrunkByID(ctx, call.TrunkID, call.AccountID)
			if err == nil && trunk != nil {
				call.CalculateCost(trunk.CostPerMinute)
			}
			if s.usage != nil {
				minutes := float64(call.DurationSeconds) / 60.0
				ref := call.CallID
				usageLog, err := s.usage.Record(ctx, call.UserID, call.AccountID, models.UsagePhoneMinutes, minutes, &ref, nil)
				if err != nil {
					slog.Error("Failed to record call usage", "call_id", call.CallID, "error", err)
				} else {
					call.CreditsUsed = usageLog.CostCredits
				}
			}
		}
	}

	if err := s.calls.UpdateCallLog(ctx, call); err != nil {
		return nil, err
	}

	if ended {
		s.releaseTrunk(ctx, call.TrunkID)
		m := metrics.Global()
		m.ActiveCalls.Dec()
		if call.Status == models.CallFailed {
			m.CallsFailed.Inc()
		} else {
			m.CallsCompleted.Inc()
		}
		s.publishCallEnded(call)
		slog.Info("Call ended", "call_id", call.CallID, "status", call.Status, "duration_seconds", call.DurationSeconds, "credits_used", call.CreditsUsed)
	}
	return call, nil
}

func (s *CallService) releaseTrunk(ctx context.Context, trunkID string) {
	if err := s.trunks.DecrementActiveCalls(ctx, trunkID); err != nil {
		slog.Error("Failed to release trunk capacity", "trunk_id", trunkID, "error", err)
	}
}

func (s *CallService) webhookURL(provider string) string {
	if s.telephony == nil || s.telephony.WebhookBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/v1/telephony/webhooks/%s", s.telephony.WebhookBaseURL, provider)
}

func (s *CallService) publishCallStarted(call *models.CallLog, provider string) {
	env := events.NewEnvelope(events.TypeCallStarted, call.AccountID, events.CallStarted{
		CallID:     call.CallID,
		TrunkID:    call.TrunkID,
		AgentID:    call.AgentID,
		Direction:  call.Direction,
		FromNumber: call.FromNumber,
		ToNumber:   call.ToNumber,
		Provider:   provider,
	})
	publishEvent(s.publisher, events.TypeCallStarted, env)
}

func (s *CallService) publishCallEnded(call *models.CallLog) {
	env := events.NewEnvelope(events.TypeCallEnded, call.AccountID, events.CallEnded{
		CallID:          call.CallID,
		TrunkID:         call.TrunkID,
		Status:          call.Status,
		HangupCause:     call.HangupCause,
		DurationSeconds: call.DurationSeconds,
		Cost:            call.Cost,
		CreditsUsed:     call.CreditsUsed,
	})
	publishEvent(s.publisher, events.TypeCallEnded, env)
}

// MapTwilioStatus converts a Twilio call status to the platform status.
func MapTwilioStatus(status string) (string, bool) {
	switch status {
	case "queued", "initiated":
		return models.CallInitiated, true
	case "ringing":
		return models.CallRinging, true
	case "in-progress":
		return models.CallAnswered, true
	case "completed":
		return models.CallCompleted, true
	case "busy":
		return models.CallBusy, true
	case "no-answer":
		return models.CallNoAnswer, true
	case "failed":
		return models.CallFailed, true
	case "canceled":
		return models.CallCancelled, true
	}
	return "", false
}

// MapTelnyxEvent converts a Telnyx call event type to the platform status.
func MapTelnyxEvent(eventType string) (string, bool) {
	switch eventType {
	case "call.initiated":
		return models.CallInitiated, true
	case "call.answered":
		return models.CallAnswered, true
	case "call.hangup":
		return models.CallCompleted, true
	}
	return "", false
}

// HandleProviderStatus applies a provider webhook update to the call it
// references. Unknown provider call IDs are acknowledged and dropped so
// the provider stops retrying.
func (s *CallService) HandleProviderStatus(ctx context.Context, providerCallID, status string, hangupCause *string) error {
	call, err := s.calls.GetCallLogByProviderCallID(ctx, providerCallID)
	if err != nil {
		return err
	}
	if call == nil {
		slog.Warn("Webhook for unknown call", "provider_call_id", providerCallID, "status", status)
		return nil
	}

	update := CallUpdate{Status: &status, HangupCause: hangupCause}
	now := time.Now().UTC()
	switch {
	case status == models.CallAnswered:
		update.AnsweredAt = &now
	case models.IsTerminalStatus(status):
		update.EndedAt = &now
	}

	_, err = s.applyCallUpdate(ctx, call, update)
	return err
}
