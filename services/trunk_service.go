package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/airies-ai/backend/crypto"
	"github.com/airies-ai/backend/events"
	"github.com/airies-ai/backend/metrics"
	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
)

var (
	ErrTrunkNotFound       = errors.New("trunk not found")
	ErrTrunkLimitReached   = errors.New("trunk limit reached")
	ErrTrunkHasActiveCalls = errors.New("trunk has active calls")
)

// healthFailureThreshold is how many consecutive failed probes move an
// active trunk into error status.
const healthFailureThreshold = 3

// SipTrunkService manages trunk lifecycle: tier limits, credential
// sealing, provider initialization and health transitions.
type SipTrunkService struct {
	trunks    *repository.TrunkRepository
	calls     *repository.CallRepository
	keyring   *crypto.Keyring
	publisher events.Publisher
	telephony *TelephonyConfig
}

func NewSipTrunkService(trunks *repository.TrunkRepository, calls *repository.CallRepository, keyring *crypto.Keyring, publisher events.Publisher, telephony *TelephonyConfig) *SipTrunkService {
	return &SipTrunkService{
		trunks:    trunks,
		calls:     calls,
		keyring:   keyring,
		publisher: publisher,
		telephony: telephony,
	}
}

// CreateTrunk validates the tier limit, fills defaults, seals credentials
// and stores the trunk, then probes the provider to activate it. A failed
// probe leaves the trunk in error status rather than failing the create.
func (s *SipTrunkService) CreateTrunk(ctx context.Context, user *models.User, trunk *models.SipTrunk) error {
	count, err := s.trunks.CountTrunks(ctx, user.AccountID)
	if err != nil {
		return err
	}
	limit := models.MaxTrunksForTier(user.Tier)
	if count >= int64(limit) {
		return fmt.Errorf("%w: %s tier allows %d", ErrTrunkLimitReached, user.Tier, limit)
	}

	trunk.AccountID = user.AccountID
	trunk.UserID = user.ID
	trunk.Status = models.TrunkStatusInactive
	trunk.HealthStatus = models.HealthUnknown
	trunk.CurrentActiveCalls = 0
	trunk.ConsecutiveFailures = 0
	if trunk.MaxConcurrentCalls <= 0 {
		trunk.MaxConcurrentCalls = 10
	}
	if trunk.Priority <= 0 {
		trunk.Priority = 1
	}
	if trunk.SipPort <= 0 {
		trunk.SipPort = 5060
	}
	if trunk.Transport == "" {
		trunk.Transport = "udp"
	}
	if trunk.Direction == "" {
		trunk.Direction = models.DirectionBidirectional
	}
	if trunk.DTMFMode == "" {
		trunk.DTMFMode = "rfc2833"
	}
	if trunk.HealthCheckInterval <= 0 {
		trunk.HealthCheckInterval = 300
	}

	if err := s.sealSecrets(trunk); err != nil {
		return err
	}
	if err := s.trunks.CreateTrunk(ctx, trunk); err != nil {
		return err
	}

	s.initializeTrunk(ctx, trunk)
	return nil
}

// UpdateTrunk persists trunk changes. When credentials or the provider
// changed, the trunk is re-probed and its status reset accordingly.
func (s *SipTrunkService) UpdateTrunk(ctx context.Context, trunk *models.SipTrunk, reinitialize bool) error {
	if err := s.sealSecrets(trunk); err != nil {
		return err
	}
	if err := s.trunks.UpdateTrunk(ctx, trunk); err != nil {
		return err
	}
	if reinitialize {
		s.initializeTrunk(ctx, trunk)
	}
	return nil
}

// DeleteTrunk soft-deletes a trunk. Trunks carrying calls are refused.
func (s *SipTrunkService) DeleteTrunk(ctx context.Context, trunkID, accountID string) error {
	trunk, err := s.trunks.GetTrunkByID(ctx, trunkID, accountID)
	if err != nil {
		return err
	}
	if trunk == nil {
		return ErrTrunkNotFound
	}
	if trunk.CurrentActiveCalls > 0 {
		return fmt.Errorf("%w: %d in progress", ErrTrunkHasActiveCalls, trunk.CurrentActiveCalls)
	}
	return s.trunks.DeleteTrunk(ctx, trunkID, accountID)
}

// ProviderFor returns a telephony client for the trunk with its
// credentials unsealed.
func (s *SipTrunkService) ProviderFor(trunk *models.SipTrunk) (TelephonyProvider, error) {
	plain, err := s.decryptedCopy(trunk)
	if err != nil {
		return nil, err
	}
	return NewTelephonyProvider(plain, s.telephony), nil
}

// initializeTrunk probes a freshly created or reconfigured trunk and
// moves it straight to active or error status.
func (s *SipTrunkService) initializeTrunk(ctx context.Context, trunk *models.SipTrunk) {
	res, err := s.probeTrunk(ctx, trunk)

	oldStatus := trunk.Status
	state := repository.HealthState{}
	switch {
	case err != nil:
		state.Status = models.TrunkStatusError
		state.HealthStatus = models.HealthError
		state.ConsecutiveFailures = 1
		slog.Warn("Trunk initialization failed", "trunk_id", trunk.ID, "provider", trunk.Provider, "error", err)
	case !res.Healthy:
		state.Status = models.TrunkStatusError
		state.HealthStatus = models.HealthUnhealthy
		state.ConsecutiveFailures = 1
		slog.Warn("Trunk initialization rejected by provider", "trunk_id", trunk.ID, "provider", trunk.Provider, "detail", res.Detail)
	default:
		state.Status = models.TrunkStatusActive
		state.HealthStatus = models.HealthHealthy
		state.LatencyMs = &res.LatencyMs
		slog.Info("Trunk initialized", "trunk_id", trunk.ID, "provider", trunk.Provider, "latency_ms", res.LatencyMs)
	}

	if err := s.trunks.UpdateHealthState(ctx, trunk.ID, state); err != nil {
		slog.Error("Failed to store trunk initialization result", "error", err, "trunk_id", trunk.ID)
		return
	}
	s.applyHealthState(trunk, state)

	if trunk.Status != oldStatus {
		s.publishStatusChange(trunk, oldStatus)
	}
}

// CheckTrunkHealth probes the trunk's provider and applies the health
// transition rules: a healthy probe recovers an errored trunk, while
// repeated failures take an active trunk out of rotation.
func (s *SipTrunkService) CheckTrunkHealth(ctx context.Context, trunk *models.SipTrunk) error {
	m := metrics.Global()
	m.HealthChecksTotal.Inc()

	res, probeErr := s.probeTrunk(ctx, trunk)

	oldStatus := trunk.Status
	state := repository.HealthState{
		Status:       trunk.Status,
		HealthStatus: models.HealthHealthy,
	}
	switch {
	case probeErr != nil:
		m.HealthChecksFailed.Inc()
		state.HealthStatus = models.HealthError
		state.ConsecutiveFailures = trunk.ConsecutiveFailures + 1
		slog.Warn("Trunk health check failed", "trunk_id", trunk.ID, "provider", trunk.Provider, "error", probeErr)
	case !res.Healthy:
		m.HealthChecksFailed.Inc()
		state.HealthStatus = models.HealthUnhealthy
		state.ConsecutiveFailures = trunk.ConsecutiveFailures + 1
		slog.Warn("Trunk unhealthy", "trunk_id", trunk.ID, "provider", trunk.Provider, "detail", res.Detail)
	default:
		state.LatencyMs = &res.LatencyMs
	}

	state.Status = nextTrunkStatus(trunk.Status, state.ConsecutiveFailures)

	if err := s.trunks.UpdateHealthState(ctx, trunk.ID, state); err != nil {
		return err
	}
	s.applyHealthState(trunk, state)

	if trunk.Status != oldStatus {
		slog.Info("Trunk status changed", "trunk_id", trunk.ID, "old_status", oldStatus, "new_status", trunk.Status)
		s.publishStatusChange(trunk, oldStatus)
	}
	return nil
}

// nextTrunkStatus applies the health transition rules: a clean probe
// returns an errored trunk to service, while repeated failures take an
// active trunk out of rotation. Other statuses are left alone so a
// suspended or maintenance trunk never flips on its own.
func nextTrunkStatus(current string, consecutiveFailures int) string {
	if consecutiveFailures == 0 && current == models.TrunkStatusError {
		return models.TrunkStatusActive
	}
	if consecutiveFailures >= healthFailureThreshold && current == models.TrunkStatusActive {
		return models.TrunkStatusError
	}
	return current
}

// probeTrunk runs one provider health check with unsealed credentials
// and the configured probe timeout.
func (s *SipTrunkService) probeTrunk(ctx context.Context, trunk *models.SipTrunk) (*HealthResult, error) {
	provider, err := s.ProviderFor(trunk)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(s.telephony.ProbeTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return provider.HealthCheck(probeCtx)
}

func (s *SipTrunkService) applyHealthState(trunk *models.SipTrunk, state repository.HealthState) {
	now := time.Now().UTC()
	trunk.Status = state.Status
	trunk.HealthStatus = state.HealthStatus
	trunk.ConsecutiveFailures = state.ConsecutiveFailures
	trunk.LatencyMs = state.LatencyMs
	trunk.LastHealthCheckAt = &now
}

func (s *SipTrunkService) publishStatusChange(trunk *models.SipTrunk, oldStatus string) {
	env := events.NewEnvelope(events.TypeTrunkStatusChanged, trunk.AccountID, events.TrunkStatusChanged{
		TrunkID:             trunk.ID,
		Name:                trunk.Name,
		Provider:            trunk.Provider,
		OldStatus:           oldStatus,
		NewStatus:           trunk.Status,
		HealthStatus:        trunk.HealthStatus,
		ConsecutiveFailures: trunk.ConsecutiveFailures,
	})
	publishEvent(s.publisher, events.TypeTrunkStatusChanged, env)
}

// sealSecrets envelope-encrypts the trunk credentials before they hit
// the database. Already-sealed values pass through untouched, so updates
// that did not change a password are safe.
func (s *SipTrunkService) sealSecrets(trunk *models.SipTrunk) error {
	if s.keyring == nil {
		return nil
	}
	if trunk.SipPassword != "" && !crypto.IsSealed(trunk.SipPassword) {
		sealed, err := s.keyring.EncryptString(trunk.SipPassword)
		if err != nil {
			return fmt.Errorf("failed to seal sip password: %w", err)
		}
		trunk.SipPassword = sealed
	}
	if trunk.AuthPassword != "" && !crypto.IsSealed(trunk.AuthPassword) {
		sealed, err := s.keyring.EncryptString(trunk.AuthPassword)
		if err != nil {
			return fmt.Errorf("failed to seal auth password: %w", err)
		}
		trunk.AuthPassword = sealed
	}
	return nil
}

// decryptedCopy returns a copy of the trunk with credentials unsealed
// for provider calls. The stored trunk keeps its sealed values.
func (s *SipTrunkService) decryptedCopy(trunk *models.SipTrunk) (*models.SipTrunk, error) {
	plain := *trunk
	if s.keyring == nil {
		return &plain, nil
	}

	var err error
	if plain.SipPassword != "" {
		if plain.SipPassword, err = s.keyring.DecryptString(plain.SipPassword); err != nil {
			return nil, fmt.Errorf("failed to unseal sip password: %w", err)
		}
	}
	if plain.AuthPassword != "" {
		if plain.AuthPassword, err = s.keyring.DecryptString(plain.AuthPassword); err != nil {
			return nil, fmt.Errorf("failed to unseal auth password: %w", err)
		}
	}
	return &plain, nil
}

// TrunkStats is the per-trunk statistics report.
type TrunkStats struct {
	TrunkID                string  `json:"trunk_id"`
	TrunkName              string  `json:"trunk_name"`
	PeriodDays             int     `json:"period_days"`
	TotalCalls             int64   `json:"total_calls"`
	AnsweredCalls          int64   `json:"answered_calls"`
	CompletedCalls         int64   `json:"completed_calls"`
	FailedCalls            int64   `json:"failed_calls"`
	TotalDurationMinutes   float64 `json:"total_duration_minutes"`
	TotalCost              float64 `json:"total_cost"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
	SuccessRatePercent     float64 `json:"success_rate_percent"`
	ActiveCalls            int     `json:"active_calls"`
	UtilizationPercent     float64 `json:"utilization_percent"`
	HealthStatus           string  `json:"health_status"`
}

// TrunkStats reports call statistics for one trunk over the period,
// defaulting to the last 30 days.
func (s *SipTrunkService) TrunkStats(ctx context.Context, trunkID, accountID string, periodDays int) (*TrunkStats, error) {
	trunk, err := s.trunks.GetTrunkByID(ctx, trunkID, accountID)
	if err != nil {
		return nil, err
	}
	if trunk == nil {
		return nil, ErrTrunkNotFound
	}
	return s.statsForTrunk(ctx, trunk, periodDays)
}

func (s *SipTrunkService) statsForTrunk(ctx context.Context, trunk *models.SipTrunk, periodDays int) (*TrunkStats, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	now := time.Now().UTC()
	agg, err := s.calls.AggregateForTrunk(ctx, trunk.ID, now.AddDate(0, 0, -periodDays), now)
	if err != nil {
		return nil, err
	}

	stats := &TrunkStats{
		TrunkID:                trunk.ID,
		TrunkName:              trunk.Name,
		PeriodDays:             periodDays,
		TotalCalls:             agg.TotalCalls,
		AnsweredCalls:          agg.AnsweredCalls,
		CompletedCalls:         agg.CompletedCalls,
		FailedCalls:            agg.FailedCalls,
		TotalDurationMinutes:   float64(agg.TotalDurationSeconds) / 60.0,
		TotalCost:              agg.TotalCost,
		AverageDurationSeconds: agg.AvgDurationSeconds,
		ActiveCalls:            trunk.CurrentActiveCalls,
		UtilizationPercent:     trunk.UtilizationPercent(),
		HealthStatus:           trunk.HealthStatus,
	}
	if agg.TotalCalls > 0 {
		stats.SuccessRatePercent = float64(agg.CompletedCalls) / float64(agg.TotalCalls) * 100
	}
	return stats, nil
}

// DashboardCallStats summarizes the account's call activity.
type DashboardCallStats struct {
	TotalCalls             int64   `json:"total_calls"`
	AnsweredCalls          int64   `json:"answered_calls"`
	FailedCalls            int64   `json:"failed_calls"`
	TotalDurationMinutes   float64 `json:"total_duration_minutes"`
	TotalCost              float64 `json:"total_cost"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
	AnswerRatePercent      float64 `json:"answer_rate_percent"`
}

// TelephonyDashboard is the account-wide telephony overview.
type TelephonyDashboard struct {
	TotalTrunks               int                `json:"total_trunks"`
	ActiveTrunks              int                `json:"active_trunks"`
	TotalActiveCalls          int                `json:"total_active_calls"`
	TotalCapacity             int                `json:"total_capacity"`
	OverallUtilizationPercent float64            `json:"overall_utilization_percent"`
	TrunkStats                []TrunkStats       `json:"trunk_stats"`
	RecentCalls               []models.CallLog   `json:"recent_calls"`
	CallStats                 DashboardCallStats `json:"call_stats"`
}

// dashboardTrunkStats caps how many per-trunk reports the dashboard carries.
const dashboardTrunkStats = 10

// Dashboard assembles the telephony overview: trunk totals, utilization,
// per-trunk statistics, recent calls and the 30-day call summary.
func (s *SipTrunkService) Dashboard(ctx context.Context, accountID string) (*TelephonyDashboard, error) {
	trunks, err := s.trunks.GetTrunks(ctx, accountID)
	if err != nil {
		return nil, err
	}

	dashboard := &TelephonyDashboard{
		TotalTrunks: len(trunks),
		TrunkStats:  []TrunkStats{},
		RecentCalls: []models.CallLog{},
	}
	for _, trunk := range trunks {
		if trunk.Status == models.TrunkStatusActive {
			dashboard.ActiveTrunks++
		}
		dashboard.TotalActiveCalls += trunk.CurrentActiveCalls
		dashboard.TotalCapacity += trunk.MaxConcurrentCalls
	}
	if dashboard.TotalCapacity > 0 {
		dashboard.OverallUtilizationPercent = float64(dashboard.TotalActiveCalls) / float64(dashboard.TotalCapacity) * 100
	}

	for i := range trunks {
		if i >= dashboardTrunkStats {
			break
		}
		stats, err := s.statsForTrunk(ctx, &trunks[i], 30)
		if err != nil {
			slog.Error("Failed to compute trunk stats", "error", err, "trunk_id", trunks[i].ID)
			continue
		}
		dashboard.TrunkStats = append(dashboard.TrunkStats, *stats)
	}

	recent, err := s.calls.RecentCalls(ctx, accountID, 10)
	if err != nil {
		return nil, err
	}
	dashboard.RecentCalls = recent

	now := time.Now().UTC()
	agg, err := s.calls.AggregateForAccount(ctx, accountID, now.AddDate(0, 0, -30), now)
	if err != nil {
		return nil, err
	}
	dashboard.CallStats = DashboardCallStats{
		TotalCalls:             agg.TotalCalls,
		AnsweredCalls:          agg.AnsweredCalls,
		FailedCalls:            agg.FailedCalls,
		TotalDurationMinutes:   float64(agg.TotalDurationSeconds) / 60.0,
		TotalCost:              agg.TotalCost,
		AverageDurationSeconds: agg.AvgDurationSeconds,
	}
	if agg.TotalCalls > 0 {
		dashboard.CallStats.AnswerRatePercent = float64(agg.AnsweredCalls) / float64(agg.TotalCalls) * 100
	}
	return dashboard, nil
}

// publishEvent delivers one envelope on its routing key. Failures are
// logged and counted, never propagated: event delivery must not fail the
// request that produced the event.
func publishEvent(publisher events.Publisher, key string, env events.Envelope) {
	if publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := publisher.Publish(ctx, key, env); err != nil {
		slog.Error("Failed to publish event", "type", env.Meta.Type, "error", err)
		metrics.Global().EventsFailed.Inc()
		return
	}
	metrics.Global().EventsPublished.Inc()
}
