package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/airies-ai/backend/metrics"
	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
)

// TrunkHealthMonitor sweeps monitored trunks in the background and
// probes the ones whose check interval has elapsed.
type TrunkHealthMonitor struct {
	trunks    *repository.TrunkRepository
	trunkSvc  *SipTrunkService
	interval  time.Duration
	maxProbes int

	stop chan struct{}
	done chan struct{}
}

func NewTrunkHealthMonitor(trunks *repository.TrunkRepository, trunkSvc *SipTrunkService, cfg *TelephonyConfig) *TrunkHealthMonitor {
	interval := time.Duration(cfg.SweepSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	maxProbes := cfg.MaxConcurrentProbes
	if maxProbes <= 0 {
		maxProbes = 8
	}
	return &TrunkHealthMonitor{
		trunks:    trunks,
		trunkSvc:  trunkSvc,
		interval:  interval,
		maxProbes: maxProbes,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (m *TrunkHealthMonitor) Start() {
	go m.run()
	slog.Info("Trunk health monitor started", "interval", m.interval, "max_probes", m.maxProbes)
}

// Stop ends the sweep loop and waits for an in-flight sweep to finish.
func (m *TrunkHealthMonitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *TrunkHealthMonitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep(context.Background())
		}
	}
}

// sweep probes every due trunk, at most maxProbes at a time, then
// refreshes the healthy-trunk gauge.
func (m *TrunkHealthMonitor) sweep(ctx context.Context) {
	candidates, err := m.trunks.ListHealthCheckCandidates(ctx)
	if err != nil {
		slog.Error("Failed to list trunks for health sweep", "error", err)
		return
	}

	now := time.Now().UTC()
	var due []models.SipTrunk
	for i := range candidates {
		if trunkDue(&candidates[i], now) {
			due = append(due, candidates[i])
		}
	}
	if len(due) == 0 {
		m.updateHealthyGauge(ctx)
		return
	}
	slog.Debug("Health sweep started", "due", len(due), "monitored", len(candidates))

	sem := make(chan struct{}, m.maxProbes)
	var wg sync.WaitGroup
	for i := range due {
		trunk := &due[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := m.trunkSvc.CheckTrunkHealth(ctx, trunk); err != nil {
				slog.Error("Failed to store health check result", "trunk_id", trunk.ID, "error", err)
			}
		}()
	}
	wg.Wait()

	m.updateHealthyGauge(ctx)
}

// trunkDue reports whether the trunk's per-trunk check interval has
// elapsed since its last probe. Never-probed trunks are always due.
func trunkDue(trunk *models.SipTrunk, now time.Time) bool {
	if trunk.LastHealthCheckAt == nil {
		return true
	}
	interval := time.Duration(trunk.HealthCheckInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return now.Sub(*trunk.LastHealthCheckAt) >= interval
}

func (m *TrunkHealthMonitor) updateHealthyGauge(ctx context.Context) {
	healthy, err := m.trunks.CountHealthy(ctx)
	if err != nil {
		return
	}
	metrics.Global().HealthyTrunks.Set(float64(healthy))
}
