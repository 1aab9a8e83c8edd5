package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dino-runner/internal/config"
	"github.com/dino-runner/internal/domain"
)

// Refresher reloads and announces the broadcast leaderboard page
type Refresher interface {
	Refresh(ctx context.Context) ([]domain.LeaderboardEntry, error)
	BroadcastLeaderboard(entries []domain.LeaderboardEntry)
}

// RefreshWorker periodically rebuilds the cached leaderboard from the store
// and re-broadcasts it when it changed
type RefreshWorker struct {
	refresher Refresher
	config    *config.SyncConfig
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
	last      []domain.LeaderboardEntry
}

// NewRefreshWorker creates a new refresh worker
func NewRefreshWorker(refresher Refresher, cfg *config.SyncConfig, logger *slog.Logger) *RefreshWorker {
	return &RefreshWorker{
		refresher: refresher,
		config:    cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start warms the cache and begins the background refresh loop
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.RunOnce(ctx)
	w.logger.Info("refresh worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background refresh loop
func (w *RefreshWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("refresh worker stopped")
	return nil
}

// run is the main worker loop
func (w *RefreshWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes the leaderboard and reports whether it was broadcast
func (w *RefreshWorker) RunOnce(ctx context.Context) bool {
	startTime := time.Now()

	entries, err := w.refresher.Refresh(ctx)
	if err != nil {
		w.logger.Error("failed to refresh leaderboard", "error", err)
		return false
	}

	w.mu.Lock()
	changed := !sameRanking(w.last, entries)
	w.last = entries
	w.mu.Unlock()

	if changed {
		w.refresher.BroadcastLeaderboard(entries)
	}

	w.logger.Debug("refresh cycle completed",
		"duration", time.Since(startTime),
		"entries", len(entries),
		"changed", changed,
	)
	return changed
}

// IsRunning returns whether the worker is currently running
func (w *RefreshWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func sameRanking(a, b []domain.LeaderboardEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Score != b[i].Score || a[i].Rank != b[i].Rank {
			return false
		}
	}
	return true
}
