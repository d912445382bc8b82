package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arena-gamesync/internal/config"
	"github.com/arena-gamesync/internal/metrics"
)

// GameCloser completes in-progress games started before a cutoff
type GameCloser interface {
	CloseStaleGames(ctx context.Context, before time.Time) (int64, error)
}

// StaleGameCloser periodically closes games nobody finished, so abandoned
// lobbies start a fresh game on their next submission
type StaleGameCloser struct {
	games   GameCloser
	config  *config.WorkerConfig
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewStaleGameCloser creates a new stale game closer
func NewStaleGameCloser(
	games GameCloser,
	cfg *config.WorkerConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *StaleGameCloser {
	return &StaleGameCloser{
		games:   games,
		config:  cfg,
		metrics: m,
		now:     time.Now,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background loop
func (w *StaleGameCloser) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("stale game closer started",
		"interval", w.config.Interval,
		"max_game_age", w.config.MaxGameAge,
	)

	go w.run(ctx)
	return nil
}

// Stop stops the background loop and waits for it to exit
func (w *StaleGameCloser) Stop() error {
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

	w.logger.Info("stale game closer stopped")
	return nil
}

func (w *StaleGameCloser) run(ctx context.Context) {
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

// RunOnce runs a single pass and returns how many games were closed
func (w *StaleGameCloser) RunOnce(ctx context.Context) int64 {
	cutoff := w.now().Add(-w.config.MaxGameAge)

	closed, err := w.games.CloseStaleGames(ctx, cutoff)
	if err != nil {
		w.logger.Error("failed to close stale games", "cutoff", cutoff, "error", err)
		return 0
	}

	w.metrics.StaleGamesClosed(closed)
	if closed > 0 {
		w.logger.Info("closed stale games", "closed", closed, "cutoff", cutoff)
	}
	return closed
}

// IsRunning returns whether the worker is currently running
func (w *StaleGameCloser) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
