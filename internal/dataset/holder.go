package dataset

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findmyspot/findmyspot/internal/metrics"
	"github.com/findmyspot/findmyspot/internal/model"
)

// Loader produces a complete snapshot or fails without a partial result.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Holder publishes the current snapshot. Readers always see a whole snapshot;
// refresh builds a new one and swaps the pointer.
type Holder struct {
	loader  Loader
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
}

// NewHolder creates a Holder. Call Refresh before the first Current.
func NewHolder(loader Loader) *Holder {
	return &Holder{loader: loader}
}

// Current returns the published snapshot, or DataUnavailable if none loaded.
func (h *Holder) Current() (*Snapshot, error) {
	s := h.current.Load()
	if s == nil {
		return nil, model.NewDataUnavailable("snapshot", eris.New("dataset: no snapshot loaded"))
	}
	return s, nil
}

// Store publishes s directly.
func (h *Holder) Store(s *Snapshot) {
	h.current.Store(s)
}

// Refresh loads a new snapshot and publishes it. On failure the previous
// snapshot stays in place and the error is returned.
func (h *Holder) Refresh(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	s, err := h.loader.Load(ctx)
	if err != nil {
		metrics.SnapshotRefreshes.WithLabelValues("failure").Inc()
		return eris.Wrap(err, "dataset: refresh")
	}

	prev := h.current.Swap(s)
	metrics.ObserveSnapshot(s.LoadedAt, s.Counts())

	fields := []zap.Field{
		zap.String("version", s.Version),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bays", len(s.Bays())),
		zap.Int("readings", len(s.SensorReadings())),
	}
	if prev != nil {
		fields = append(fields, zap.String("previous", prev.Version))
	}
	zap.L().Info("dataset: snapshot published", fields...)
	return nil
}

// Run refreshes every interval until ctx is done. Failures are logged and
// the previous snapshot keeps serving.
func (h *Holder) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Refresh(ctx); err != nil {
				zap.L().Warn("dataset: refresh failed, keeping previous snapshot", zap.Error(err))
			}
		}
	}
}
