package timeseries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/machinerag/core"
)

// Resolver fetches readings for one asset and metric in [from, to],
// ordered by timestamp ascending.
type Resolver interface {
	Fetch(ctx context.Context, assetRef, metric string, from, to time.Time) ([]core.Reading, error)
}

// ErrResolverRequired is returned when a Degrading wrapper has nothing to wrap.
var ErrResolverRequired = errors.New("timeseries resolver is required")

// Degrading turns resolver failures into an empty series.
type Degrading struct {
	next   Resolver
	logger *slog.Logger
}

// NewDegrading wraps next. A nil logger uses the default logger.
func NewDegrading(next Resolver, logger *slog.Logger) (*Degrading, error) {
	if next == nil {
		return nil, ErrResolverRequired
	}
	if logger == nil {
		logger = slog.Default().With("component", "timeseries")
	}
	return &Degrading{next: next, logger: logger}, nil
}

// Fetch never returns an error. Failures are logged as
// core.ErrResolverUnavailable and yield nil.
func (d *Degrading) Fetch(ctx context.Context, assetRef, metric string, from, to time.Time) ([]core.Reading, error) {
	readings, err := d.next.Fetch(ctx, assetRef, metric, from, to)
	if err != nil {
		d.logger.Warn("time-series fetch failed",
			"asset", assetRef,
			"metric", metric,
			"error", fmt.Errorf("%w: %w", core.ErrResolverUnavailable, err))
		return nil, nil
	}
	return readings, nil
}
