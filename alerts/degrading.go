package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/machinerag/core"
)

// ErrResolverRequired is returned when a Degrading wrapper has nothing to wrap.
var ErrResolverRequired = errors.New("alert resolver is required")

// Degrading turns resolver failures into an empty alert list.
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
		logger = slog.Default().With("component", "alerts")
	}
	return &Degrading{next: next, logger: logger}, nil
}

// Fetch never returns an error.
func (d *Degrading) Fetch(ctx context.Context, assetRef string) ([]core.Alert, error) {
	alerts, err := d.next.Fetch(ctx, assetRef)
	if err != nil {
		d.logger.Warn("alert fetch failed",
			"asset", assetRef,
			"error", fmt.Errorf("%w: %w", core.ErrResolverUnavailable, err))
		return nil, nil
	}
	return alerts, nil
}
