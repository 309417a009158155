package consistency

import (
	"context"
	"log/slog"
	"time"

	"github.com/listenupapp/catalog-server/internal/store"
)

// Options tunes the secondary write policies.
type Options struct {
	RatingPolicy       RatingPolicy
	RecentReviewsCap   int
	PropagationTimeout time.Duration
}

// Engine bundles the consistency components that share one catalog.
type Engine struct {
	References *References
	Counters   *Counters
	Ratings    *Ratings
	Snapshots  *Snapshots

	logger  *slog.Logger
	timeout time.Duration
}

// New wires every component against catalog.
func New(catalog store.Catalog, logger *slog.Logger, opts Options) *Engine {
	timeout := opts.PropagationTimeout
	if timeout <= 0 {
		timeout = DefaultPropagationTimeout
	}
	return &Engine{
		References: NewReferences(catalog, logger),
		Counters:   NewCounters(catalog, logger),
		Ratings:    NewRatings(catalog, logger, opts.RatingPolicy),
		Snapshots:  NewSnapshots(catalog, logger, opts.RecentReviewsCap),
		logger:     logger,
		timeout:    timeout,
	}
}

// Begin starts the outcome of one mutation.
func (e *Engine) Begin() *Outcome {
	return NewOutcome(e.logger)
}

// Propagate moves out to the secondary stage and returns the context the
// secondary writes must use.
func (e *Engine) Propagate(ctx context.Context, out *Outcome) (context.Context, context.CancelFunc) {
	out.Advance(StagePropagating)
	return Detach(ctx, e.timeout)
}
