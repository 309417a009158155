// Package consistency keeps derived catalog data correct without cross-record
// transactions: reference checks before a write, then counters, embedded
// snapshots and rating aggregates as best-effort secondary writes.
package consistency

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
)

// Stage is a step of the mutation pipeline.
type Stage string

// Pipeline stages, in order.
const (
	StageValidating      Stage = "validating"
	StageWritingPrimary  Stage = "writing-primary"
	StagePropagating     Stage = "propagating-secondary"
	StageDone            Stage = "done"
	StageDoneWithWarning Stage = "done-with-warning"
)

// Secondary write families reported in warnings.
const (
	StepCounters   = "counters"
	StepSnapshots  = "snapshots"
	StepAggregates = "aggregates"
	StepSearch     = "search"
)

// DefaultPropagationTimeout bounds the secondary writes of one mutation.
const DefaultPropagationTimeout = 10 * time.Second

// Warning describes a secondary write that did not complete. The primary
// write it belongs to is committed.
type Warning struct {
	Code    domainerrors.Code `json:"code"`
	Stage   string            `json:"stage"`
	Kind    domain.Kind       `json:"kind"`
	ID      string            `json:"id"`
	Message string            `json:"message"`
}

// Outcome tracks one mutation through the pipeline. It is safe for concurrent use.
type Outcome struct {
	mu       sync.Mutex
	stage    Stage
	warnings []Warning
	logger   *slog.Logger
}

// NewOutcome starts a mutation at StageValidating.
func NewOutcome(logger *slog.Logger) *Outcome {
	return &Outcome{stage: StageValidating, logger: logger}
}

// Advance moves the outcome to stage.
func (o *Outcome) Advance(stage Stage) {
	o.mu.Lock()
	o.stage = stage
	o.mu.Unlock()
}

// Warn records a failed secondary write and logs it. A nil Outcome discards the warning.
func (o *Outcome) Warn(ctx context.Context, step string, kind domain.Kind, id string, err error) {
	if o == nil {
		return
	}
	w := Warning{
		Code:    domainerrors.CodePropagation,
		Stage:   step,
		Kind:    kind,
		ID:      id,
		Message: err.Error(),
	}

	o.mu.Lock()
	o.warnings = append(o.warnings, w)
	o.mu.Unlock()

	if o.logger != nil {
		o.logger.WarnContext(ctx, "secondary write failed",
			"step", step,
			"kind", kind,
			"id", id,
			"error", err,
		)
	}
}

// Finish closes the outcome as done or done-with-warning and returns the final stage.
func (o *Outcome) Finish() Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.warnings) > 0 {
		o.stage = StageDoneWithWarning
	} else {
		o.stage = StageDone
	}
	return o.stage
}

// Stage returns the current stage.
func (o *Outcome) Stage() Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// Warnings returns a copy of the recorded warnings.
func (o *Outcome) Warnings() []Warning {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.warnings)
}

// Detach returns a context for secondary writes. It keeps ctx's values but
// not its cancellation, so a caller that goes away after the primary write
// commits does not cut propagation short. timeout bounds the work instead.
func Detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultPropagationTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
