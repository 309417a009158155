// Package service implements the catalog operations on top of the store.
//
// Every mutation runs the same pipeline: request validation, reference
// checks, one primary write, then best-effort secondary writes (counters,
// snapshots, rating aggregates, search index). Once the primary write has
// committed, a failed secondary write is returned as a warning next to the
// result instead of failing the request.
package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/listenupapp/catalog-server/internal/consistency"
	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
)

// errNoFields is returned by partial updates that set nothing.
var errNoFields = domainerrors.Validation("No fields to update")

// duplicateMessages maps store constraints to client messages.
var duplicateMessages = map[string]string{
	store.ConstraintISBN:         "A book with this ISBN already exists",
	store.ConstraintCategoryName: "A category with this name already exists",
	store.ConstraintBookUser:     "User has already reviewed this book",
	store.ConstraintUsername:     "Username is already taken",
	store.ConstraintEmail:        "Email is already registered",
}

// storeError translates a store failure on kind/id into a domain error.
// Domain errors raised inside mutators pass through unchanged.
func storeError(err error, kind domain.Kind, id string) error {
	if err == nil {
		return nil
	}

	var de *domainerrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFoundf("%s with ID %s not found", kind.Label(), id).WithCause(err)
	}
	if constraint, ok := store.Constraint(err); ok {
		msg, known := duplicateMessages[constraint]
		if !known {
			msg = fmt.Sprintf("%s violates unique constraint %s", kind.Label(), constraint)
		}
		return domainerrors.Duplicate(constraint, msg).WithCause(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to access %s", kind)
}

// collect drains a store iterator.
func collect[T any](seq iter.Seq2[*T, error]) ([]*T, error) {
	var out []*T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// finish closes the outcome and logs how the mutation ended.
func finish(ctx context.Context, logger *slog.Logger, out *consistency.Outcome, msg string, kind domain.Kind, id string) []consistency.Warning {
	stage := out.Finish()
	warnings := out.Warnings()
	if stage == consistency.StageDoneWithWarning {
		logger.WarnContext(ctx, msg, "kind", kind, "id", id, "stage", stage, "warnings", len(warnings))
	} else {
		logger.InfoContext(ctx, msg, "kind", kind, "id", id)
	}
	return warnings
}
