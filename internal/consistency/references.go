package consistency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
)

// Reference names the records a write is about to point at.
type Reference struct {
	Field string      // request field, used as the error detail key
	Kind  domain.Kind // kind of the referenced records
	IDs   []string
}

// Ref builds a Reference, dropping blank and repeated ids.
func Ref(field string, kind domain.Kind, ids ...string) Reference {
	return Reference{Field: field, Kind: kind, IDs: domain.DedupeIDs(ids)}
}

// References checks that referenced records exist before a primary write.
type References struct {
	catalog store.Catalog
	logger  *slog.Logger
}

// NewReferences creates a reference validator.
func NewReferences(catalog store.Catalog, logger *slog.Logger) *References {
	return &References{catalog: catalog, logger: logger}
}

// Validate looks up every id of every reference and reports all misses at once
// as an INVALID_REFERENCE error keyed by field. Lookup failures other than
// not-found abort with an internal error. Validate never writes.
func (r *References) Validate(ctx context.Context, refs ...Reference) error {
	var (
		mu      sync.Mutex
		missing = domainerrors.ReferenceErrors{}
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, ref := range refs {
		if len(ref.IDs) == 0 {
			continue
		}
		g.Go(func() error {
			absent, err := r.missing(gctx, ref)
			if err != nil {
				return err
			}
			if len(absent) == 0 {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range absent {
				missing.Add(ref.Field, fmt.Sprintf("%s with ID %s does not exist", ref.Kind.Label(), id))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to validate references")
	}
	if len(missing) > 0 {
		if r.logger != nil {
			r.logger.DebugContext(ctx, "references rejected", "fields", missing.Fields())
		}
		return domainerrors.InvalidReference(missing)
	}
	return nil
}

func (r *References) missing(ctx context.Context, ref Reference) ([]string, error) {
	switch ref.Kind {
	case domain.KindAuthor:
		return missingIDs(ctx, r.catalog.Authors(), ref.IDs)
	case domain.KindCategory:
		return missingIDs(ctx, r.catalog.Categories(), ref.IDs)
	case domain.KindBook:
		return missingIDs(ctx, r.catalog.Books(), ref.IDs)
	case domain.KindReview:
		return missingIDs(ctx, r.catalog.Reviews(), ref.IDs)
	case domain.KindUser:
		return missingIDs(ctx, r.catalog.Users(), ref.IDs)
	default:
		return nil, fmt.Errorf("unknown record kind %q", ref.Kind)
	}
}

// missingIDs returns the ids that col does not hold, in input order.
func missingIDs[T any](ctx context.Context, col store.Collection[T], ids []string) ([]string, error) {
	found, err := col.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	var absent []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			absent = append(absent, id)
		}
	}
	return absent, nil
}
