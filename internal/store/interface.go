// Package store defines the persistence contract for the catalog and its
// badger document backend. The relational backend lives in store/sqlite.
package store

import (
	"context"
	"iter"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// Catalog gives access to one collection per record kind.
type Catalog interface {
	Authors() Collection[domain.Author]
	Categories() Collection[domain.Category]
	Books() Collection[domain.Book]
	Reviews() Collection[domain.Review]
	Users() Collection[domain.User]
	Close() error
}

// Change is the pair of states captured inside the transaction that applied an update.
type Change[T any] struct {
	Before *T
	After  *T
}

// Mutator edits a record in place during Update. Returning an error aborts the write.
type Mutator[T any] func(*T) error

// Collection is the single-record contract every backend implements.
// No operation spans more than one record.
type Collection[T any] interface {
	// Get returns ErrNotFound when id does not exist.
	Get(ctx context.Context, id string) (*T, error)

	// GetMany returns the records found; missing ids are absent from the map.
	GetMany(ctx context.Context, ids []string) (map[string]*T, error)

	// Create stores a new record. Unique violations return a *ConstraintError.
	Create(ctx context.Context, record *T) error

	// Update reads the record, applies fn and writes it back atomically.
	Update(ctx context.Context, id string, fn Mutator[T]) (*Change[T], error)

	// Increment adds delta to a derived counter, flooring at zero, and returns the new value.
	Increment(ctx context.Context, id string, counter Counter, delta int) (int, error)

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// FindBy returns records whose scalar field equals value.
	FindBy(ctx context.Context, field Field, value string) ([]*T, error)

	// FindByMember returns records whose set field contains value.
	FindByMember(ctx context.Context, field Field, value string) ([]*T, error)

	// Count returns how many records match value on a scalar or set field.
	Count(ctx context.Context, field Field, value string) (int, error)

	// List iterates over every record.
	List(ctx context.Context) iter.Seq2[*T, error]
}
