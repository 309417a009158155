package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// Entity provides the Collection operations for one domain type on badger.
type Entity[T any] struct {
	store    *Store
	kind     domain.Kind
	prefix   string
	record   func(*T) *domain.Record
	indexes  []Index[T]
	counters map[Counter]func(*T) *int
}

// Index defines a secondary index on an entity.
type Index[T any] struct {
	name       string
	field      Field               // empty when the index only enforces uniqueness
	constraint string              // set for unique indexes
	set        bool                // keyGen yields one key per set member
	keyGen     func(*T) []string   // normalized index values; empty values are skipped
	transform  func(string) string // applied to lookup values
}

func (idx Index[T]) unique() bool { return idx.constraint != "" }

func (idx Index[T]) keys(v *T) []string {
	out := make([]string, 0, 1)
	for _, k := range idx.keyGen(v) {
		if k != "" && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// NewEntity creates a new Entity for type T stored under prefix.
func NewEntity[T any](s *Store, kind domain.Kind, prefix string, record func(*T) *domain.Record) *Entity[T] {
	return &Entity[T]{
		store:    s,
		kind:     kind,
		prefix:   prefix,
		record:   record,
		counters: make(map[Counter]func(*T) *int),
	}
}

// WithIndex adds a non-unique index on a scalar field.
func (e *Entity[T]) WithIndex(field Field, keyGen func(*T) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:   string(field),
		field:  field,
		keyGen: func(v *T) []string { return []string{keyGen(v)} },
	})
	return e
}

// WithSetIndex adds a non-unique index with one entry per member of a set field.
func (e *Entity[T]) WithSetIndex(field Field, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:   string(field),
		field:  field,
		set:    true,
		keyGen: keyGen,
	})
	return e
}

// WithUnique adds a unique index. Pass an empty field for constraints that are not queryable.
// transform normalizes lookup values the same way keyGen normalizes stored ones.
func (e *Entity[T]) WithUnique(name string, field Field, constraint string, keyGen func(*T) string, transform func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:       name,
		field:      field,
		constraint: constraint,
		keyGen:     func(v *T) []string { return []string{keyGen(v)} },
		transform:  transform,
	})
	return e
}

// WithCounter registers a derived counter that Increment may change.
func (e *Entity[T]) WithCounter(counter Counter, field func(*T) *int) *Entity[T] {
	e.counters[counter] = field
	return e
}

// Get retrieves an entity by ID.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		var err error
		entity, err = e.load(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// GetMany retrieves every entity in ids that exists, keyed by ID.
func (e *Entity[T]) GetMany(ctx context.Context, ids []string) (map[string]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found := make(map[string]*T, len(ids))
	err := e.store.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if _, ok := found[id]; ok || id == "" {
				continue
			}
			entity, err := e.load(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			found[id] = entity
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Create stores a new entity. The entity must carry its ID.
// Returns ErrAlreadyExists for a duplicate ID and a *ConstraintError for a unique index clash.
func (e *Entity[T]) Create(ctx context.Context, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := e.record(entity)
	if rec.ID == "" {
		return ErrInvalidInput.WithCause(fmt.Errorf("%s id is required", e.kind))
	}
	if rec.CreatedAt.IsZero() {
		rec.InitTimestamps()
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.kind, err)
	}

	return e.store.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(recordKey(e.prefix, rec.ID))
		if err == nil {
			return ErrAlreadyExists.WithCause(fmt.Errorf("%s %s", e.kind, rec.ID))
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}

		if err := e.checkUnique(txn, rec.ID, entity); err != nil {
			return err
		}
		if err := txn.Set(recordKey(e.prefix, rec.ID), data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return e.writeIndexes(txn, rec.ID, nil, entity)
	})
}

// Update applies fn to the stored entity inside one transaction and returns
// the states before and after. fn may run more than once if the transaction
// conflicts, each time on a fresh copy of the stored entity.
func (e *Entity[T]) Update(ctx context.Context, id string, fn Mutator[T]) (*Change[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var change *Change[T]
	err := e.store.update(ctx, func(txn *badger.Txn) error {
		before, err := e.load(txn, id)
		if err != nil {
			return err
		}
		after, err := e.load(txn, id)
		if err != nil {
			return err
		}

		if err := fn(after); err != nil {
			return err
		}

		// Identity and creation time are owned by the store.
		rec := e.record(after)
		rec.ID = id
		rec.CreatedAt = e.record(before).CreatedAt
		rec.Touch()

		if err := e.checkUnique(txn, id, after); err != nil {
			return err
		}

		data, err := json.Marshal(after)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", e.kind, err)
		}
		if err := e.deleteIndexes(txn, id, before, after); err != nil {
			return err
		}
		if err := txn.Set(recordKey(e.prefix, id), data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		if err := e.writeIndexes(txn, id, before, after); err != nil {
			return err
		}

		change = &Change[T]{Before: before, After: after}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// Increment adds delta to counter, flooring the result at zero.
func (e *Entity[T]) Increment(ctx context.Context, id string, counter Counter, delta int) (int, error) {
	field, ok := e.counters[counter]
	if !ok {
		return 0, InvalidCounter(string(e.kind), counter)
	}

	change, err := e.Update(ctx, id, func(v *T) error {
		p := field(v)
		*p = max(*p+delta, 0)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return *field(change.After), nil
}

// Delete deletes an entity by ID.
// This operation is idempotent - it does not return an error if the entity does not exist.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.store.update(ctx, func(txn *badger.Txn) error {
		entity, err := e.load(txn, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := e.deleteIndexes(txn, id, entity, nil); err != nil {
			return err
		}
		if err := txn.Delete(recordKey(e.prefix, id)); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		return nil
	})
}

// FindBy returns entities whose scalar field equals value.
func (e *Entity[T]) FindBy(ctx context.Context, field Field, value string) ([]*T, error) {
	idx, err := e.index(field, false)
	if err != nil {
		return nil, err
	}
	return e.find(ctx, idx, value)
}

// FindByMember returns entities whose set field contains value.
func (e *Entity[T]) FindByMember(ctx context.Context, field Field, value string) ([]*T, error) {
	idx, err := e.index(field, true)
	if err != nil {
		return nil, err
	}
	return e.find(ctx, idx, value)
}

// Count returns how many entities match value on field.
func (e *Entity[T]) Count(ctx context.Context, field Field, value string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	idx, ok := e.lookupIndex(field)
	if !ok {
		return 0, InvalidField(string(e.kind), field)
	}

	var n int
	err := e.store.db.View(func(txn *badger.Txn) error {
		ids, err := e.indexIDs(txn, idx, value)
		n = len(ids)
		return err
	})
	return n, err
}

// List returns an iterator over all entities.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(e.prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}

				if isIndexKey(e.prefix, it.Item().Key()) {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					err = fmt.Errorf("failed to unmarshal %s: %w", e.kind, err)
					yield(nil, err)
					return err
				}

				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

func (e *Entity[T]) load(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(recordKey(e.prefix, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound.WithCause(fmt.Errorf("%s %s", e.kind, id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	var entity T
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", e.kind, err)
	}
	return &entity, nil
}

func (e *Entity[T]) find(ctx context.Context, idx Index[T], value string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*T
	err := e.store.db.View(func(txn *badger.Txn) error {
		ids, err := e.indexIDs(txn, idx, value)
		if err != nil {
			return err
		}
		out = make([]*T, 0, len(ids))
		for _, id := range ids {
			entity, err := e.load(txn, id)
			if errors.Is(err, ErrNotFound) {
				// Index entry without a record; the next write to that record repairs it.
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Entity[T]) indexIDs(txn *badger.Txn, idx Index[T], value string) ([]string, error) {
	if idx.transform != nil {
		value = idx.transform(value)
	}
	if value == "" {
		return nil, nil
	}

	if idx.unique() {
		item, err := txn.Get(uniqueKey(e.prefix, idx.name, value))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get index key: %w", err)
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		return []string{string(id)}, nil
	}

	prefix := memberPrefix(e.prefix, idx.name, value)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Rewind(); it.Valid(); it.Next() {
		ids = append(ids, string(it.Item().Key()[len(prefix):]))
	}
	return ids, nil
}

func (e *Entity[T]) index(field Field, set bool) (Index[T], error) {
	idx, ok := e.lookupIndex(field)
	if !ok || idx.set != set {
		return Index[T]{}, InvalidField(string(e.kind), field)
	}
	return idx, nil
}

func (e *Entity[T]) lookupIndex(field Field) (Index[T], bool) {
	if field == "" {
		return Index[T]{}, false
	}
	for _, idx := range e.indexes {
		if idx.field == field {
			return idx, true
		}
	}
	return Index[T]{}, false
}

// checkUnique fails when a unique value of entity is held by another record.
func (e *Entity[T]) checkUnique(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.indexes {
		if !idx.unique() {
			continue
		}
		for _, value := range idx.keys(entity) {
			item, err := txn.Get(uniqueKey(e.prefix, idx.name, value))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to check index key: %w", err)
			}
			owner, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if string(owner) != id {
				return &ConstraintError{Constraint: idx.constraint, Value: value}
			}
		}
	}
	return nil
}

// deleteIndexes removes index entries of old that next no longer has.
func (e *Entity[T]) deleteIndexes(txn *badger.Txn, id string, old, next *T) error {
	if old == nil {
		return nil
	}
	for _, idx := range e.indexes {
		var keep []string
		if next != nil {
			keep = idx.keys(next)
		}
		for _, value := range idx.keys(old) {
			if slices.Contains(keep, value) {
				continue
			}
			if err := txn.Delete(e.indexKey(idx, value, id)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	return nil
}

// writeIndexes adds index entries of next that old did not have.
func (e *Entity[T]) writeIndexes(txn *badger.Txn, id string, old, next *T) error {
	for _, idx := range e.indexes {
		var have []string
		if old != nil {
			have = idx.keys(old)
		}
		for _, value := range idx.keys(next) {
			if slices.Contains(have, value) {
				continue
			}
			if err := txn.Set(e.indexKey(idx, value, id), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) indexKey(idx Index[T], value, id string) []byte {
	if idx.unique() {
		return uniqueKey(e.prefix, idx.name, value)
	}
	return memberKey(e.prefix, idx.name, value, id)
}
