package storetest

import (
	"context"
	"sync"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
)

// Op names a collection operation that a Faulty catalog can fail.
type Op string

// Operations that can be failed.
const (
	OpGet       Op = "get"
	OpGetMany   Op = "get_many"
	OpUpdate    Op = "update"
	OpIncrement Op = "increment"
	OpFind      Op = "find"
)

type fault struct {
	kind domain.Kind
	op   Op
	id   string // empty matches any id
}

// Faulty wraps a catalog and fails chosen operations, for exercising the
// paths that handle secondary write failures.
type Faulty struct {
	store.Catalog

	mu     sync.Mutex
	faults map[fault]error
	calls  map[fault]int
}

// NewFaulty wraps c. No operation fails until Fail is called.
func NewFaulty(c store.Catalog) *Faulty {
	return &Faulty{
		Catalog: c,
		faults:  make(map[fault]error),
		calls:   make(map[fault]int),
	}
}

// Fail makes op on kind return err. An empty id fails every record. For
// OpGetMany a non-empty id instead drops that record from batch results.
func (f *Faulty) Fail(kind domain.Kind, op Op, id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[fault{kind, op, id}] = err
}

// Heal removes every injected fault.
func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.faults)
}

// Calls returns how many times op ran against kind, failed or not.
func (f *Faulty) Calls(kind domain.Kind, op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[fault{kind: kind, op: op}]
}

func (f *Faulty) check(kind domain.Kind, op Op, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[fault{kind: kind, op: op}]++
	if err, ok := f.faults[fault{kind, op, id}]; ok {
		return err
	}
	return f.faults[fault{kind: kind, op: op}]
}

func (f *Faulty) Authors() store.Collection[domain.Author] {
	return &faultyCollection[domain.Author]{Collection: f.Catalog.Authors(), f: f, kind: domain.KindAuthor}
}

func (f *Faulty) Categories() store.Collection[domain.Category] {
	return &faultyCollection[domain.Category]{Collection: f.Catalog.Categories(), f: f, kind: domain.KindCategory}
}

func (f *Faulty) Books() store.Collection[domain.Book] {
	return &faultyCollection[domain.Book]{Collection: f.Catalog.Books(), f: f, kind: domain.KindBook}
}

func (f *Faulty) Reviews() store.Collection[domain.Review] {
	return &faultyCollection[domain.Review]{Collection: f.Catalog.Reviews(), f: f, kind: domain.KindReview}
}

func (f *Faulty) Users() store.Collection[domain.User] {
	return &faultyCollection[domain.User]{Collection: f.Catalog.Users(), f: f, kind: domain.KindUser}
}

type faultyCollection[T any] struct {
	store.Collection[T]
	f    *Faulty
	kind domain.Kind
}

func (c *faultyCollection[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := c.f.check(c.kind, OpGet, id); err != nil {
		return nil, err
	}
	return c.Collection.Get(ctx, id)
}

func (c *faultyCollection[T]) GetMany(ctx context.Context, ids []string) (map[string]*T, error) {
	if err := c.f.check(c.kind, OpGetMany, ""); err != nil {
		return nil, err
	}
	found, err := c.Collection.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	// A per-id GetMany fault hides that record from the batch.
	for _, id := range ids {
		if c.f.faultFor(c.kind, OpGetMany, id) {
			delete(found, id)
		}
	}
	return found, nil
}

func (c *faultyCollection[T]) Update(ctx context.Context, id string, fn store.Mutator[T]) (*store.Change[T], error) {
	if err := c.f.check(c.kind, OpUpdate, id); err != nil {
		return nil, err
	}
	return c.Collection.Update(ctx, id, fn)
}

func (c *faultyCollection[T]) Increment(ctx context.Context, id string, counter store.Counter, delta int) (int, error) {
	if err := c.f.check(c.kind, OpIncrement, id); err != nil {
		return 0, err
	}
	return c.Collection.Increment(ctx, id, counter, delta)
}

func (c *faultyCollection[T]) FindBy(ctx context.Context, field store.Field, value string) ([]*T, error) {
	if err := c.f.check(c.kind, OpFind, ""); err != nil {
		return nil, err
	}
	return c.Collection.FindBy(ctx, field, value)
}

func (c *faultyCollection[T]) FindByMember(ctx context.Context, field store.Field, value string) ([]*T, error) {
	if err := c.f.check(c.kind, OpFind, ""); err != nil {
		return nil, err
	}
	return c.Collection.FindByMember(ctx, field, value)
}

func (f *Faulty) faultFor(kind domain.Kind, op Op, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.faults[fault{kind, op, id}]
	return ok && id != ""
}
