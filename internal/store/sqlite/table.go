package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
)

// listPageSize bounds how many rows List holds in memory at once.
const listPageSize = 200

// column maps a queryable field onto the schema.
type column struct {
	name      string
	transform func(string) string
	set       bool
	join      membership
}

// membership describes the join table that backs a set field.
type membership struct {
	table  string
	owner  string
	member string
}

// unique maps a UNIQUE index, as named in SQLite's error text, to a constraint name.
type unique struct {
	columns    string
	constraint string
}

// table implements store.Collection for one domain type T stored as rows of R.
type table[T any, R any] struct {
	s        *Store
	kind     domain.Kind
	name     string
	record   func(*T) *domain.Record
	toRow    func(*T) (R, error)
	fromRow  func(*R) (*T, error)
	fields   map[store.Field]column
	counters map[store.Counter]string
	uniques  []unique

	// afterWrite runs in the same transaction after an insert or update.
	afterWrite func(ctx context.Context, tx *sql.Tx, v *T) error
}

func (t *table[T, R]) from() *goqu.SelectDataset {
	return t.s.g.From(t.name).Prepared(true)
}

func (t *table[T, R]) get(ctx context.Context, q sqlscan.Querier, id string) (*T, error) {
	query, args, err := t.from().Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", t.kind, err)
	}

	var row R
	if err := sqlscan.Get(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound.WithCause(fmt.Errorf("%s %s", t.kind, id))
		}
		return nil, fmt.Errorf("get %s: %w", t.kind, err)
	}
	return t.fromRow(&row)
}

func (t *table[T, R]) selectRows(ctx context.Context, ds *goqu.SelectDataset) ([]*T, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", t.kind, err)
	}

	var rows []*R
	if err := sqlscan.Select(ctx, t.s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", t.kind, err)
	}

	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		v, err := t.fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Get implements store.Collection.
func (t *table[T, R]) Get(ctx context.Context, id string) (*T, error) {
	return t.get(ctx, t.s.db, id)
}

// GetMany implements store.Collection.
func (t *table[T, R]) GetMany(ctx context.Context, ids []string) (map[string]*T, error) {
	found := make(map[string]*T, len(ids))
	ids = domain.DedupeIDs(ids)
	if len(ids) == 0 {
		return found, nil
	}

	records, err := t.selectRows(ctx, t.from().Where(goqu.C("id").In(ids)))
	if err != nil {
		return nil, err
	}
	for _, v := range records {
		found[t.record(v).ID] = v
	}
	return found, nil
}

// Create implements store.Collection.
func (t *table[T, R]) Create(ctx context.Context, v *T) error {
	rec := t.record(v)
	if rec.ID == "" {
		return store.ErrInvalidInput.WithCause(fmt.Errorf("%s id is required", t.kind))
	}
	if rec.CreatedAt.IsZero() {
		rec.InitTimestamps()
	}

	row, err := t.toRow(v)
	if err != nil {
		return err
	}
	query, args, err := t.s.g.Insert(t.name).Prepared(true).Rows(row).ToSQL()
	if err != nil {
		return fmt.Errorf("build %s insert: %w", t.kind, err)
	}

	return t.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return t.translate(err)
		}
		if t.afterWrite != nil {
			return t.afterWrite(ctx, tx, v)
		}
		return nil
	})
}

// Update implements store.Collection. The read and the write share one
// immediate transaction, so concurrent updates of the same row serialize.
func (t *table[T, R]) Update(ctx context.Context, id string, fn store.Mutator[T]) (*store.Change[T], error) {
	var change *store.Change[T]
	err := t.inTx(ctx, func(tx *sql.Tx) error {
		before, err := t.get(ctx, tx, id)
		if err != nil {
			return err
		}
		after, err := t.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(after); err != nil {
			return err
		}

		rec := t.record(after)
		rec.ID = id
		rec.CreatedAt = t.record(before).CreatedAt
		rec.Touch()

		row, err := t.toRow(after)
		if err != nil {
			return err
		}
		query, args, err := t.s.g.Update(t.name).Prepared(true).
			Set(row).
			Where(goqu.C("id").Eq(id)).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build %s update: %w", t.kind, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return t.translate(err)
		}
		if t.afterWrite != nil {
			if err := t.afterWrite(ctx, tx, after); err != nil {
				return err
			}
		}

		change = &store.Change[T]{Before: before, After: after}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// Increment implements store.Collection.
func (t *table[T, R]) Increment(ctx context.Context, id string, counter store.Counter, delta int) (int, error) {
	col, ok := t.counters[counter]
	if !ok {
		return 0, store.InvalidCounter(string(t.kind), counter)
	}

	update, args, err := t.s.g.Update(t.name).Prepared(true).
		Set(goqu.Record{
			col:          goqu.L(fmt.Sprintf("MAX(%s + ?, 0)", col), delta),
			"updated_at": formatTime(time.Now()),
		}).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build %s increment: %w", t.kind, err)
	}
	read, readArgs, err := t.from().Select(goqu.C(col)).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build %s counter query: %w", t.kind, err)
	}

	var value int
	err = t.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, update, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound.WithCause(fmt.Errorf("%s %s", t.kind, id))
		}
		return sqlscan.Get(ctx, tx, &value, read, readArgs...)
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Delete implements store.Collection.
func (t *table[T, R]) Delete(ctx context.Context, id string) error {
	query, args, err := t.s.g.Delete(t.name).Prepared(true).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build %s delete: %w", t.kind, err)
	}
	if _, err := t.s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s: %w", t.kind, err)
	}
	return nil
}

// FindBy implements store.Collection.
func (t *table[T, R]) FindBy(ctx context.Context, field store.Field, value string) ([]*T, error) {
	where, err := t.filter(field, value, false)
	if err != nil {
		return nil, err
	}
	return t.selectRows(ctx, t.from().Where(where).Order(goqu.C("created_at").Asc()))
}

// FindByMember implements store.Collection.
func (t *table[T, R]) FindByMember(ctx context.Context, field store.Field, value string) ([]*T, error) {
	where, err := t.filter(field, value, true)
	if err != nil {
		return nil, err
	}
	return t.selectRows(ctx, t.from().Where(where).Order(goqu.C("created_at").Asc()))
}

// Count implements store.Collection.
func (t *table[T, R]) Count(ctx context.Context, field store.Field, value string) (int, error) {
	col, ok := t.fields[field]
	if !ok {
		return 0, store.InvalidField(string(t.kind), field)
	}
	where, err := t.filter(field, value, col.set)
	if err != nil {
		return 0, err
	}

	query, args, err := t.from().Select(goqu.COUNT("*")).Where(where).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build %s count: %w", t.kind, err)
	}
	var n int
	if err := sqlscan.Get(ctx, t.s.db, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.kind, err)
	}
	return n, nil
}

// List implements store.Collection. Rows are read in id order one page at a
// time, so no cursor stays open while the caller works.
func (t *table[T, R]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		after := ""
		for {
			page, err := t.selectRows(ctx, t.from().
				Where(goqu.C("id").Gt(after)).
				Order(goqu.C("id").Asc()).
				Limit(listPageSize))
			if err != nil {
				yield(nil, err)
				return
			}
			for _, v := range page {
				if !yield(v, nil) {
					return
				}
			}
			if len(page) < listPageSize {
				return
			}
			after = t.record(page[len(page)-1]).ID
		}
	}
}

// filter builds the WHERE expression for field = value, or value ∈ field for set fields.
func (t *table[T, R]) filter(field store.Field, value string, set bool) (exp.Expression, error) {
	col, ok := t.fields[field]
	if !ok || col.set != set {
		return nil, store.InvalidField(string(t.kind), field)
	}
	if col.transform != nil {
		value = col.transform(value)
	}

	if !set {
		return goqu.C(col.name).Eq(value), nil
	}
	members := t.s.g.From(col.join.table).
		Select(goqu.C(col.join.owner)).
		Where(goqu.C(col.join.member).Eq(value))
	return goqu.C("id").In(members), nil
}

func (t *table[T, R]) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := t.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// translate maps SQLite constraint failures onto store errors.
func (t *table[T, R]) translate(err error) error {
	if !isUniqueViolation(err) {
		return fmt.Errorf("write %s: %w", t.kind, err)
	}
	msg := err.Error()
	for _, u := range t.uniques {
		if strings.Contains(msg, u.columns) {
			return &store.ConstraintError{Constraint: u.constraint}
		}
	}
	return store.ErrAlreadyExists.WithCause(err)
}
