// Package sqlite is the relational backend of store.Catalog.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "modernc.org/sqlite"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed persistence for the catalog.
type Store struct {
	db     *sql.DB
	g      goqu.DialectWrapper
	logger *slog.Logger

	authors    *table[domain.Author, authorRow]
	categories *table[domain.Category, categoryRow]
	books      *table[domain.Book, bookRow]
	reviews    *table[domain.Review, reviewRow]
	users      *table[domain.User, userRow]
}

var _ store.Catalog = (*Store)(nil)

// dsn builds the connection string. Pragmas go in the DSN so that every
// pooled connection gets them, and _txlock=immediate makes each transaction
// take the write lock up front.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open creates a new SQLite store at the given path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	s := &Store{
		db:     db,
		g:      goqu.Dialect("sqlite3"),
		logger: logger,
	}
	s.initTables()

	if logger != nil {
		logger.Info("SQLite database opened successfully", "path", path)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Authors implements store.Catalog.
func (s *Store) Authors() store.Collection[domain.Author] { return s.authors }

// Categories implements store.Catalog.
func (s *Store) Categories() store.Collection[domain.Category] { return s.categories }

// Books implements store.Catalog.
func (s *Store) Books() store.Collection[domain.Book] { return s.books }

// Reviews implements store.Catalog.
func (s *Store) Reviews() store.Collection[domain.Review] { return s.reviews }

// Users implements store.Catalog.
func (s *Store) Users() store.Collection[domain.User] { return s.users }

func (s *Store) initTables() {
	s.authors = &table[domain.Author, authorRow]{
		s:        s,
		kind:     domain.KindAuthor,
		name:     "authors",
		record:   func(a *domain.Author) *domain.Record { return &a.Record },
		toRow:    toAuthorRow,
		fromRow:  (*authorRow).domain,
		counters: map[store.Counter]string{store.CounterBookCount: "book_count"},
	}

	s.categories = &table[domain.Category, categoryRow]{
		s:       s,
		kind:    domain.KindCategory,
		name:    "categories",
		record:  func(c *domain.Category) *domain.Record { return &c.Record },
		toRow:   toCategoryRow,
		fromRow: (*categoryRow).domain,
		fields: map[store.Field]column{
			store.FieldName: {name: "name_key", transform: normalize.Key},
		},
		counters: map[store.Counter]string{store.CounterBookCount: "book_count"},
		uniques:  []unique{{columns: "categories.name_key", constraint: store.ConstraintCategoryName}},
	}

	s.books = &table[domain.Book, bookRow]{
		s:       s,
		kind:    domain.KindBook,
		name:    "books",
		record:  func(b *domain.Book) *domain.Record { return &b.Record },
		toRow:   toBookRow,
		fromRow: (*bookRow).domain,
		fields: map[store.Field]column{
			store.FieldAuthorID: {name: "author_id"},
			store.FieldISBN:     {name: "isbn_key", transform: normalize.ISBN},
			store.FieldCategoryIDs: {
				set:  true,
				join: membership{table: "book_categories", owner: "book_id", member: "category_id"},
			},
		},
		uniques:    []unique{{columns: "books.isbn_key", constraint: store.ConstraintISBN}},
		afterWrite: writeBookCategories,
	}

	s.reviews = &table[domain.Review, reviewRow]{
		s:       s,
		kind:    domain.KindReview,
		name:    "reviews",
		record:  func(r *domain.Review) *domain.Record { return &r.Record },
		toRow:   toReviewRow,
		fromRow: (*reviewRow).domain,
		fields: map[store.Field]column{
			store.FieldBookID: {name: "book_id"},
			store.FieldUserID: {name: "user_id"},
		},
		uniques: []unique{{columns: "reviews.book_id, reviews.user_id", constraint: store.ConstraintBookUser}},
	}

	s.users = &table[domain.User, userRow]{
		s:       s,
		kind:    domain.KindUser,
		name:    "users",
		record:  func(u *domain.User) *domain.Record { return &u.Record },
		toRow:   toUserRow,
		fromRow: (*userRow).domain,
		fields: map[store.Field]column{
			store.FieldUsername: {name: "username_key", transform: normalize.Key},
			store.FieldEmail:    {name: "email_key", transform: normalize.Email},
		},
		counters: map[store.Counter]string{store.CounterReviewCount: "review_count"},
		uniques: []unique{
			{columns: "users.username_key", constraint: store.ConstraintUsername},
			{columns: "users.email_key", constraint: store.ConstraintEmail},
		},
	}
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// nullString returns a sql.NullString that is NULL for the empty string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
