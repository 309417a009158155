package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/normalize"
)

const (
	maxTxnAttempts = 50
	txnBackoff     = 2 * time.Millisecond
)

// Store is the badger document backend of Catalog.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	authors    *Entity[domain.Author]
	categories *Entity[domain.Category]
	books      *Entity[domain.Book]
	reviews    *Entity[domain.Review]
	users      *Entity[domain.User]
}

var _ Catalog = (*Store)(nil)

// New opens (or creates) a badger database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.initAuthors()
	s.initCategories()
	s.initBooks()
	s.initReviews()
	s.initUsers()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}
	return s, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Authors implements Catalog.
func (s *Store) Authors() Collection[domain.Author] { return s.authors }

// Categories implements Catalog.
func (s *Store) Categories() Collection[domain.Category] { return s.categories }

// Books implements Catalog.
func (s *Store) Books() Collection[domain.Book] { return s.books }

// Reviews implements Catalog.
func (s *Store) Reviews() Collection[domain.Review] { return s.reviews }

// Users implements Catalog.
func (s *Store) Users() Collection[domain.User] { return s.users }

// update runs fn in a read-write transaction, retrying when badger reports a
// conflict with a concurrent transaction.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 1; ; attempt++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt == maxTxnAttempts {
			return ErrConflict.WithCause(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * txnBackoff):
		}
	}
}

func (s *Store) initAuthors() {
	s.authors = NewEntity(s, domain.KindAuthor, "author:", func(a *domain.Author) *domain.Record { return &a.Record }).
		WithCounter(CounterBookCount, func(a *domain.Author) *int { return &a.BookCount })
}

func (s *Store) initCategories() {
	s.categories = NewEntity(s, domain.KindCategory, "category:", func(c *domain.Category) *domain.Record { return &c.Record }).
		WithUnique("name", FieldName, ConstraintCategoryName,
			func(c *domain.Category) string { return normalize.Key(c.Name) },
			normalize.Key,
		).
		WithCounter(CounterBookCount, func(c *domain.Category) *int { return &c.BookCount })
}

func (s *Store) initBooks() {
	s.books = NewEntity(s, domain.KindBook, "book:", func(b *domain.Book) *domain.Record { return &b.Record }).
		WithIndex(FieldAuthorID, func(b *domain.Book) string { return b.AuthorID }).
		WithSetIndex(FieldCategoryIDs, func(b *domain.Book) []string { return b.CategoryIDs }).
		WithUnique("isbn", FieldISBN, ConstraintISBN,
			func(b *domain.Book) string { return normalize.ISBN(b.ISBN) },
			normalize.ISBN,
		)
}

func (s *Store) initReviews() {
	s.reviews = NewEntity(s, domain.KindReview, "review:", func(r *domain.Review) *domain.Record { return &r.Record }).
		WithIndex(FieldBookID, func(r *domain.Review) string { return r.BookID }).
		WithIndex(FieldUserID, func(r *domain.Review) string { return r.UserID }).
		WithUnique("book_user", "", ConstraintBookUser, reviewPairKey, nil)
}

func (s *Store) initUsers() {
	s.users = NewEntity(s, domain.KindUser, "user:", func(u *domain.User) *domain.Record { return &u.Record }).
		WithUnique("username", FieldUsername, ConstraintUsername,
			func(u *domain.User) string { return normalize.Key(u.Username) },
			normalize.Key,
		).
		WithUnique("email", FieldEmail, ConstraintEmail,
			func(u *domain.User) string { return normalize.Email(u.Email) },
			normalize.Email,
		).
		WithCounter(CounterReviewCount, func(u *domain.User) *int { return &u.ReviewCount })
}

func reviewPairKey(r *domain.Review) string {
	if r.BookID == "" || r.UserID == "" {
		return ""
	}
	return r.BookID + "|" + r.UserID
}
