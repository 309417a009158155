package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/normalize"
)

// RecordColumns are the identity and timestamp columns shared by every table.
type RecordColumns struct {
	ID        string `db:"id"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func toRecordColumns(r domain.Record) RecordColumns {
	return RecordColumns{
		ID:        r.ID,
		CreatedAt: formatTime(r.CreatedAt),
		UpdatedAt: formatTime(r.UpdatedAt),
	}
}

func (c RecordColumns) domain() (domain.Record, error) {
	created, err := parseTime(c.CreatedAt)
	if err != nil {
		return domain.Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	updated, err := parseTime(c.UpdatedAt)
	if err != nil {
		return domain.Record{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return domain.Record{ID: c.ID, CreatedAt: created, UpdatedAt: updated}, nil
}

type authorRow struct {
	RecordColumns
	Name      string `db:"name"`
	Biography string `db:"biography"`
	BirthDate string `db:"birth_date"`
	DeathDate string `db:"death_date"`
	Country   string `db:"country"`
	BookCount int    `db:"book_count"`
}

func toAuthorRow(a *domain.Author) (authorRow, error) {
	return authorRow{
		RecordColumns: toRecordColumns(a.Record),
		Name:          a.Name,
		Biography:     a.Biography,
		BirthDate:     a.BirthDate,
		DeathDate:     a.DeathDate,
		Country:       a.Country,
		BookCount:     a.BookCount,
	}, nil
}

func (r *authorRow) domain() (*domain.Author, error) {
	rec, err := r.RecordColumns.domain()
	if err != nil {
		return nil, err
	}
	return &domain.Author{
		Record:    rec,
		Name:      r.Name,
		Biography: r.Biography,
		BirthDate: r.BirthDate,
		DeathDate: r.DeathDate,
		Country:   r.Country,
		BookCount: r.BookCount,
	}, nil
}

type categoryRow struct {
	RecordColumns
	Name        string `db:"name"`
	NameKey     string `db:"name_key"`
	Description string `db:"description"`
	BookCount   int    `db:"book_count"`
}

func toCategoryRow(c *domain.Category) (categoryRow, error) {
	return categoryRow{
		RecordColumns: toRecordColumns(c.Record),
		Name:          c.Name,
		NameKey:       normalize.Key(c.Name),
		Description:   c.Description,
		BookCount:     c.BookCount,
	}, nil
}

func (r *categoryRow) domain() (*domain.Category, error) {
	rec, err := r.RecordColumns.domain()
	if err != nil {
		return nil, err
	}
	return &domain.Category{
		Record:      rec,
		Name:        r.Name,
		Description: r.Description,
		BookCount:   r.BookCount,
	}, nil
}

type bookRow struct {
	RecordColumns
	Title           string         `db:"title"`
	ISBN            string         `db:"isbn"`
	ISBNKey         sql.NullString `db:"isbn_key"`
	PublicationDate string         `db:"publication_date"`
	Description     string         `db:"description"`
	PageCount       int            `db:"page_count"`
	Language        string         `db:"language"`
	AuthorID        string         `db:"author_id"`
	CategoryIDs     string         `db:"category_ids"`
	Author          sql.NullString `db:"author"`
	Categories      string         `db:"categories"`
	AverageRating   float64        `db:"average_rating"`
	RatingCount     int            `db:"rating_count"`
	RatingTotal     float64        `db:"rating_total"`
}

func toBookRow(b *domain.Book) (bookRow, error) {
	categoryIDs, err := marshalText(nonNil(b.CategoryIDs))
	if err != nil {
		return bookRow{}, err
	}
	categories, err := marshalText(nonNil(b.Categories))
	if err != nil {
		return bookRow{}, err
	}
	var author sql.NullString
	if b.Author != nil {
		s, err := marshalText(b.Author)
		if err != nil {
			return bookRow{}, err
		}
		author = sql.NullString{String: s, Valid: true}
	}

	return bookRow{
		RecordColumns:   toRecordColumns(b.Record),
		Title:           b.Title,
		ISBN:            b.ISBN,
		ISBNKey:         nullString(normalize.ISBN(b.ISBN)),
		PublicationDate: b.PublicationDate,
		Description:     b.Description,
		PageCount:       b.PageCount,
		Language:        b.Language,
		AuthorID:        b.AuthorID,
		CategoryIDs:     categoryIDs,
		Author:          author,
		Categories:      categories,
		AverageRating:   b.AverageRating,
		RatingCount:     b.RatingCount,
		RatingTotal:     b.RatingTotal,
	}, nil
}

func (r *bookRow) domain() (*domain.Book, error) {
	rec, err := r.RecordColumns.domain()
	if err != nil {
		return nil, err
	}
	b := &domain.Book{
		Record:          rec,
		Title:           r.Title,
		ISBN:            r.ISBN,
		PublicationDate: r.PublicationDate,
		Description:     r.Description,
		PageCount:       r.PageCount,
		Language:        r.Language,
		AuthorID:        r.AuthorID,
		AverageRating:   r.AverageRating,
		RatingCount:     r.RatingCount,
		RatingTotal:     r.RatingTotal,
	}
	if err := json.Unmarshal([]byte(r.CategoryIDs), &b.CategoryIDs); err != nil {
		return nil, fmt.Errorf("decode book category_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Categories), &b.Categories); err != nil {
		return nil, fmt.Errorf("decode book categories: %w", err)
	}
	if r.Author.Valid {
		b.Author = &domain.AuthorSnapshot{}
		if err := json.Unmarshal([]byte(r.Author.String), b.Author); err != nil {
			return nil, fmt.Errorf("decode book author: %w", err)
		}
	}
	return b, nil
}

// writeBookCategories replaces the membership rows of a book with its current category set.
func writeBookCategories(ctx context.Context, tx *sql.Tx, b *domain.Book) error {
	s := goqu.Dialect("sqlite3")

	query, args, err := s.Delete("book_categories").Prepared(true).
		Where(goqu.C("book_id").Eq(b.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build book_categories delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear book categories: %w", err)
	}

	ids := domain.DedupeIDs(b.CategoryIDs)
	if len(ids) == 0 {
		return nil
	}

	type row struct {
		BookID     string `db:"book_id"`
		CategoryID string `db:"category_id"`
		Position   int    `db:"position"`
	}
	rows := make([]any, 0, len(ids))
	for i, categoryID := range ids {
		rows = append(rows, row{BookID: b.ID, CategoryID: categoryID, Position: i})
	}

	query, args, err = s.Insert("book_categories").Prepared(true).Rows(rows...).ToSQL()
	if err != nil {
		return fmt.Errorf("build book_categories insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("link book categories: %w", err)
	}
	return nil
}

type reviewRow struct {
	RecordColumns
	BookID  string         `db:"book_id"`
	UserID  string         `db:"user_id"`
	User    sql.NullString `db:"user"`
	Rating  float64        `db:"rating"`
	Title   string         `db:"title"`
	Content string         `db:"content"`
}

func toReviewRow(r *domain.Review) (reviewRow, error) {
	var user sql.NullString
	if r.User != nil {
		s, err := marshalText(r.User)
		if err != nil {
			return reviewRow{}, err
		}
		user = sql.NullString{String: s, Valid: true}
	}
	return reviewRow{
		RecordColumns: toRecordColumns(r.Record),
		BookID:        r.BookID,
		UserID:        r.UserID,
		User:          user,
		Rating:        r.Rating,
		Title:         r.Title,
		Content:       r.Content,
	}, nil
}

func (r *reviewRow) domain() (*domain.Review, error) {
	rec, err := r.RecordColumns.domain()
	if err != nil {
		return nil, err
	}
	review := &domain.Review{
		Record:  rec,
		BookID:  r.BookID,
		UserID:  r.UserID,
		Rating:  r.Rating,
		Title:   r.Title,
		Content: r.Content,
	}
	if r.User.Valid {
		review.User = &domain.UserSnapshot{}
		if err := json.Unmarshal([]byte(r.User.String), review.User); err != nil {
			return nil, fmt.Errorf("decode review user: %w", err)
		}
	}
	return review, nil
}

type userRow struct {
	RecordColumns
	Username      string `db:"username"`
	UsernameKey   string `db:"username_key"`
	Email         string `db:"email"`
	EmailKey      string `db:"email_key"`
	PasswordHash  string `db:"password_hash"`
	FirstName     string `db:"first_name"`
	LastName      string `db:"last_name"`
	ReviewCount   int    `db:"review_count"`
	RecentReviews string `db:"recent_reviews"`
}

func toUserRow(u *domain.User) (userRow, error) {
	recent, err := marshalText(nonNil(u.RecentReviews))
	if err != nil {
		return userRow{}, err
	}
	return userRow{
		RecordColumns: toRecordColumns(u.Record),
		Username:      u.Username,
		UsernameKey:   normalize.Key(u.Username),
		Email:         u.Email,
		EmailKey:      normalize.Email(u.Email),
		PasswordHash:  u.PasswordHash,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		ReviewCount:   u.ReviewCount,
		RecentReviews: recent,
	}, nil
}

func (r *userRow) domain() (*domain.User, error) {
	rec, err := r.RecordColumns.domain()
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Record:       rec,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		ReviewCount:  r.ReviewCount,
	}
	if err := json.Unmarshal([]byte(r.RecentReviews), &u.RecentReviews); err != nil {
		return nil, fmt.Errorf("decode user recent_reviews: %w", err)
	}
	return u, nil
}

func marshalText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(data), nil
}

func nonNil[S ~[]E, E any](s S) S {
	if s == nil {
		return S{}
	}
	return s
}
