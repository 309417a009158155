// Package dto holds the client representations of catalog records and the
// resolver that builds them.
//
// Views always carry complete display blocks. Embedded snapshots that are
// missing or partial on the stored record are filled in by Resolver.
package dto

import (
	"time"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// BookView is the client representation of a book.
// The sum and count behind AverageRating stay internal.
type BookView struct {
	ID              string                    `json:"id"`
	Title           string                    `json:"title"`
	ISBN            string                    `json:"isbn,omitempty"`
	PublicationDate string                    `json:"publication_date,omitempty"`
	Description     string                    `json:"description,omitempty"`
	PageCount       int                       `json:"page_count"`
	Language        string                    `json:"language,omitempty"`
	AuthorID        string                    `json:"author_id"`
	CategoryIDs     []string                  `json:"category_ids"`
	Author          domain.AuthorSnapshot     `json:"author"`
	Categories      []domain.CategorySnapshot `json:"categories"`
	AverageRating   float64                   `json:"average_rating"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

func newBookView(b *domain.Book) *BookView {
	v := &BookView{
		ID:              b.ID,
		Title:           b.Title,
		ISBN:            b.ISBN,
		PublicationDate: b.PublicationDate,
		Description:     b.Description,
		PageCount:       b.PageCount,
		Language:        b.Language,
		AuthorID:        b.AuthorID,
		CategoryIDs:     domain.DedupeIDs(b.CategoryIDs),
		AverageRating:   b.AverageRating,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.Author != nil {
		v.Author = *b.Author
	}
	return v
}

// BookSummary is the short book entry listed under a category.
type BookSummary struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Author        domain.AuthorSnapshot `json:"author"`
	AverageRating float64               `json:"average_rating"`
}

// AuthorBook is a book listed under its author.
type AuthorBook struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	ISBN            string  `json:"isbn,omitempty"`
	PublicationDate string  `json:"publication_date,omitempty"`
	AverageRating   float64 `json:"average_rating"`
}

// AuthorView is the client representation of an author.
// Books is only populated for single-author reads.
type AuthorView struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Biography string       `json:"biography,omitempty"`
	BirthDate string       `json:"birth_date,omitempty"`
	DeathDate string       `json:"death_date,omitempty"`
	Country   string       `json:"country,omitempty"`
	BookCount int          `json:"book_count"`
	Books     []AuthorBook `json:"books,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewAuthorView converts an author without its book list.
func NewAuthorView(a *domain.Author) *AuthorView {
	return &AuthorView{
		ID:        a.ID,
		Name:      a.Name,
		Biography: a.Biography,
		BirthDate: a.BirthDate,
		DeathDate: a.DeathDate,
		Country:   a.Country,
		BookCount: a.BookCount,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// CategoryView is the client representation of a category.
// TopBooks is only populated for single-category reads.
type CategoryView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	BookCount   int           `json:"book_count"`
	TopBooks    []BookSummary `json:"top_books,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewCategoryView converts a category without its top books.
func NewCategoryView(c *domain.Category) *CategoryView {
	return &CategoryView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		BookCount:   c.BookCount,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// ReviewView is the client representation of a review.
type ReviewView struct {
	ID        string              `json:"id"`
	BookID    string              `json:"book_id"`
	UserID    string              `json:"user_id"`
	User      domain.UserSnapshot `json:"user"`
	Rating    float64             `json:"rating"`
	Title     string              `json:"title"`
	Content   string              `json:"content,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func newReviewView(r *domain.Review) *ReviewView {
	v := &ReviewView{
		ID:        r.ID,
		BookID:    r.BookID,
		UserID:    reviewOwner(r),
		Rating:    r.Rating,
		Title:     r.Title,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.User != nil {
		v.User = *r.User
	}
	return v
}

// reviewOwner returns the reviewer id, falling back to the snapshot on records
// written before user_id was stored separately.
func reviewOwner(r *domain.Review) string {
	if r.UserID == "" && r.User != nil {
		return r.User.ID
	}
	return r.UserID
}

// UserView is the client representation of a user. The password hash is never included.
type UserView struct {
	ID            string                `json:"id"`
	Username      string                `json:"username"`
	Email         string                `json:"email"`
	FirstName     string                `json:"first_name"`
	LastName      string                `json:"last_name"`
	ReviewCount   int                   `json:"review_count"`
	RecentReviews []domain.RecentReview `json:"recent_reviews"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// NewUserView converts a user as stored, without any repair.
func NewUserView(u *domain.User) *UserView {
	recent := make([]domain.RecentReview, len(u.RecentReviews))
	copy(recent, u.RecentReviews)
	return &UserView{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		ReviewCount:   u.ReviewCount,
		RecentReviews: recent,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
