package domain

import "time"

// Record provides the identity and timestamp fields shared by every catalog entity.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp to the current time.
func (r *Record) Touch() {
	r.UpdatedAt = time.Now().UTC()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
// Call this when creating a new entity.
func (r *Record) InitTimestamps() {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
}

// Kind identifies one of the five record kinds held by the catalog.
type Kind string

const (
	KindAuthor   Kind = "author"
	KindCategory Kind = "category"
	KindBook     Kind = "book"
	KindReview   Kind = "review"
	KindUser     Kind = "user"
)

// Label returns the capitalized kind name used in user-facing messages.
func (k Kind) Label() string {
	switch k {
	case KindAuthor:
		return "Author"
	case KindCategory:
		return "Category"
	case KindBook:
		return "Book"
	case KindReview:
		return "Review"
	case KindUser:
		return "User"
	default:
		return string(k)
	}
}
