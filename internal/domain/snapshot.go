package domain

import "time"

// Placeholder display values written when a referenced record cannot be read.
const (
	UnknownAuthor   = "Unknown Author"
	UnknownCategory = "Unknown Category"
	UnknownUser     = "Unknown user"
)

// AuthorSnapshot is the author display copy embedded in a Book.
type AuthorSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Complete reports whether the snapshot is a live copy. A placeholder is not.
func (s *AuthorSnapshot) Complete() bool {
	return s != nil && s.ID != "" && s.Name != "" && s.Name != UnknownAuthor
}

// Current reports whether the snapshot is a live copy of the author with id.
func (s *AuthorSnapshot) Current(id string) bool {
	return s.Complete() && s.ID == id
}

// CategorySnapshot is the category display copy embedded in a Book.
type CategorySnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Complete reports whether the snapshot is a live copy. A placeholder is not.
func (s CategorySnapshot) Complete() bool {
	return s.ID != "" && s.Name != "" && s.Name != UnknownCategory
}

// UserSnapshot is the user display copy embedded in a Review.
type UserSnapshot struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Complete reports whether the snapshot carries everything a review view shows.
// First and last name may legitimately be empty, so only identity and username
// count. The "Unknown user" placeholder is never complete.
func (s *UserSnapshot) Complete() bool {
	return s != nil && s.ID != "" && s.Username != "" && s.Username != UnknownUser
}

// Current reports whether the snapshot is a live copy of the user with id.
func (s *UserSnapshot) Current(id string) bool {
	return s.Complete() && s.ID == id
}

// BookRef is the minimal book copy held in a user's recent review list.
type BookRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// RecentReview is one entry of User.RecentReviews.
type RecentReview struct {
	ID        string    `json:"id"` // review id
	Book      BookRef   `json:"book"`
	Rating    float64   `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}
