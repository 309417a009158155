package domain

// Review is one user's rating of one book. The (BookID, UserID) pair is unique.
type Review struct {
	Record
	BookID  string        `json:"book_id"`
	UserID  string        `json:"user_id"`
	User    *UserSnapshot `json:"user,omitempty"`
	Rating  float64       `json:"rating"`
	Title   string        `json:"title"`
	Content string        `json:"content,omitempty"`
}

// OwnedBy reports whether userID authored the review.
// Older records may carry the owner only inside the user snapshot.
func (r *Review) OwnedBy(userID string) bool {
	if userID == "" {
		return false
	}
	if r.UserID != "" {
		return r.UserID == userID
	}
	return r.User != nil && r.User.ID == userID
}

// Summary returns the entry pushed onto the author's recent review list.
func (r *Review) Summary(book BookRef) RecentReview {
	return RecentReview{
		ID:        r.ID,
		Book:      book,
		Rating:    r.Rating,
		CreatedAt: r.CreatedAt,
	}
}
