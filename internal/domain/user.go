package domain

// User is a catalog member who writes reviews.
type User struct {
	Record
	Username      string         `json:"username"`
	Email         string         `json:"email"`
	PasswordHash  string         `json:"password_hash,omitempty"` // never sent to clients
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	ReviewCount   int            `json:"review_count"`
	RecentReviews []RecentReview `json:"recent_reviews"`
}

// Snapshot returns the display copy embedded in reviews.
func (u *User) Snapshot() *UserSnapshot {
	return &UserSnapshot{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// PushRecentReview puts entry at the head of RecentReviews, removing any older
// entry for the same review and keeping at most limit entries.
func (u *User) PushRecentReview(entry RecentReview, limit int) {
	list := make([]RecentReview, 0, len(u.RecentReviews)+1)
	list = append(list, entry)
	for _, rr := range u.RecentReviews {
		if rr.ID == entry.ID {
			continue
		}
		list = append(list, rr)
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	u.RecentReviews = list
}

// UpdateRecentRating rewrites the rating shown for reviewID, if it is listed.
// Returns false when the review is not in the list.
func (u *User) UpdateRecentRating(reviewID string, rating float64) bool {
	for i := range u.RecentReviews {
		if u.RecentReviews[i].ID == reviewID {
			u.RecentReviews[i].Rating = rating
			return true
		}
	}
	return false
}
