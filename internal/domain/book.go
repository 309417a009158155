package domain

import (
	"slices"
	"strconv"
)

// Book is a catalog title.
//
// Author and Categories are embedded snapshots and may be absent or stale.
// AverageRating, RatingCount and RatingTotal are derived from the book's reviews.
type Book struct {
	Record
	Title           string             `json:"title"`
	ISBN            string             `json:"isbn"`
	PublicationDate string             `json:"publication_date"` // YYYY-MM-DD
	Description     string             `json:"description"`
	PageCount       int                `json:"page_count"`
	Language        string             `json:"language"`
	AuthorID        string             `json:"author_id"`
	CategoryIDs     []string           `json:"category_ids"`
	Author          *AuthorSnapshot    `json:"author,omitempty"`
	Categories      []CategorySnapshot `json:"categories,omitempty"`
	AverageRating   float64            `json:"average_rating"`
	RatingCount     int                `json:"rating_count"`
	RatingTotal     float64            `json:"rating_total"`
}

// HasCategory reports whether the book lists categoryID.
func (b *Book) HasCategory(categoryID string) bool {
	return slices.Contains(b.CategoryIDs, categoryID)
}

// Ref returns the minimal copy stored in recent review lists.
func (b *Book) Ref() BookRef {
	return BookRef{ID: b.ID, Title: b.Title}
}

// SetRatingAggregate stores the review sum and count and derives the mean from them.
func (b *Book) SetRatingAggregate(total float64, count int) {
	if count <= 0 {
		b.RatingTotal = 0
		b.RatingCount = 0
		b.AverageRating = 0
		return
	}
	b.RatingTotal = total
	b.RatingCount = count
	b.AverageRating = RoundRating(total / float64(count))
}

// RoundRating rounds a mean rating to one decimal place. Exact ties go to the
// even digit, so 2.25 becomes 2.2 and 2.75 becomes 2.8.
func RoundRating(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// DedupeIDs returns ids with blanks and repeats removed, keeping first-seen order.
func DedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// DiffIDs returns the ids present only in after (added) and only in before (removed).
func DiffIDs(before, after []string) (added, removed []string) {
	for _, id := range after {
		if !slices.Contains(before, id) {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if !slices.Contains(after, id) {
			removed = append(removed, id)
		}
	}
	return added, removed
}
