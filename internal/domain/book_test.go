package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundRating(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{3.0, 3.0},
		{3.5, 3.5},
		{10.0 / 3.0, 3.3},
		{11.0 / 3.0, 3.7},
		{4.25, 4.2},
		{2.25, 2.2},
		{2.75, 2.8},
		{4.26, 4.3},
		{0, 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, RoundRating(tt.in), 1e-9, "RoundRating(%v)", tt.in)
	}
}

func TestBook_SetRatingAggregate(t *testing.T) {
	b := &Book{}
	b.SetRatingAggregate(6, 2)
	assert.Equal(t, 3.0, b.AverageRating)
	assert.Equal(t, 2, b.RatingCount)

	b.SetRatingAggregate(0, 0)
	assert.Equal(t, 0.0, b.AverageRating)
	assert.Equal(t, 0.0, b.RatingTotal)
}

func TestDedupeIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, DedupeIDs([]string{"a", "", "b", "a"}))
	assert.Empty(t, DedupeIDs(nil))
}

func TestDiffIDs(t *testing.T) {
	added, removed := DiffIDs([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"c"}, added)
	assert.Equal(t, []string{"a"}, removed)

	added, removed = DiffIDs([]string{"a"}, []string{"a"})
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func TestReview_OwnedBy(t *testing.T) {
	r := &Review{UserID: "user-1"}
	assert.True(t, r.OwnedBy("user-1"))
	assert.False(t, r.OwnedBy("user-2"))
	assert.False(t, r.OwnedBy(""))

	legacy := &Review{User: &UserSnapshot{ID: "user-1"}}
	assert.True(t, legacy.OwnedBy("user-1"))
}
