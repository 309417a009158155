package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageParams_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   PageParams
		want PageParams
	}{
		{"defaults", PageParams{}, PageParams{Limit: DefaultPageLimit}},
		{"caps limit", PageParams{Limit: 10_000}, PageParams{Limit: MaxPageLimit}},
		{"negative offset", PageParams{Limit: 5, Offset: -3}, PageParams{Limit: 5}},
		{"kept", PageParams{Limit: 5, Offset: 10}, PageParams{Limit: 5, Offset: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.Normalize()
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := Paginate(items, PageParams{Limit: 2})
	assert.Equal(t, []int{1, 2}, page.Items)
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasMore())

	page = Paginate(items, PageParams{Limit: 2, Offset: 4})
	assert.Equal(t, []int{5}, page.Items)
	assert.False(t, page.HasMore())

	page = Paginate(items, PageParams{Limit: 2, Offset: 9})
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 5, page.Total)
}
