package domain

// Author is a book author. BookCount is derived and never set by clients.
type Author struct {
	Record
	Name      string `json:"name"`
	Biography string `json:"biography"`
	BirthDate string `json:"birth_date"`           // YYYY-MM-DD
	DeathDate string `json:"death_date,omitempty"` // YYYY-MM-DD
	Country   string `json:"country,omitempty"`
	BookCount int    `json:"book_count"`
}

// Snapshot returns the display copy embedded in books.
func (a *Author) Snapshot() *AuthorSnapshot {
	return &AuthorSnapshot{ID: a.ID, Name: a.Name}
}
