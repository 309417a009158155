package domain

// Category groups books. Names are unique ignoring case.
type Category struct {
	Record
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BookCount   int    `json:"book_count"`
}

// Snapshot returns the display copy embedded in books.
func (c *Category) Snapshot() CategorySnapshot {
	return CategorySnapshot{ID: c.ID, Name: c.Name}
}
