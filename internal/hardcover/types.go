package hardcover

// Book is a denormalized Hardcover book payload.
type Book struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	ISBNs       []string `json:"isbns,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Description string   `json:"description,omitempty"` // markdown
}

// List is a public user-curated list containing a book.
type List struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug,omitempty"`
	BooksCount int    `json:"books_count,omitempty"`
}
