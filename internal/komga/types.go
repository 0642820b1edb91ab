package komga

import "time"

// Series is a comic series as reported by the Komga API.
type Series struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LibraryID  string `json:"libraryId"`
	BooksCount int    `json:"booksCount"`
	Metadata   struct {
		Publisher string `json:"publisher"`
		Title     string `json:"title"`
	} `json:"metadata"`
}

// Publisher returns the series publisher, or nil when Komga has none.
func (s *Series) Publisher() *string {
	if s.Metadata.Publisher == "" {
		return nil
	}
	p := s.Metadata.Publisher
	return &p
}

// ReadProgress is Komga's per-book reading state.
type ReadProgress struct {
	Page      int  `json:"page"`
	Completed bool `json:"completed"`
}

// Book is a single issue as reported by the Komga API.
type Book struct {
	ID       string    `json:"id"`
	SeriesID string    `json:"seriesId"`
	Name     string    `json:"name"`
	Number   string    `json:"number"`
	Created  time.Time `json:"created"`
	Media    struct {
		PagesCount int `json:"pagesCount"`
	} `json:"media"`
	Metadata struct {
		Title       string `json:"title"`
		SeriesTitle string `json:"seriesTitle"`
	} `json:"metadata"`
	ReadProgress *ReadProgress `json:"readProgress"`
}

// IsRead reports whether the book has been read to completion.
func (b *Book) IsRead() bool {
	return b.ReadProgress != nil && b.ReadProgress.Completed
}

// Title returns the issue title from metadata, or nil when absent.
func (b *Book) Title() *string {
	if b.Metadata.Title == "" {
		return nil
	}
	t := b.Metadata.Title
	return &t
}

// ReadPercentage derives a 0-100 reading percentage. A completed book is
// always 100 regardless of page counts; a book with no progress or no pages
// is 0; partial progress is floored and capped at 100.
func (b *Book) ReadPercentage() int {
	if b.ReadProgress == nil || b.Media.PagesCount == 0 {
		return 0
	}
	if b.ReadProgress.Completed {
		return 100
	}
	pct := b.ReadProgress.Page * 100 / b.Media.PagesCount
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Readlist is a named ordered list of book ids stored in Komga.
type Readlist struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	BookIDs []string `json:"bookIds"`
}

// page is Komga's envelope for paginated responses.
type page[T any] struct {
	Content []T `json:"content"`
}
