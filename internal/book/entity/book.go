package entity

import (
	"regexp"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
)

// Status is the circulation state of a book.
type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusLoaned      Status = "LOANED"
	StatusUnderRepair Status = "UNDER_REPAIR"
	StatusLost        Status = "LOST"
	StatusRetired     Status = "RETIRED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusLoaned, StatusUnderRepair, StatusLost, StatusRetired:
		return true
	}
	return false
}

// Book represents a row in the `books` table.
type Book struct {
	ID              int64     `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Author          string    `db:"author" json:"author"`
	Description     string    `db:"description" json:"description"`
	PublicationYear int       `db:"publication_year" json:"publicationYear"`
	ISBN            string    `db:"isbn" json:"isbn"`
	PageCount       int       `db:"page_count" json:"pageCount"`
	DateAdded       time.Time `db:"date_added" json:"dateAdded"`
	Status          Status    `db:"status" json:"status"`
}

var isbnPattern = regexp.MustCompile(`^[0-9]{13}$`)

// Validate checks field constraints. now bounds the publication year.
func (b *Book) Validate(now time.Time) error {
	switch {
	case strings.TrimSpace(b.Title) == "":
		return apperr.Invalid("title", "is required")
	case len(b.Title) > 255:
		return apperr.Invalid("title", "must not exceed 255 characters")
	case strings.TrimSpace(b.Author) == "":
		return apperr.Invalid("author", "is required")
	case len(b.Author) > 255:
		return apperr.Invalid("author", "must not exceed 255 characters")
	case len(b.Description) > 1000:
		return apperr.Invalid("description", "must not exceed 1000 characters")
	case b.PublicationYear < 1000 || b.PublicationYear > now.Year():
		return apperr.Invalid("publicationYear", "must be between 1000 and the current year")
	case !isbnPattern.MatchString(b.ISBN):
		return apperr.Invalid("isbn", "must have exactly 13 digits")
	case b.PageCount < 1:
		return apperr.Invalid("pageCount", "must be at least 1")
	case b.Status != "" && !b.Status.Valid():
		return apperr.Invalid("status", "is unknown")
	}
	return nil
}
