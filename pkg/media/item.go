// Package media holds the normalized catalog item model and the rules that
// turn raw AniList records into it.
package media

import "fmt"

// Status is the release status of a catalog item.
type Status string

const (
	StatusFinished       Status = "FINISHED"
	StatusReleasing      Status = "RELEASING"
	StatusNotYetReleased Status = "NOT_YET_RELEASED"
	StatusCancelled      Status = "CANCELLED"
	StatusHiatus         Status = "HIATUS"
)

// Category is the medium of a catalog item. The browser lists the primary
// medium (anime); the secondary medium (manga) is accepted when normalizing.
type Category string

const (
	CategoryAnime Category = "ANIME"
	CategoryManga Category = "MANGA"
)

// MaxPerPage is the largest page size the catalog accepts.
const MaxPerPage = 50

// DefaultPerPage is the page size used by the information view.
const DefaultPerPage = 20

// FuzzyDate is a date whose year, month and day may each be unknown.
type FuzzyDate struct {
	Year  *int `json:"year"`
	Month *int `json:"month" validate:"omitempty,min=1,max=12"`
	Day   *int `json:"day" validate:"omitempty,min=1,max=31"`
}

// Format renders year-only, year-month and full dates distinctly.
// A nil date or unknown year formats as "Unknown".
func (d *FuzzyDate) Format() string {
	if d == nil || d.Year == nil {
		return "Unknown"
	}
	switch {
	case d.Month != nil && d.Day != nil:
		return fmt.Sprintf("%d-%02d-%02d", *d.Year, *d.Month, *d.Day)
	case d.Month != nil:
		return fmt.Sprintf("%d-%02d", *d.Year, *d.Month)
	default:
		return fmt.Sprintf("%d", *d.Year)
	}
}

// Item is one validated catalog record.
type Item struct {
	ID           string     `json:"id" validate:"required"`
	PrimaryTitle string     `json:"primaryTitle"`
	NativeTitle  string     `json:"nativeTitle" validate:"required"`
	Status       Status     `json:"status" validate:"oneof=FINISHED RELEASING NOT_YET_RELEASED CANCELLED HIATUS"`
	Category     Category   `json:"category" validate:"oneof=ANIME MANGA"`
	StartDate    *FuzzyDate `json:"startDate"`
	EndDate      *FuzzyDate `json:"endDate"`
	Synopsis     string     `json:"synopsis"`
	ThumbnailURL string     `json:"thumbnailUrl" validate:"omitempty,http_url"`
	FullImageURL string     `json:"fullImageUrl" validate:"omitempty,http_url"`
}

// DisplayTitle prefers the primary title and falls back to the native one.
func (i Item) DisplayTitle() string {
	if i.PrimaryTitle != "" && i.PrimaryTitle != UnknownTitle {
		return i.PrimaryTitle
	}
	return i.NativeTitle
}

// PageMeta describes one fetched page.
type PageMeta struct {
	CurrentPage int  `json:"currentPage" validate:"min=1"`
	HasNextPage bool `json:"hasNextPage"`
	PerPage     int  `json:"perPage" validate:"min=1,max=50"`
}

// ClampPerPage bounds n to 1..MaxPerPage.
func ClampPerPage(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxPerPage:
		return MaxPerPage
	default:
		return n
	}
}
