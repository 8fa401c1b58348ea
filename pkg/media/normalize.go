package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sternrassler/anilist-browser/pkg/validation"
)

// UnknownTitle is used when a record carries neither an English nor a
// romaji title.
const UnknownTitle = "Unknown"

// RawTitle is the title block of an upstream record.
type RawTitle struct {
	English *string `json:"english"`
	Romaji  *string `json:"romaji"`
	Native  *string `json:"native"`
}

// RawDate is an upstream fuzzy date; each part may be null.
type RawDate struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

// RawCover is the cover image block of an upstream record.
type RawCover struct {
	Medium *string `json:"medium"`
	Large  *string `json:"large"`
}

// RawMedia mirrors one record of the upstream Page.media list. Every field is
// optional on the wire.
type RawMedia struct {
	ID          *int      `json:"id"`
	Title       *RawTitle `json:"title"`
	Status      *string   `json:"status"`
	Type        *string   `json:"type"`
	StartDate   *RawDate  `json:"startDate"`
	EndDate     *RawDate  `json:"endDate"`
	Description *string   `json:"description"`
	CoverImage  *RawCover `json:"coverImage"`
}

// Rejection explains why a raw record was dropped.
type Rejection struct {
	MediaID string
	Reason  string
	Err     error
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	id := r.MediaID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("media %s rejected (%s): %v", id, r.Reason, r.Err)
}

// Unwrap returns the underlying validation error.
func (r *Rejection) Unwrap() error {
	return r.Err
}

var itemValidator = validation.New()

// Normalize converts a raw record into an Item. Missing optional fields take
// safe defaults; a record that fails validation yields a *Rejection and a
// zero Item.
func Normalize(raw RawMedia) (Item, error) {
	item := Item{
		PrimaryTitle: primaryTitle(raw.Title),
		StartDate:    fuzzyDate(raw.StartDate),
		EndDate:      fuzzyDate(raw.EndDate),
		Synopsis:     deref(raw.Description),
	}
	if raw.ID != nil {
		item.ID = strconv.Itoa(*raw.ID)
	}
	if raw.Title != nil {
		item.NativeTitle = strings.TrimSpace(deref(raw.Title.Native))
	}
	if raw.Status != nil {
		item.Status = Status(*raw.Status)
	}
	if raw.Type != nil {
		item.Category = Category(*raw.Type)
	}
	if raw.CoverImage != nil {
		item.ThumbnailURL = deref(raw.CoverImage.Medium)
		item.FullImageURL = deref(raw.CoverImage.Large)
	}

	if err := itemValidator.Validate(item); err != nil {
		return Item{}, &Rejection{MediaID: item.ID, Reason: reason(err), Err: err}
	}
	return item, nil
}

// NormalizeAll normalizes a batch. Failing records are returned as
// rejections and never stop the rest of the batch.
func NormalizeAll(raws []RawMedia) ([]Item, []*Rejection) {
	items := make([]Item, 0, len(raws))
	var rejections []*Rejection

	for _, raw := range raws {
		item, err := Normalize(raw)
		if err != nil {
			var rej *Rejection
			if errors.As(err, &rej) {
				rejections = append(rejections, rej)
			}
			continue
		}
		items = append(items, item)
	}
	return items, rejections
}

func primaryTitle(t *RawTitle) string {
	if t == nil {
		return UnknownTitle
	}
	if s := strings.TrimSpace(deref(t.English)); s != "" {
		return s
	}
	if s := strings.TrimSpace(deref(t.Romaji)); s != "" {
		return s
	}
	return UnknownTitle
}

// fuzzyDate returns nil when the date is absent or entirely unknown.
func fuzzyDate(d *RawDate) *FuzzyDate {
	if d == nil || (d.Year == nil && d.Month == nil && d.Day == nil) {
		return nil
	}
	return &FuzzyDate{Year: d.Year, Month: d.Month, Day: d.Day}
}

// reason condenses a validation error into a metric-friendly label, the
// first failing field in sorted order.
func reason(err error) string {
	var verr *validation.Error
	if !errors.As(err, &verr) || len(verr.Fields) == 0 {
		return "invalid"
	}
	first := ""
	for field := range verr.Fields {
		if first == "" || field < first {
			first = field
		}
	}
	return first
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
