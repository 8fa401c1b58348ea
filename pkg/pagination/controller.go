package pagination

import (
	"net/url"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Param is the query parameter holding the page number.
const Param = "page"

var validPage = regexp.MustCompile(`^[1-9][0-9]*$`)

// ParsePage validates a raw page value. Anything that is not a positive
// decimal integer without sign, padding or leading zeros, or that does not
// fit an int, is invalid.
func ParsePage(value string) (int, bool) {
	if !validPage.MatchString(value) {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ReadCurrentPage returns the page named by q. An absent parameter means
// page 1 and needs no correction; an invalid one yields (1, true).
func ReadCurrentPage(q url.Values) (page int, corrected bool) {
	if !q.Has(Param) {
		return 1, false
	}
	if n, ok := ParsePage(q.Get(Param)); ok {
		return n, false
	}
	return 1, true
}

// WithPage returns a copy of q with the page parameter set.
func WithPage(q url.Values, page int) url.Values {
	out := cloneValues(q)
	out.Set(Param, strconv.Itoa(page))
	return out
}

// Controller reads and writes the page number through a Navigator.
type Controller struct {
	nav    Navigator
	logger zerolog.Logger
}

// NewController creates a controller over nav.
func NewController(nav Navigator) *Controller {
	return &Controller{
		nav:    nav,
		logger: log.With().Str("component", "pagination").Logger(),
	}
}

// CurrentPage reads the page from the navigator.
func (c *Controller) CurrentPage() (int, bool) {
	return ReadCurrentPage(c.nav.Current())
}

// OnInvalid rewrites the current entry to page without adding history.
func (c *Controller) OnInvalid(page int) {
	q := c.nav.Current()
	c.logger.Debug().
		Str("value", q.Get(Param)).
		Int("page", page).
		Msg("Replacing invalid page parameter")
	c.nav.Replace(WithPage(q, page))
}

// Sync reads the current page and repairs the entry when it was invalid.
func (c *Controller) Sync() int {
	page, corrected := c.CurrentPage()
	if corrected {
		c.OnInvalid(page)
	}
	return page
}

// GoToPage pushes a new entry for page, raised to at least 1, keeping every
// other query parameter. It returns the page written.
func (c *Controller) GoToPage(page int) int {
	if page < 1 {
		page = 1
	}
	c.nav.Push(WithPage(c.nav.Current(), page))
	return page
}
