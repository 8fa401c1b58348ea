// Package browse drives a paged view of the catalog: it keeps the page
// number in a navigation history, loads pages in the background and
// publishes view state as loads start and finish.
package browse

import (
	"context"
	"net/url"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/anilist-browser/pkg/client"
	"github.com/Sternrassler/anilist-browser/pkg/media"
	"github.com/Sternrassler/anilist-browser/pkg/pagination"
)

var staleResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "anilist_browse_stale_responses_total",
	Help: "Page responses discarded because the view had moved to another page",
})

// updateBuffer is the capacity of the Updates channel.
const updateBuffer = 16

// Fetcher loads one page of the catalog.
type Fetcher interface {
	FetchPage(ctx context.Context, page, perPage int) (*client.Page, error)
}

// State is a snapshot of the view.
type State struct {
	// Page is the page the view is showing or loading.
	Page int

	// Items are the items of the last page that loaded. While Loading they
	// may still belong to the previous page.
	Items []media.Item
	Meta  media.PageMeta

	Loading  bool
	Err      error
	Rejected int
	Cached   bool
}

// Session is one visitor's paged view.
type Session struct {
	fetcher Fetcher
	history *pagination.History
	ctrl    *pagination.Controller
	perPage int
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	closed  bool
	updates chan State
}

// NewSession creates a session whose history starts at initial.
func NewSession(fetcher Fetcher, initial url.Values, perPage int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	history := pagination.NewHistory(initial)

	return &Session{
		fetcher: fetcher,
		history: history,
		ctrl:    pagination.NewController(history),
		perPage: media.ClampPerPage(perPage),
		logger:  log.With().Str("component", "browse").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		updates: make(chan State, updateBuffer),
	}
}

// Sync reads the page from the history, repairing an invalid value, and
// loads it.
func (s *Session) Sync() int {
	page := s.ctrl.Sync()
	s.load(page)
	return page
}

// GoToPage pushes page onto the history and loads it.
func (s *Session) GoToPage(page int) int {
	page = s.ctrl.GoToPage(page)
	s.load(page)
	return page
}

// Next moves one page forward unless the current page is the last one.
func (s *Session) Next() bool {
	snap := s.Snapshot()
	if !snap.Loading && snap.Err == nil && !snap.Meta.HasNextPage {
		return false
	}
	s.GoToPage(snap.Page + 1)
	return true
}

// Previous moves one page back unless already on page 1.
func (s *Session) Previous() bool {
	snap := s.Snapshot()
	if snap.Page <= 1 {
		return false
	}
	s.GoToPage(snap.Page - 1)
	return true
}

// Back returns to the previous history entry and loads its page.
func (s *Session) Back() bool {
	if !s.history.Back() {
		return false
	}
	s.Sync()
	return true
}

// Retry loads the current page again.
func (s *Session) Retry() {
	s.load(s.Snapshot().Page)
}

// Query returns the current history entry.
func (s *Session) Query() url.Values {
	return s.history.Current()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Updates delivers a state every time a load starts or finishes. Slow
// readers miss intermediate states; Snapshot is always current. The
// channel is closed by Close.
func (s *Session) Updates() <-chan State {
	return s.updates
}

// Close stops in-flight loads and waits for them to finish.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	close(s.updates)
	s.mu.Unlock()
}

func (s *Session) load(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.state.Page = page
	s.state.Loading = true
	s.state.Err = nil
	s.publishLocked()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.fetcher.FetchPage(s.ctx, page, s.perPage)
		s.apply(page, res, err)
	}()
}

// apply installs a finished load if the view still shows its page.
func (s *Session) apply(page int, res *client.Page, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page != s.state.Page {
		staleResponsesTotal.Inc()
		s.logger.Debug().
			Int("page", page).
			Int("current_page", s.state.Page).
			Msg("Discarding response for a page no longer shown")
		return
	}

	s.state.Loading = false
	if err != nil {
		if s.closed {
			return
		}
		s.state.Err = err
		s.state.Items = nil
		s.state.Meta = media.PageMeta{CurrentPage: page, PerPage: s.perPage}
		s.state.Rejected = 0
		s.state.Cached = false
		s.logger.Warn().Err(err).Int("page", page).Msg("Page load failed")
	} else {
		s.state.Err = nil
		s.state.Items = res.Items
		s.state.Meta = res.Meta
		s.state.Rejected = res.Rejected
		s.state.Cached = res.Cached
	}
	s.publishLocked()
}

func (s *Session) snapshotLocked() State {
	snap := s.state
	snap.Items = append([]media.Item(nil), s.state.Items...)
	return snap
}

// publishLocked sends the state without blocking; s.mu must be held.
func (s *Session) publishLocked() {
	select {
	case s.updates <- s.snapshotLocked():
	default:
		s.logger.Debug().Int("page", s.state.Page).Msg("Update channel full - dropping state")
	}
}
