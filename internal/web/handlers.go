package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/anilist-browser/pkg/client"
	"github.com/Sternrassler/anilist-browser/pkg/media"
	"github.com/Sternrassler/anilist-browser/pkg/pagination"
	"github.com/Sternrassler/anilist-browser/pkg/profile"
	"github.com/Sternrassler/anilist-browser/pkg/validation"
)

const (
	profilePath = "/api/v1/profile"
	maxBodySize = 16 << 10
)

// mediaResponse is the payload of a successful catalog request.
type mediaResponse struct {
	Items    []media.Item     `json:"items"`
	PageInfo media.PageMeta   `json:"pageInfo"`
	Links    pagination.Strip `json:"links"`
	Prev     string           `json:"prev,omitempty"`
	Next     string           `json:"next,omitempty"`
	Rejected int              `json:"rejected"`
	Cached   bool             `json:"cached"`
}

// gateHint tells a visitor without a profile where to create one.
type gateHint struct {
	Profile string `json:"profile"`
}

// requestNavigator adapts history operations to one HTTP request: a
// replacement becomes a redirect and a push becomes a link target.
type requestNavigator struct {
	path     string
	query    url.Values
	replaced string
	pushed   string
}

func (n *requestNavigator) Current() url.Values {
	return n.query
}

func (n *requestNavigator) Push(q url.Values) {
	n.pushed = n.path + "?" + q.Encode()
}

func (n *requestNavigator) Replace(q url.Values) {
	n.replaced = n.path + "?" + q.Encode()
}

// link returns the URL GoToPage would push for page.
func (n *requestNavigator) link(page int) string {
	pagination.NewController(n).GoToPage(page)
	return n.pushed
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := s.profileStore(w, r).Load(r.Context())
	if !ok {
		errorJSON(w, http.StatusNotFound, "no profile", s.logger)
		return
	}
	success(w, p, s.logger)
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var in profile.Profile
	if !s.decodeBody(w, r, &in) {
		return
	}

	p, err := s.profileStore(w, r).Save(r.Context(), in)
	if err != nil {
		s.writeProfileError(w, err)
		return
	}
	created(w, p, s.logger)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch profile.Patch
	if !s.decodeBody(w, r, &patch) {
		return
	}

	p, err := s.profileStore(w, r).Update(r.Context(), patch)
	if err != nil {
		s.writeProfileError(w, err)
		return
	}
	success(w, p, s.logger)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.profileStore(w, r).Delete(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete profile")
		errorJSON(w, http.StatusInternalServerError, "could not delete profile", s.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody reads a JSON request body into v. It writes a 400 and
// returns false when the body is not valid JSON.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON body", s.logger)
		return false
	}
	return true
}

func (s *Server) writeProfileError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, Envelope{
			Error:  "invalid profile",
			Fields: verr.Fields,
		}, s.logger)
	case errors.Is(err, profile.ErrNoProfile):
		errorJSON(w, http.StatusNotFound, "no profile", s.logger)
	default:
		s.logger.Error().Err(err).Msg("Failed to store profile")
		errorJSON(w, http.StatusInternalServerError, "could not store profile", s.logger)
	}
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.profileStore(w, r).Load(r.Context()); !ok {
		writeJSON(w, http.StatusForbidden, Envelope{
			Error: "a profile is required before browsing",
			Data:  gateHint{Profile: profilePath},
		}, s.logger)
		return
	}

	nav := &requestNavigator{path: r.URL.Path, query: r.URL.Query()}
	page := pagination.NewController(nav).Sync()
	if nav.replaced != "" {
		http.Redirect(w, r, nav.replaced, http.StatusFound)
		return
	}

	perPage := s.opts.PerPage
	if v := nav.query.Get("perPage"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			perPage = media.ClampPerPage(n)
		}
	}

	ctx := r.Context()
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	res, err := s.opts.Fetcher.FetchPage(ctx, page, perPage)
	if err != nil {
		s.writeFetchError(w, r, page, err)
		return
	}

	items := make([]media.Item, len(res.Items))
	for i, item := range res.Items {
		item.Synopsis = media.SanitizeSynopsis(item.Synopsis)
		items[i] = item
	}

	out := mediaResponse{
		Items:    items,
		PageInfo: res.Meta,
		Links:    pagination.PageLinks(page, res.Meta.HasNextPage),
		Rejected: res.Rejected,
		Cached:   res.Cached,
	}
	if page > 1 {
		out.Prev = nav.link(page - 1)
	}
	if res.Meta.HasNextPage {
		out.Next = nav.link(page + 1)
	}
	success(w, out, s.logger)
}

// writeFetchError maps a failed catalog fetch to 503 for transient
// upstream trouble and 502 for everything else.
func (s *Server) writeFetchError(w http.ResponseWriter, r *http.Request, page int, err error) {
	class := client.ClassOf(err)
	status := http.StatusBadGateway
	switch {
	case class == client.ErrorClassRateLimit, class == client.ErrorClassNetwork:
		status = http.StatusServiceUnavailable
	case errors.Is(err, client.ErrContextCancelled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(apiErr.RetryAfter.Seconds())))
	}

	s.logger.Warn().
		Err(err).
		Str("error_class", string(class)).
		Int("page", page).
		Int("status", status).
		Msg("Catalog request failed")

	retry := r.URL.Path
	if q := r.URL.RawQuery; q != "" {
		retry += "?" + q
	}
	writeJSON(w, status, Envelope{
		Error: client.UserMessage(err),
		Retry: retry,
	}, s.logger)
}
