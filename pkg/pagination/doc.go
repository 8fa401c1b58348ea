// Package pagination keeps the current page number in the URL query.
//
// The `page` query parameter is the single source of truth for which page
// is shown. A Controller reads it, repairs invalid values by replacing the
// history entry, and moves between pages by pushing new entries so the
// browser back button returns to the previous page.
//
// Example usage:
//
//	nav := pagination.NewHistory(url.Values{"page": {"abc"}})
//	ctrl := pagination.NewController(nav)
//	page := ctrl.Sync()      // 1, and the history entry now reads page=1
//	ctrl.GoToPage(page + 1)  // pushes page=2
//
// PageLinks renders the numbered page strip shown under a result list, and
// the Prefetcher warms a range of pages with a small worker pool.
package pagination
