package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/anilist-browser/pkg/client"
	"github.com/Sternrassler/anilist-browser/pkg/media"
)

// PrefetchConfig holds prefetcher configuration.
type PrefetchConfig struct {
	// Concurrency is the maximum number of pages fetched in parallel.
	// AniList allows 90 req/min, so keep this small.
	Concurrency int

	// PerPage is the page size to warm.
	PerPage int

	// Timeout bounds each page fetch, retries included.
	Timeout time.Duration
}

// DefaultPrefetchConfig returns safe defaults for AniList.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		Concurrency: 2,
		PerPage:     media.DefaultPerPage,
		Timeout:     90 * time.Second,
	}
}

// PageFetcher fetches a single page.
type PageFetcher interface {
	FetchPage(ctx context.Context, page, perPage int) (*client.Page, error)
}

// Prefetcher fetches a range of pages so later reads hit the page cache.
type Prefetcher struct {
	fetcher PageFetcher
	config  PrefetchConfig
	logger  zerolog.Logger
}

// NewPrefetcher creates a prefetcher, filling in unset config values.
func NewPrefetcher(fetcher PageFetcher, config PrefetchConfig) *Prefetcher {
	defaults := DefaultPrefetchConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.PerPage <= 0 {
		config.PerPage = defaults.PerPage
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &Prefetcher{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "prefetch").Logger(),
	}
}

// Warm fetches pages from..to inclusive. It returns every page fetched
// before the first failure together with that failure; pages not yet
// started when a fetch fails are skipped.
func (p *Prefetcher) Warm(ctx context.Context, from, to int) (map[int]*client.Page, error) {
	if from < 1 {
		from = 1
	}
	if to < from {
		return map[int]*client.Page{}, nil
	}

	start := time.Now()
	total := to - from + 1
	p.logger.Info().
		Int("from", from).
		Int("to", to).
		Int("concurrency", p.config.Concurrency).
		Msg("Starting prefetch")

	var mu sync.Mutex
	results := make(map[int]*client.Page, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for page := from; page <= to; page++ {
		page := page
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			pageCtx, cancel := context.WithTimeout(gctx, p.config.Timeout)
			defer cancel()

			res, err := p.fetcher.FetchPage(pageCtx, page, p.config.PerPage)
			if err != nil {
				p.logger.Warn().Err(err).Int("page", page).Msg("Page prefetch failed")
				return fmt.Errorf("prefetch page %d: %w", page, err)
			}

			mu.Lock()
			results[page] = res
			fetched := len(results)
			mu.Unlock()

			if fetched%10 == 0 {
				p.logger.Info().
					Int("fetched", fetched).
					Int("total", total).
					Msg("Prefetch progress")
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	p.logger.Info().
		Int("pages", len(results)).
		Int("total", total).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("Prefetch complete")

	return results, err
}
