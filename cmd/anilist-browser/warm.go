package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/anilist-browser/pkg/pagination"
)

func newWarmCmd(opts *rootOptions) *cobra.Command {
	var from, to int

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Prefetch a range of pages into the page cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if from < 1 || to < from {
				return fmt.Errorf("invalid page range %d..%d", from, to)
			}
			if opts.cfg.Redis.URL == "" {
				opts.logger.Warn().Msg("Redis is not configured - warmed pages are not cached")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			prefetcher := pagination.NewPrefetcher(a.client, pagination.PrefetchConfig{
				Concurrency: opts.cfg.Prefetch.Concurrency,
				PerPage:     opts.cfg.AniList.PerPage,
				Timeout:     opts.cfg.Server.RequestTimeout,
			})

			pages, err := prefetcher.Warm(ctx, from, to)
			fmt.Fprintf(cmd.OutOrStdout(), "warmed %d of %d pages\n", len(pages), to-from+1)
			return err
		},
	}

	cmd.Flags().IntVar(&from, "from", 1, "first page")
	cmd.Flags().IntVar(&to, "to", 5, "last page")
	return cmd
}
