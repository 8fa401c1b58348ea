package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newPageCmd(opts *rootOptions) *cobra.Command {
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "page",
		Short: "Fetch one catalog page and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if perPage == 0 {
				perPage = opts.cfg.AniList.PerPage
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.client.FetchPage(ctx, page, perPage)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "items per page (default from config)")
	return cmd
}
