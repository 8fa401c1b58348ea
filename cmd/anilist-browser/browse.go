package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/anilist-browser/pkg/browse"
	"github.com/Sternrassler/anilist-browser/pkg/config"
	"github.com/Sternrassler/anilist-browser/pkg/pagination"
	"github.com/Sternrassler/anilist-browser/pkg/profile"
	"github.com/Sternrassler/anilist-browser/pkg/validation"
)

// cliNamespace keys the terminal visitor's profile in Redis.
const cliNamespace = "cli"

const browseHelp = "n next, p previous, <number> go to page, b back, r retry, q quit"

func newBrowseCmd(opts *rootOptions) *cobra.Command {
	var startPage string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the catalog interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			in := bufio.NewScanner(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			store := profile.NewStore(a.profileStorage())
			p, err := ensureProfile(ctx, store, in, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Welcome, %s (%s).\n\n", p.Username, p.JobTitle)

			initial := url.Values{}
			if startPage != "" {
				initial.Set(pagination.Param, startPage)
			}
			session := browse.NewSession(a.client, initial, opts.cfg.AniList.PerPage)
			defer session.Close()

			return runBrowse(session, in, out)
		},
	}

	cmd.Flags().StringVar(&startPage, "page", "", "page to start on")
	return cmd
}

// profileStorage keeps the terminal profile in Redis when profiles are
// configured to live there and in memory otherwise.
func (a *app) profileStorage() profile.Storage {
	if a.redis != nil && a.cfg.Profile.Storage == config.ProfileStorageRedis {
		return profile.NewRedisStorage(a.redis, cliNamespace, a.cfg.Profile.TTL)
	}
	return profile.NewMemoryStorage()
}

// ensureProfile returns the stored profile, asking for one until a valid
// profile is saved.
func ensureProfile(ctx context.Context, store *profile.Store, in *bufio.Scanner, out io.Writer) (*profile.Profile, error) {
	if p, ok := store.Load(ctx); ok {
		return p, nil
	}

	fmt.Fprintln(out, "Create a profile to start browsing.")
	for {
		username, err := prompt(in, out, "Username: ")
		if err != nil {
			return nil, err
		}
		jobTitle, err := prompt(in, out, "Job title: ")
		if err != nil {
			return nil, err
		}

		p, err := store.Save(ctx, profile.Profile{Username: username, JobTitle: jobTitle})
		if err == nil {
			return p, nil
		}

		var verr *validation.Error
		if !errors.As(err, &verr) {
			return nil, err
		}
		names := make([]string, 0, len(verr.Fields))
		for name := range verr.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s %s\n", name, verr.Fields[name])
		}
	}
}

func prompt(in *bufio.Scanner, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return in.Text(), nil
}

// runBrowse reads commands until q or end of input, printing the view
// after every page load.
func runBrowse(session *browse.Session, in *bufio.Scanner, out io.Writer) error {
	session.Sync()
	fmt.Fprint(out, browse.View(awaitLoaded(session)))
	fmt.Fprintln(out, browseHelp)

	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			return in.Err()
		}

		cmd := strings.TrimSpace(in.Text())
		moved := true
		switch cmd {
		case "q", "quit":
			return nil
		case "":
			continue
		case "n":
			if moved = session.Next(); !moved {
				fmt.Fprintln(out, "Already on the last page.")
			}
		case "p":
			if moved = session.Previous(); !moved {
				fmt.Fprintln(out, "Already on the first page.")
			}
		case "b":
			if moved = session.Back(); !moved {
				fmt.Fprintln(out, "No earlier page.")
			}
		case "r":
			session.Retry()
		default:
			n, err := strconv.Atoi(cmd)
			if err != nil {
				fmt.Fprintln(out, browseHelp)
				moved = false
				break
			}
			session.GoToPage(n)
		}

		if moved {
			fmt.Fprint(out, browse.View(awaitLoaded(session)))
		}
	}
}

// awaitLoaded waits for the current load to finish and returns its state.
func awaitLoaded(session *browse.Session) browse.State {
	for st := range session.Updates() {
		if !st.Loading && st.Page == session.Snapshot().Page {
			return st
		}
	}
	return session.Snapshot()
}
