package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/Sternrassler/anilist-browser/internal/testutil"
	"github.com/Sternrassler/anilist-browser/pkg/client"
)

// execute runs the root command against the mock catalog with the given
// stdin and returns what it wrote to stdout.
func execute(t *testing.T, mock *testutil.MockAniList, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ANILIST_ENDPOINT", mock.URL())
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PROFILE_STORAGE", "")
	t.Setenv("PER_PAGE", "")
	t.Setenv("CACHE_TTL", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	mock := testutil.NewMockAniList()
	defer mock.Close()

	_, err := execute(t, mock, "", "page", "--log-level", "verbose")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("Execute() error = %v, want invalid configuration", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount() = %d, want 0", mock.RequestCount())
	}
}

func TestPageCmd(t *testing.T) {
	mock := testutil.NewMockAniList()
	defer mock.Close()
	mock.Enqueue(testutil.NewHealthyResponse(testutil.PageBody(2, true)))

	out, err := execute(t, mock, "", "page", "--page", "2", "--per-page", "3")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var page client.Page
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("output is not a page: %v\n%s", err, out)
	}
	if len(page.Items) != 3 {
		t.Errorf("len(Items) = %d, want 3", len(page.Items))
	}
	if page.Meta.CurrentPage != 2 || !page.Meta.HasNextPage {
		t.Errorf("Meta = %+v, want page 2 with a next page", page.Meta)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("len(Requests()) = %d, want 1", len(reqs))
	}
	if reqs[0].Variables["page"] != 2 || reqs[0].Variables["perPage"] != 3 {
		t.Errorf("Variables = %v, want page 2 perPage 3", reqs[0].Variables)
	}
}

func TestPageCmd_UpstreamRejects(t *testing.T) {
	mock := testutil.NewMockAniList()
	defer mock.Close()
	mock.SetFallback(testutil.NewGraphQLErrorResponse("Invalid page"))

	if _, err := execute(t, mock, "", "page"); client.ClassOf(err) != client.ErrorClassGraphQL {
		t.Errorf("Execute() error = %v, want graphql class", err)
	}
}

func TestWarmCmd(t *testing.T) {
	mock := testutil.NewMockAniList()
	defer mock.Close()

	out, err := execute(t, mock, "", "warm", "--from", "1", "--to", "3")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "warmed 3 of 3 pages") {
		t.Errorf("output = %q, want warm summary", out)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("RequestCount() = %d, want 3", mock.RequestCount())
	}
}

func TestWarmCmd_InvalidRange(t *testing.T) {
	mock := testutil.NewMockAniList()
	defer mock.Close()

	if _, err := execute(t, mock, "", "warm", "--from", "4", "--to", "2"); err == nil {
		t.Error("Execute() error = nil, want invalid range")
	}
}

func TestBrowseCmd(t *testing.T) {
	mock := testutil.NewMockAniList()
	defer mock.Close()
	mock.SetFallback(testutil.NewHealthyResponse(testutil.PageBody(1, true)))

	// An empty profile is rejected before the valid one is accepted.
	stdin := strings.Join([]string{"", "", "spike", "pilot", "n", "7", "b", "q"}, "\n") + "\n"
	out, err := execute(t, mock, stdin, "browse")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{
		"Create a profile to start browsing.",
		"username is required",
		"Welcome, spike (pilot).",
		"Page 1",
		"Page 7",
		"Title A",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "Page 2\n"); n != 2 {
		t.Errorf("page 2 shown %d times, want 2 (next, then back)", n)
	}

	var pages []int
	for _, req := range mock.Requests() {
		pages = append(pages, req.Variables["page"])
	}
	want := []int{1, 2, 7, 2}
	if len(pages) != len(want) {
		t.Fatalf("requested pages = %v, want %v", pages, want)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("requested pages = %v, want %v", pages, want)
			break
		}
	}
}

func TestBrowseCmd_StartPageCorrected(t *testing.T) {
	mock := testutil.NewMockAniList()
	defer mock.Close()

	out, err := execute(t, mock, "spike\npilot\nq\n", "browse", "--page", "abc")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "Page 1\n") {
		t.Errorf("output = %q, want page 1", out)
	}
	if reqs := mock.Requests(); len(reqs) != 1 || reqs[0].Variables["page"] != 1 {
		t.Errorf("Requests() = %v, want one request for page 1", reqs)
	}
}
