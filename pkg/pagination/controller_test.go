package pagination

import (
	"net/url"
	"testing"
)

func TestReadCurrentPage(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		wantPage      int
		wantCorrected bool
	}{
		{"absent", "", 1, false},
		{"other params only", "sort=new", 1, false},
		{"valid", "page=7", 7, false},
		{"large", "page=123456", 123456, false},
		{"zero", "page=0", 1, true},
		{"negative", "page=-3", 1, true},
		{"letters", "page=abc", 1, true},
		{"empty", "page=", 1, true},
		{"decimal", "page=2.5", 1, true},
		{"leading zero", "page=05", 1, true},
		{"plus sign", "page=%2B5", 1, true},
		{"trailing garbage", "page=5x", 1, true},
		{"overflow", "page=99999999999999999999999", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery(%q) error = %v", tt.query, err)
			}

			page, corrected := ReadCurrentPage(q)
			if page != tt.wantPage || corrected != tt.wantCorrected {
				t.Errorf("ReadCurrentPage(%q) = (%d, %v), want (%d, %v)",
					tt.query, page, corrected, tt.wantPage, tt.wantCorrected)
			}
		})
	}
}

func TestWithPage_PreservesOtherParams(t *testing.T) {
	q := url.Values{"sort": {"new"}, "page": {"3"}}
	out := WithPage(q, 9)

	if out.Get("page") != "9" || out.Get("sort") != "new" {
		t.Errorf("WithPage() = %v, want page=9 sort=new", out)
	}
	if q.Get("page") != "3" {
		t.Error("WithPage() must not modify its input")
	}
}

func TestController_SyncRepairsWithReplace(t *testing.T) {
	h := NewHistory(url.Values{"page": {"abc"}, "q": {"x"}})
	c := NewController(h)

	if got := c.Sync(); got != 1 {
		t.Errorf("Sync() = %d, want 1", got)
	}
	if h.Len() != 1 {
		t.Errorf("history length = %d, want 1 (replace, not push)", h.Len())
	}
	cur := h.Current()
	if cur.Get("page") != "1" || cur.Get("q") != "x" {
		t.Errorf("current entry = %v, want page=1 q=x", cur)
	}
}

func TestController_SyncLeavesAbsentPageAlone(t *testing.T) {
	h := NewHistory(url.Values{})
	c := NewController(h)

	if got := c.Sync(); got != 1 {
		t.Errorf("Sync() = %d, want 1", got)
	}
	if h.Current().Has("page") {
		t.Error("Absent page parameter should not be rewritten")
	}
}

func TestController_GoToPage(t *testing.T) {
	h := NewHistory(url.Values{"page": {"2"}, "genre": {"drama"}})
	c := NewController(h)

	tests := []struct {
		requested int
		want      int
	}{
		{5, 5},
		{0, 1},
		{-7, 1},
	}

	for _, tt := range tests {
		if got := c.GoToPage(tt.requested); got != tt.want {
			t.Errorf("GoToPage(%d) = %d, want %d", tt.requested, got, tt.want)
		}
		cur := h.Current()
		page, _ := ReadCurrentPage(cur)
		if page != tt.want || cur.Get("genre") != "drama" {
			t.Errorf("after GoToPage(%d) entry = %v", tt.requested, cur)
		}
	}

	if h.Len() != 4 {
		t.Errorf("history length = %d, want 4 (one push per call)", h.Len())
	}
}

func TestController_BackReturnsToPreviousPage(t *testing.T) {
	h := NewHistory(url.Values{})
	c := NewController(h)

	c.GoToPage(3)
	c.GoToPage(8)

	if !h.Back() {
		t.Fatal("Back() = false, want true")
	}
	if page, _ := c.CurrentPage(); page != 3 {
		t.Errorf("page after Back() = %d, want 3", page)
	}

	if !h.Forward() {
		t.Fatal("Forward() = false, want true")
	}
	if page, _ := c.CurrentPage(); page != 8 {
		t.Errorf("page after Forward() = %d, want 8", page)
	}
}

func TestHistory_PushDropsForwardEntries(t *testing.T) {
	h := NewHistory(url.Values{"page": {"1"}})
	h.Push(url.Values{"page": {"2"}})
	h.Push(url.Values{"page": {"3"}})
	h.Back()
	h.Back()
	h.Push(url.Values{"page": {"9"}})

	if h.Len() != 2 {
		t.Errorf("Len() = %d, want 2", h.Len())
	}
	if h.Forward() {
		t.Error("Forward() should fail after a push")
	}
	if h.Back(); h.Back() {
		t.Error("Back() should fail at the first entry")
	}
}

func TestHistory_CurrentIsACopy(t *testing.T) {
	h := NewHistory(url.Values{"page": {"4"}})
	cur := h.Current()
	cur.Set("page", "99")

	if h.Current().Get("page") != "4" {
		t.Error("Mutating Current() result must not change the history")
	}
}
