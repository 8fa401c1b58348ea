package browse

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sternrassler/anilist-browser/pkg/client"
	"github.com/Sternrassler/anilist-browser/pkg/media"
	"github.com/Sternrassler/anilist-browser/pkg/pagination"
)

func intPtr(n int) *int { return &n }

func sampleItem() media.Item {
	return media.Item{
		ID:           "21",
		PrimaryTitle: "One Piece",
		NativeTitle:  "ワンピース",
		Status:       media.StatusReleasing,
		Category:     media.CategoryAnime,
		StartDate:    &media.FuzzyDate{Year: intPtr(1999), Month: intPtr(10), Day: intPtr(20)},
		Synopsis:     "Gol D. Roger was known as the <b>Pirate King</b>.<br>The end &amp; more.",
		FullImageURL: "https://img.example.com/21.jpg",
	}
}

func TestCard(t *testing.T) {
	out := Card(sampleItem())

	assert.Contains(t, out, "#21 One Piece")
	assert.Contains(t, out, "ワンピース | Releasing")
	assert.Contains(t, out, "Pirate King")
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "The end & more.")
}

func TestCard_TruncatesLongSynopsis(t *testing.T) {
	item := sampleItem()
	item.Synopsis = strings.Repeat("word ", 100)

	out := Card(item)
	assert.Contains(t, out, "...")
	assert.Less(t, len(out), 300)
}

func TestDetail(t *testing.T) {
	out := Detail(sampleItem())

	assert.Contains(t, out, "Start date: 1999-10-20")
	assert.Contains(t, out, "End date:   Unknown")
	assert.Contains(t, out, "Type:       ANIME")
	assert.Contains(t, out, "Image:      https://img.example.com/21.jpg")
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Not yet released", StatusLabel(media.StatusNotYetReleased))
	assert.Equal(t, "On hiatus", StatusLabel(media.StatusHiatus))
	assert.Equal(t, "WEIRD", StatusLabel(media.Status("WEIRD")))
}

func TestStrip(t *testing.T) {
	assert.Equal(t, "(Prev) [1] 2 3 ... <Next>", Strip(pagination.PageLinks(1, true)))
	assert.Equal(t, "<Prev> 1 ... 3 4 [5] 6 7 ... (Next)", Strip(pagination.PageLinks(5, false)))
	assert.Equal(t, "(Prev) [1] 2 3 ... (Next)", Strip(pagination.PageLinks(1, true).Disabled()))
}

func TestView(t *testing.T) {
	t.Run("loaded", func(t *testing.T) {
		out := View(State{
			Page:     2,
			Items:    []media.Item{sampleItem()},
			Meta:     media.PageMeta{CurrentPage: 2, HasNextPage: true},
			Rejected: 1,
		})
		assert.Contains(t, out, "Page 2\n")
		assert.Contains(t, out, "#21 One Piece")
		assert.Contains(t, out, "(1 entries could not be shown)")
		assert.Contains(t, out, "<Prev> 1 [2] 3 4 ... <Next>")
	})

	t.Run("loading", func(t *testing.T) {
		out := View(State{Page: 3, Loading: true})
		assert.Contains(t, out, "Page 3 (loading...)")
		assert.Contains(t, out, "(Prev)")
	})

	t.Run("error", func(t *testing.T) {
		err := &client.APIError{ErrorClass: client.ErrorClassRateLimit}
		out := View(State{Page: 1, Err: errors.Join(client.ErrRetryExhausted, err)})
		assert.Contains(t, out, "try again later")
		assert.Contains(t, out, "Press r to retry.")
	})

	t.Run("empty", func(t *testing.T) {
		out := View(State{Page: 400})
		assert.Contains(t, out, "No anime found on this page.")
	})
}
