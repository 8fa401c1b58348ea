package browse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Sternrassler/anilist-browser/pkg/client"
	"github.com/Sternrassler/anilist-browser/pkg/media"
	"github.com/Sternrassler/anilist-browser/pkg/pagination"
)

// synopsisWidth is the number of characters of synopsis shown on a card.
const synopsisWidth = 160

// StatusLabel returns a human readable release status.
func StatusLabel(s media.Status) string {
	switch s {
	case media.StatusFinished:
		return "Finished"
	case media.StatusReleasing:
		return "Releasing"
	case media.StatusNotYetReleased:
		return "Not yet released"
	case media.StatusCancelled:
		return "Cancelled"
	case media.StatusHiatus:
		return "On hiatus"
	default:
		return string(s)
	}
}

// Card renders an item as a compact list entry.
func Card(item media.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%s %s\n", item.ID, item.DisplayTitle())
	fmt.Fprintf(&b, "   %s | %s\n", item.NativeTitle, StatusLabel(item.Status))
	if syn := truncate(media.StripHTML(item.Synopsis), synopsisWidth); syn != "" {
		fmt.Fprintf(&b, "   %s\n", strings.ReplaceAll(syn, "\n", " "))
	}
	return b.String()
}

// Detail renders every field of an item.
func Detail(item media.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", item.DisplayTitle())
	fmt.Fprintf(&b, "%s\n\n", item.NativeTitle)
	fmt.Fprintf(&b, "Status:     %s\n", StatusLabel(item.Status))
	fmt.Fprintf(&b, "Type:       %s\n", item.Category)
	fmt.Fprintf(&b, "Start date: %s\n", item.StartDate.Format())
	fmt.Fprintf(&b, "End date:   %s\n", item.EndDate.Format())
	if item.FullImageURL != "" {
		fmt.Fprintf(&b, "Image:      %s\n", item.FullImageURL)
	}
	if syn := media.StripHTML(item.Synopsis); syn != "" {
		fmt.Fprintf(&b, "\n%s\n", syn)
	}
	return b.String()
}

// Strip renders the page strip on one line, marking the current page with
// brackets and disabled controls with parentheses.
func Strip(s pagination.Strip) string {
	parts := make([]string, 0, len(s.Pages)+2)
	parts = append(parts, control("Prev", s.Previous.Disabled))
	for _, l := range s.Pages {
		switch {
		case l.Ellipsis:
			parts = append(parts, "...")
		case l.Current:
			parts = append(parts, "["+strconv.Itoa(l.Page)+"]")
		default:
			parts = append(parts, strconv.Itoa(l.Page))
		}
	}
	parts = append(parts, control("Next", s.Next.Disabled))
	return strings.Join(parts, " ")
}

// View renders a whole session state for a terminal.
func View(st State) string {
	var b strings.Builder

	header := fmt.Sprintf("Page %d", st.Page)
	switch {
	case st.Loading:
		header += " (loading...)"
	case st.Cached:
		header += " (cached)"
	}
	b.WriteString(header + "\n\n")

	if st.Err != nil {
		fmt.Fprintf(&b, "%s\n", client.UserMessage(st.Err))
		b.WriteString("Press r to retry.\n\n")
	}

	if len(st.Items) == 0 && st.Err == nil && !st.Loading {
		b.WriteString("No anime found on this page.\n\n")
	}
	for _, item := range st.Items {
		b.WriteString(Card(item))
	}
	if st.Rejected > 0 {
		fmt.Fprintf(&b, "(%d entries could not be shown)\n", st.Rejected)
	}

	strip := pagination.PageLinks(st.Page, st.Meta.HasNextPage)
	if st.Loading {
		strip = strip.Disabled()
	}
	fmt.Fprintf(&b, "\n%s\n", Strip(strip))
	return b.String()
}

func control(label string, disabled bool) string {
	if disabled {
		return "(" + label + ")"
	}
	return "<" + label + ">"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
