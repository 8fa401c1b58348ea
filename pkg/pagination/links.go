package pagination

const (
	// linkDelta is how many pages are shown on each side of the current one.
	linkDelta = 2

	// linkCap is the highest page number offered in the strip.
	linkCap = 99
)

// Link is one entry of the page strip. Ellipsis entries carry no page.
type Link struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
	Current  bool `json:"current,omitempty"`
	Disabled bool `json:"disabled,omitempty"`
}

// Strip is the navigation control under a result list.
type Strip struct {
	Previous Link   `json:"previous"`
	Pages    []Link `json:"pages"`
	Next     Link   `json:"next"`
}

// PageLinks builds the strip for current. The total page count is unknown,
// so the window is current±2, page 1 is always shown, and page 99 is offered
// once the window reaches it while more pages exist.
func PageLinks(current int, hasNext bool) Strip {
	if current < 1 {
		current = 1
	}
	left := current - linkDelta
	right := current + linkDelta

	pages := []Link{{Page: 1, Current: current == 1}}
	if left > 2 {
		pages = append(pages, Link{Ellipsis: true})
	}

	last := 1
	for i := max(2, left); i <= min(right, linkCap); i++ {
		pages = append(pages, Link{Page: i, Current: i == current})
		last = i
	}

	if right < linkCap-1 {
		pages = append(pages, Link{Ellipsis: true})
	}
	if right >= linkCap-1 && hasNext && last != linkCap {
		pages = append(pages, Link{Page: linkCap})
	}

	return Strip{
		Previous: Link{Page: current - 1, Disabled: current == 1},
		Pages:    pages,
		Next:     Link{Page: current + 1, Disabled: !hasNext},
	}
}

// Disabled returns a copy of s with every control disabled, as while a page
// is loading.
func (s Strip) Disabled() Strip {
	out := Strip{
		Previous: s.Previous,
		Next:     s.Next,
		Pages:    make([]Link, len(s.Pages)),
	}
	out.Previous.Disabled = true
	out.Next.Disabled = true
	for i, l := range s.Pages {
		if !l.Ellipsis {
			l.Disabled = true
		}
		out.Pages[i] = l
	}
	return out
}
