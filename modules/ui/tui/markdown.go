package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

type markdownKey struct {
	width int
	dark  bool
}

// markdownRenderer renders turn content, caching glamour renderers per style
type markdownRenderer struct {
	mu        sync.Mutex
	renderers map[markdownKey]*glamour.TermRenderer
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{renderers: make(map[markdownKey]*glamour.TermRenderer)}
}

// Render returns the terminal rendering of input, or input itself when
// glamour cannot render it
func (r *markdownRenderer) Render(input string, width int, dark bool) string {
	input = strings.TrimRight(input, "\n")
	if input == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	tr := r.get(width, dark)
	if tr == nil {
		return input
	}
	out, err := tr.Render(input)
	if err != nil {
		return input
	}
	return strings.Trim(out, "\n")
}

func (r *markdownRenderer) get(width int, dark bool) *glamour.TermRenderer {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := markdownKey{width: width, dark: dark}
	if tr, ok := r.renderers[key]; ok {
		return tr
	}

	style := "light"
	if dark {
		style = "dark"
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	r.renderers[key] = tr
	return tr
}
