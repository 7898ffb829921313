package ui

import (
	"fmt"
	"strings"

	"charm.land/glamour/v2"
	"github.com/muesli/termenv"

	"github.com/featureboard/featureboard/internal/types"
)

// maxReadableWidth caps markdown word wrap on wide terminals.
const maxReadableWidth = 100

// RenderMarkdown renders markdown text using glamour.
// Returns the original text if colors are disabled or rendering fails.
func RenderMarkdown(markdown string) string {
	if !ShouldUseColor() {
		return markdown
	}

	wrapWidth := Width(80)
	if wrapWidth > maxReadableWidth {
		wrapWidth = maxReadableWidth
	}

	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return markdown
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}

// FeatureMarkdown builds the markdown document shown by `fb show`.
func FeatureMarkdown(f *types.Feature) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", f.Name)
	fmt.Fprintf(&b, "**#%d** · %s · priority %d · %s\n\n", f.ID, f.Category, f.Priority, LaneTitle(f.Lane()))

	if d := strings.TrimSpace(f.Description); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}

	if len(f.Steps) > 0 {
		b.WriteString("## Steps\n\n")
		for i, s := range f.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		b.WriteString("\n")
	}

	if f.CompletedAt != nil {
		fmt.Fprintf(&b, "_Completed %s_\n", f.CompletedAt.Local().Format("2006-01-02 15:04"))
	}
	return b.String()
}
