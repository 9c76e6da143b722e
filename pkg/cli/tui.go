package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the status frame color scheme.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the guri lavender theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#b48eff"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Section is one labeled block of the frame; Content is polled at
// render time so the frame always shows live state.
type Section struct {
	Label   string
	Content func() []string
}

// Frame renders the live session view: a title bar, a status line,
// labeled sections (transcript, response, log tail) and a help footer.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

func (f Frame) Render(width, height int) string {
	if width == 0 || height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(f.Styles.Title.Render(f.Title))
	if f.Status != "" {
		b.WriteString("  " + f.Styles.Help.Render(f.Status))
	}
	b.WriteString("\n")
	b.WriteString(f.Styles.Border.Render(strings.Repeat("─", max(1, width))))
	b.WriteString("\n")

	for _, sec := range f.Sections {
		b.WriteString(f.Styles.Label.Render(sec.Label))
		b.WriteString("\n")
		for _, line := range sec.Content() {
			if len(line) > width {
				line = line[:width]
			}
			b.WriteString("  " + line + "\n")
		}
	}

	if f.Help != "" {
		b.WriteString(f.Styles.Border.Render(strings.Repeat("─", max(1, width))))
		b.WriteString("\n")
		b.WriteString(f.Styles.Help.Render(f.Help))
	}
	return b.String()
}
