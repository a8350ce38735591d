package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/Yahya305/Daaktar-Saab/internal/ui/theme"
)

// DepthMeter shows how many clarifying questions of the allowed budget have
// been asked. The bar turns amber on the last question.
type DepthMeter struct {
	Depth    int
	MaxDepth int
	Width    int
}

// View renders the meter.
func (d DepthMeter) View() string {
	label := lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf("Questions %d/%d  ", d.Depth, d.MaxDepth))

	barWidth := max(d.Width-lipgloss.Width(label), 4)
	filled := 0
	if d.MaxDepth > 0 {
		filled = barWidth * min(max(d.Depth, 0), d.MaxDepth) / d.MaxDepth
	}

	fill := theme.Secondary
	if d.MaxDepth > 0 && d.Depth >= d.MaxDepth-1 {
		fill = theme.Accent
	}

	return label +
		lipgloss.NewStyle().Background(fill).Render(strings.Repeat(" ", filled)) +
		lipgloss.NewStyle().Background(theme.Border).Render(strings.Repeat(" ", barWidth-filled))
}
