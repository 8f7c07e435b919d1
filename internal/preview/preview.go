// Package preview draws gallery layouts in the terminal.
package preview

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/mosaic/internal/gallery"
)

type theme struct {
	tile    lipgloss.Style
	partial lipgloss.Style
	head    lipgloss.Style
	label   lipgloss.Style
	warn    lipgloss.Style
}

func newTheme() theme {
	b := lipgloss.NewStyle().Border(lipgloss.RoundedBorder())
	return theme{
		tile:    b.BorderForeground(lipgloss.Color("63")),
		partial: b.BorderForeground(lipgloss.Color("240")),
		head:    lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true),
		label:   lipgloss.NewStyle().Faint(true),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

// Render draws every row of l as a strip of bordered tiles, scaled so the
// container width spans cols terminal columns. Rows that do not fill the
// container are drawn with a dim border.
func Render(l gallery.Layout, cols int) string {
	th := newTheme()
	var b strings.Builder

	fmt.Fprintln(&b, th.head.Render(fmt.Sprintf("%s layout · %g px wide · %d rows · %.0f px tall",
		l.Mode, l.ContainerWidth, len(l.Rows), l.Height)))
	if len(l.Rows) == 0 || !(l.ContainerWidth > 0) || cols <= 0 {
		return b.String()
	}

	scale := float64(cols) / l.ContainerWidth
	for i, row := range l.Rows {
		style := th.tile
		if !row.Filled {
			style = th.partial
		}
		boxes := make([]string, len(row.Tiles))
		for j, t := range row.Tiles {
			inner := max(1, int(math.Round(t.Width*scale))-2)
			boxes[j] = style.Width(inner).Render(truncate(path.Base(t.Image.Path), inner) + "\n" +
				truncate(fmt.Sprintf("%.0f×%.0f", t.Width, row.Height), inner))
		}
		fmt.Fprintln(&b, th.label.Render(fmt.Sprintf("row %d · %.1f px", i, row.Height)))
		fmt.Fprintln(&b, lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	}

	for _, d := range l.Skipped {
		fmt.Fprintln(&b, th.warn.Render("skipped "+d.Path))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
