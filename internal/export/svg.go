package export

import (
	"fmt"
	"html"
	"strings"
)

// Palette is cycled through for series without a color.
var Palette = []string{"#00d7af", "#ff5f5f", "#ffd75f", "#5fafff", "#d787ff"}

// Series is one line of a plot.
type Series struct {
	Name  string
	X, Y  []float64
	Color string
}

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (b *bounds) pad() {
	rangeX := b.maxX - b.minX
	rangeY := b.maxY - b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * 0.05
	b.maxX += rangeX * 0.05
	b.minY -= rangeY * 0.1
	b.maxY += rangeY * 0.1
}

// PlotSVG draws every series with at least two points on shared axes.
// It returns "" when there is nothing to draw.
func PlotSVG(series []Series, width, height int, caption string) string {
	var b *bounds
	for _, s := range series {
		n := min(len(s.X), len(s.Y))
		if n < 2 {
			continue
		}
		for i := 0; i < n; i++ {
			if b == nil {
				b = &bounds{s.X[i], s.X[i], s.Y[i], s.Y[i]}
			}
			b.minX, b.maxX = min(b.minX, s.X[i]), max(b.maxX, s.X[i])
			b.minY, b.maxY = min(b.minY, s.Y[i]), max(b.maxY, s.Y[i])
		}
	}
	if b == nil {
		return ""
	}
	b.pad()
	rangeX := b.maxX - b.minX
	rangeY := b.maxY - b.minY

	var sb strings.Builder

	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	legend := 0
	for k, s := range series {
		n := min(len(s.X), len(s.Y))
		if n < 2 {
			continue
		}
		color := s.Color
		if color == "" {
			color = Palette[k%len(Palette)]
		}

		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color)
		for i := 0; i < n; i++ {
			x := (s.X[i] - b.minX) / rangeX * float64(width)
			y := float64(height) - (s.Y[i]-b.minY)/rangeY*float64(height)

			if i == 0 {
				fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")

		if s.Name != "" {
			legend++
			fmt.Fprintf(&sb, `<text x="%d" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, width-120, 16*legend, color, html.EscapeString(s.Name))
		}
	}

	if caption != "" {
		fmt.Fprintf(&sb, `<text x="8" y="%d" fill="#8a8a8a" font-family="monospace" font-size="12">%s</text>
`, height-8, html.EscapeString(caption))
	}
	fmt.Fprintf(&sb, `<text x="8" y="16" fill="#8a8a8a" font-family="monospace" font-size="11">y %.4g .. %.4g, x %.4g .. %.4g</text>
`, b.minY, b.maxY, b.minX, b.maxX)

	sb.WriteString("</svg>")
	return sb.String()
}
