package reporting

import (
	"bytes"
	"math"

	"github.com/fatih/color"
	"github.com/paulmach/orb"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/core"
)

// Glyphs used by the ASCII renderer
const (
	GlyphUnexplored = '.'
	GlyphExplored   = ' '
	GlyphTarget     = 'X'
	GlyphExploring  = 'o'
	GlyphHalted     = 'H'
	GlyphManual     = 'M'
)

var (
	colorTarget    = color.New(color.FgRed, color.Bold)
	colorExploring = color.New(color.FgGreen)
	colorHalted    = color.New(color.FgYellow, color.Bold)
	colorManual    = color.New(color.FgCyan, color.Bold)
	colorExplored  = color.New(color.BgHiBlack)
)

// ASCIIRenderer draws the field as a character grid, one row per line.
// Each character covers Scale x Scale field cells. Agents are drawn over
// targets, and targets over region shading.
type ASCIIRenderer struct {
	Scale int
	Color bool
}

// NewASCIIRenderer creates a renderer that picks a scale keeping the grid at
// most maxWidth characters wide
func NewASCIIRenderer(fieldWidth, maxWidth int, useColor bool) *ASCIIRenderer {
	scale := 1
	if maxWidth > 0 && fieldWidth > maxWidth {
		scale = int(math.Ceil(float64(fieldWidth) / float64(maxWidth)))
	}
	return &ASCIIRenderer{Scale: scale, Color: useColor}
}

// Render implements core.Renderer
func (r *ASCIIRenderer) Render(view core.FieldView) ([]byte, error) {
	scale := r.Scale
	if scale < 1 {
		scale = 1
	}

	cols := (view.Width + scale - 1) / scale
	rows := (view.Height + scale - 1) / scale

	grid := make([][]rune, rows)
	for y := range grid {
		grid[y] = make([]rune, cols)
		for x := range grid[y] {
			center := orb.Point{(float64(x) + 0.5) * float64(scale), (float64(y) + 0.5) * float64(scale)}
			grid[y][x] = GlyphUnexplored
			for _, b := range view.Explored {
				if b.Contains(center) {
					grid[y][x] = GlyphExplored
					break
				}
			}
		}
	}

	for _, t := range view.Targets {
		x, y := t.X/scale, t.Y/scale
		if y < rows && x < cols {
			grid[y][x] = GlyphTarget
		}
	}

	for _, a := range view.Agents {
		x := int(math.Floor(a.Position[0])) / scale
		y := int(math.Floor(a.Position[1])) / scale
		if x < 0 || y < 0 || y >= rows || x >= cols {
			continue
		}
		grid[y][x] = agentGlyph(a.State)
	}

	var buf bytes.Buffer
	for y, row := range grid {
		for _, g := range row {
			buf.WriteString(r.paint(g))
		}
		if y < rows-1 {
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes(), nil
}

func (r *ASCIIRenderer) paint(g rune) string {
	s := string(g)
	if !r.Color {
		return s
	}

	switch g {
	case GlyphTarget:
		return colorTarget.Sprint(s)
	case GlyphExploring:
		return colorExploring.Sprint(s)
	case GlyphHalted:
		return colorHalted.Sprint(s)
	case GlyphManual:
		return colorManual.Sprint(s)
	case GlyphExplored:
		return colorExplored.Sprint(s)
	default:
		return s
	}
}

func agentGlyph(s core.AgentState) rune {
	switch s {
	case core.StateHalted:
		return GlyphHalted
	case core.StateManualControl:
		return GlyphManual
	default:
		return GlyphExploring
	}
}

var _ core.Renderer = (*ASCIIRenderer)(nil)
