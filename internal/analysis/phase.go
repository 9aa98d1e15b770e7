package analysis

import (
	"strings"

	"github.com/san-kum/tanksim/internal/physics"
	"github.com/san-kum/tanksim/internal/sim"
)

type PhasePoint struct {
	H1, H2 float64
	Mode   physics.Mode
}

type PhasePortrait struct {
	Points []PhasePoint
}

func NewPhasePortrait(traj *sim.Trajectory) *PhasePortrait {
	modes := traj.Modes()
	p := &PhasePortrait{Points: make([]PhasePoint, 0, traj.Len())}
	for i, x := range traj.States() {
		p.Points = append(p.Points, PhasePoint{H1: x[0], H2: x[1], Mode: modes[i]})
	}
	return p
}

// ASCII renders h1 on the x axis and h2 on the y axis. NORMAL samples are
// drawn as '•', VALVE_STUCK samples as 'x'.
func (p *PhasePortrait) ASCII(width, height int) string {
	if p == nil || len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := p.Points[0].H1, p.Points[0].H1
	minY, maxY := p.Points[0].H2, p.Points[0].H2
	for _, pt := range p.Points {
		minX = min(minX, pt.H1)
		maxX = max(maxX, pt.H1)
		minY = min(minY, pt.H2)
		maxY = max(maxY, pt.H2)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.05
	minY -= rangeY * 0.05
	rangeX *= 1.1
	rangeY *= 1.1

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, pt := range p.Points {
		col := int((pt.H1 - minX) / rangeX * float64(width-1))
		row := height - 1 - int((pt.H2-minY)/rangeY*float64(height-1))
		if row < 0 || row >= height || col < 0 || col >= width {
			continue
		}
		glyph := '•'
		if pt.Mode == physics.ModeValveStuck {
			glyph = 'x'
		}
		canvas[row][col] = glyph
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(strings.TrimRight(string(row), " "))
		sb.WriteRune('\n')
	}
	return sb.String()
}
