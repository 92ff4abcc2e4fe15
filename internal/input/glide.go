package input

import (
	"math"
	"time"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
)

// bowFactor offsets the Bezier control points sideways, as a fraction of the distance.
const bowFactor = 0.08

// Glider plans eased pointer paths. Paths are deterministic: the same start,
// end and config always give the same waypoints.
type Glider struct {
	cfg config.GlideConfig
}

// NewGlider returns nil when gliding is disabled.
func NewGlider(cfg config.GlideConfig) *Glider {
	if !cfg.Enabled {
		return nil
	}
	return &Glider{cfg: cfg}
}

// easeInOutCubic accelerates through the first half and decelerates through the second.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// Duration estimates the movement time with Fitts's law.
func (g *Glider) Duration(distance float64) time.Duration {
	width := g.cfg.TargetWidth
	if width <= 0 {
		width = 1
	}
	id := math.Log2(1.0 + distance/width)
	mt := g.cfg.FittsA + g.cfg.FittsB*id
	return time.Duration(mt * float64(time.Millisecond))
}

// Path returns the waypoints from start to end, ending exactly on end.
func (g *Glider) Path(start, end schemas.Point) []schemas.Point {
	p0 := Vector2D{X: float64(start.X), Y: float64(start.Y)}
	p3 := Vector2D{X: float64(end.X), Y: float64(end.Y)}
	mainVec := p3.Sub(p0)
	dist := mainVec.Mag()
	if dist < 1.0 {
		return []schemas.Point{end}
	}

	steps := 2
	if g.cfg.StepInterval > 0 {
		steps = max(steps, int(g.Duration(dist)/g.cfg.StepInterval))
	}

	dir := mainVec.Normalize()
	bow := dir.Perp().Mul(dist * bowFactor)
	p1 := p0.Add(dir.Mul(dist / 3.0)).Add(bow)
	p2 := p0.Add(dir.Mul(dist * 2.0 / 3.0)).Add(bow)

	path := make([]schemas.Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := easeInOutCubic(float64(i) / float64(steps))
		omt := 1.0 - t
		pos := p0.Mul(omt * omt * omt).
			Add(p1.Mul(3 * omt * omt * t)).
			Add(p2.Mul(3 * omt * t * t)).
			Add(p3.Mul(t * t * t))
		x, y := pos.Round()
		path = append(path, schemas.Point{X: x, Y: y})
	}
	path[len(path)-1] = end
	return path
}
