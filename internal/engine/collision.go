package engine

import "github.com/dino-runner/internal/domain"

// Box is an axis-aligned rectangle in playfield coordinates with y growing
// upward from the bottom edge.
type Box struct {
	Left, Right, Bottom, Top float64
}

// Overlaps reports whether a and b intersect on both axes. Edges that merely
// touch do not count.
func Overlaps(a, b Box) bool {
	return a.Right > b.Left &&
		a.Left < b.Right &&
		a.Top > b.Bottom &&
		a.Bottom < b.Top
}

// DinoBox returns the avatar's box at height y.
func DinoBox(y float64) Box {
	return Box{
		Left:   DinoX,
		Right:  DinoX + DinoWidth,
		Bottom: y,
		Top:    y + DinoHeight,
	}
}

// ObstacleBox returns the ground-anchored box of o.
func ObstacleBox(o domain.Obstacle) Box {
	return Box{
		Left:   o.X,
		Right:  o.X + o.Width,
		Bottom: GroundY,
		Top:    GroundY + o.Height,
	}
}
