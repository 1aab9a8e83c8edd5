package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dino-runner/internal/domain"
)

func TestOverlapsIsSymmetric(t *testing.T) {
	boxes := []Box{
		DinoBox(GroundY),
		DinoBox(150),
		ObstacleBox(domain.Obstacle{X: 100, Width: 20, Height: 40}),
		ObstacleBox(domain.Obstacle{X: 120, Width: 20, Height: 40}),
		ObstacleBox(domain.Obstacle{X: 500, Width: 24, Height: 60}),
		{Left: 0, Right: 10, Bottom: 0, Top: 10},
	}
	for i, a := range boxes {
		for j, b := range boxes {
			assert.Equal(t, Overlaps(a, b), Overlaps(b, a), "boxes %d and %d", i, j)
		}
	}
}

func TestContainedBoxCollides(t *testing.T) {
	dino := DinoBox(GroundY)
	inner := Box{Left: dino.Left + 10, Right: dino.Right - 10, Bottom: dino.Bottom + 5, Top: dino.Top - 5}

	assert.True(t, Overlaps(dino, inner))
	assert.True(t, Overlaps(inner, dino))
	assert.True(t, Overlaps(dino, dino))
}

func TestTouchingEdgesDoNotCollide(t *testing.T) {
	dino := DinoBox(GroundY)

	rightOf := ObstacleBox(domain.Obstacle{X: dino.Right, Width: 20, Height: 40})
	assert.False(t, Overlaps(dino, rightOf))

	above := DinoBox(GroundY + 40)
	obstacle := ObstacleBox(domain.Obstacle{X: DinoX, Width: 20, Height: 40})
	assert.False(t, Overlaps(above, obstacle), "dino bottom resting on obstacle top")
}

func TestObstacleBoxIsGroundAnchored(t *testing.T) {
	b := ObstacleBox(domain.Obstacle{X: 300, Width: 24, Height: 60})
	assert.Equal(t, Box{Left: 300, Right: 324, Bottom: GroundY, Top: GroundY + 60}, b)
}
