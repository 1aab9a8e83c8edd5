// Package obstacle produces the shared obstacle stream on server time.
package obstacle

import (
	"math/rand"
	"time"

	"github.com/dino-runner/internal/domain"
)

// DefaultSpawnInterval is the minimum gap between two spawns.
const DefaultSpawnInterval = 1500 * time.Millisecond

// Authority spawns obstacles at a fixed minimum interval. It is owned by the
// game event loop and is not safe for concurrent use.
type Authority struct {
	interval  time.Duration
	width     float64
	sizes     []domain.ObstacleSize
	rng       *rand.Rand
	nextID    int64
	lastSpawn time.Time
}

// NewAuthority creates an authority whose first spawn is due one interval
// after start.
func NewAuthority(interval time.Duration, gameWidth float64, start time.Time, rng *rand.Rand) *Authority {
	if interval <= 0 {
		interval = DefaultSpawnInterval
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(start.UnixNano()))
	}
	return &Authority{
		interval:  interval,
		width:     gameWidth,
		sizes:     domain.ObstacleSizes,
		rng:       rng,
		nextID:    1,
		lastSpawn: start,
	}
}

// MaybeSpawn returns a new obstacle if at least one interval has passed since
// the previous spawn.
func (a *Authority) MaybeSpawn(now time.Time) (domain.Obstacle, bool) {
	if now.Sub(a.lastSpawn) < a.interval {
		return domain.Obstacle{}, false
	}

	size := a.sizes[a.rng.Intn(len(a.sizes))]
	o := domain.Obstacle{
		ID:     a.nextID,
		X:      a.width,
		Width:  size.Width,
		Height: size.Height,
		Type:   size.Type,
	}
	a.nextID++
	a.lastSpawn = now
	return o, true
}
