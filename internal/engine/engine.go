// Package engine is the client-side simulation of one run: jump arc, gravity,
// obstacle scrolling, collision and score. It is deterministic given the
// sequence of Step deltas, jump requests and inbound obstacles.
package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/dino-runner/internal/domain"
)

// ErrWrongMode is returned when an obstacle source is used that the engine
// was not configured for.
var ErrWrongMode = errors.New("obstacle source does not match engine mode")

// State is the local game state of one run.
type State struct {
	DinoY       float64
	VelocityY   float64
	IsJumping   bool
	IsGameOver  bool
	Score       float64
	GroundSpeed float64
	SessionID   string
}

// Frame is the outcome of one Step.
type Frame struct {
	Score     int64
	IsJumping bool
	Collided  bool
	Skipped   bool
}

// Config selects where obstacles come from and seeds local randomness.
type Config struct {
	Mode               domain.ObstacleMode
	GameWidth          float64
	LocalSpawnInterval time.Duration
	Rand               *rand.Rand
	NewSessionID       func() string
}

// Engine simulates a single run. A finished run is never restarted; call
// Reset to begin a fresh one.
type Engine struct {
	cfg       Config
	state     State
	obstacles []domain.Obstacle
	maxSeenID int64
	sinceLast time.Duration
	localID   int64
}

// NewSessionID generates a run identifier.
func NewSessionID() string {
	return "session-" + uuid.NewString()
}

// New creates an engine with a fresh run.
func New(cfg Config) (*Engine, error) {
	if cfg.Mode == "" {
		cfg.Mode = domain.ObstacleModeServer
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("creating engine: unknown obstacle mode %q", cfg.Mode)
	}
	if cfg.GameWidth <= 0 {
		cfg.GameWidth = GameWidth
	}
	if cfg.LocalSpawnInterval <= 0 {
		cfg.LocalSpawnInterval = LocalSpawnInterval
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = NewSessionID
	}

	e := &Engine{cfg: cfg}
	e.Reset()
	return e, nil
}

// Reset discards the current run and starts a new one with a new session id.
func (e *Engine) Reset() {
	e.state = State{
		DinoY:       GroundY,
		GroundSpeed: InitialGroundSpeed,
		SessionID:   e.cfg.NewSessionID(),
	}
	e.obstacles = e.obstacles[:0]
	e.sinceLast = 0
}

// Mode returns the configured obstacle source.
func (e *Engine) Mode() domain.ObstacleMode {
	return e.cfg.Mode
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	return e.state
}

// Obstacles returns a copy of the obstacles currently on screen.
func (e *Engine) Obstacles() []domain.Obstacle {
	return append([]domain.Obstacle(nil), e.obstacles...)
}

// Jump starts a jump. It is refused mid-air and after game over.
func (e *Engine) Jump() bool {
	if e.state.IsJumping || e.state.IsGameOver {
		return false
	}
	e.state.IsJumping = true
	e.state.VelocityY = JumpVelocity
	return true
}

// AddObstacle folds a server-spawned obstacle into the local stream. Ids at
// or below the highest id already accepted are duplicates and are dropped.
func (e *Engine) AddObstacle(o domain.Obstacle) (bool, error) {
	if e.cfg.Mode != domain.ObstacleModeServer {
		return false, ErrWrongMode
	}
	if e.state.IsGameOver || o.ID <= e.maxSeenID {
		return false, nil
	}
	if o.Width <= 0 {
		o.Width = ObstacleWidth
	}
	if o.Height <= 0 {
		o.Height = ObstacleHeight
	}
	e.maxSeenID = o.ID
	e.obstacles = append(e.obstacles, o)
	return true, nil
}

// Step advances the run by delta of real time.
func (e *Engine) Step(delta time.Duration) Frame {
	if e.state.IsGameOver || delta <= 0 {
		return Frame{Score: e.flooredScore(), IsJumping: e.state.IsJumping, Skipped: true}
	}

	ms := float64(delta) / float64(time.Millisecond)
	k := float64(delta) / float64(FrameUnit)
	s := &e.state

	prev := s.Score
	s.Score += ms * ScoreRate
	if s.Score > SpeedRampThreshold &&
		math.Floor(s.Score/SpeedRampStep) > math.Floor(prev/SpeedRampStep) &&
		s.GroundSpeed < MaxGroundSpeed {
		s.GroundSpeed = math.Min(s.GroundSpeed+SpeedIncrement, MaxGroundSpeed)
	}

	if s.IsJumping {
		s.DinoY += s.VelocityY * k
		s.VelocityY -= Gravity * k
		if s.DinoY <= GroundY {
			s.DinoY = GroundY
			s.VelocityY = 0
			s.IsJumping = false
		}
	}

	kept := e.obstacles[:0]
	for _, o := range e.obstacles {
		o.X -= s.GroundSpeed
		if o.X > DiscardX {
			kept = append(kept, o)
		}
	}
	e.obstacles = kept

	if e.cfg.Mode == domain.ObstacleModeClient {
		e.sinceLast += delta
		if e.sinceLast >= e.cfg.LocalSpawnInterval {
			e.sinceLast = 0
			e.spawnLocal()
		}
	}

	dino := DinoBox(s.DinoY)
	for _, o := range e.obstacles {
		if Overlaps(dino, ObstacleBox(o)) {
			s.IsGameOver = true
			return Frame{Score: e.flooredScore(), IsJumping: s.IsJumping, Collided: true}
		}
	}

	return Frame{Score: e.flooredScore(), IsJumping: s.IsJumping}
}

func (e *Engine) spawnLocal() {
	size := domain.ObstacleSizes[e.cfg.Rand.Intn(len(domain.ObstacleSizes))]
	e.localID++
	e.obstacles = append(e.obstacles, domain.Obstacle{
		ID:     e.localID,
		X:      e.cfg.GameWidth,
		Width:  size.Width,
		Height: size.Height,
		Type:   size.Type,
	})
}

func (e *Engine) flooredScore() int64 {
	return int64(math.Floor(e.state.Score))
}
