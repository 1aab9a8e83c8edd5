package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dino-runner/internal/domain"
	"github.com/dino-runner/internal/ghost"
)

// ErrFramesClosed is returned when the frame source closes mid-run.
var ErrFramesClosed = errors.New("frame source closed")

// Update is the local state published to other players.
type Update struct {
	Score     int64
	IsJumping bool
}

// Result is reported once when a run ends in a collision.
type Result struct {
	Score     int64
	SessionID string
}

// Autopilot decides from the current state whether to jump this frame.
type Autopilot func(s State, obstacles []domain.Obstacle) bool

// RunnerConfig wires a Runner to its surroundings.
type RunnerConfig struct {
	Engine           *Engine
	Send             func(Update)
	Obstacles        <-chan domain.Obstacle
	ThrottleInterval time.Duration
	OnGameOver       func(Result)
	Autopilot        Autopilot
	Logger           *slog.Logger
}

// Runner drives an Engine from a frame clock. Network input is folded in at
// the start of each frame and outbound updates go through a trailing-edge
// throttle.
type Runner struct {
	engine     *Engine
	throttle   *ghost.Throttler[Update]
	obstacles  <-chan domain.Obstacle
	onGameOver func(Result)
	autopilot  Autopilot
	logger     *slog.Logger
	jump       atomic.Bool
}

// NewRunner creates a runner for one run of cfg.Engine.
func NewRunner(cfg RunnerConfig) *Runner {
	send := cfg.Send
	if send == nil {
		send = func(Update) {}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		engine:     cfg.Engine,
		throttle:   ghost.NewThrottler(cfg.ThrottleInterval, send),
		obstacles:  cfg.Obstacles,
		onGameOver: cfg.OnGameOver,
		autopilot:  cfg.Autopilot,
		logger:     logger,
	}
}

// Jump requests a jump on the next frame.
func (r *Runner) Jump() {
	r.jump.Store(true)
}

// Run consumes frame timestamps until the run collides, ctx is cancelled or
// frames closes. The first timestamp only primes the clock.
func (r *Runner) Run(ctx context.Context, frames <-chan time.Time) (Result, error) {
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			r.throttle.Cancel()
			return Result{}, ctx.Err()

		case now, ok := <-frames:
			if !ok {
				r.throttle.Cancel()
				return Result{}, ErrFramesClosed
			}
			if last.IsZero() {
				last = now
				continue
			}
			delta := now.Sub(last)
			last = now

			if res, over := r.frame(delta); over {
				return res, nil
			}
		}
	}
}

func (r *Runner) frame(delta time.Duration) (Result, bool) {
	r.drainObstacles()

	if r.jump.Swap(false) {
		r.engine.Jump()
	}
	if r.autopilot != nil && r.autopilot(r.engine.State(), r.engine.Obstacles()) {
		r.engine.Jump()
	}

	f := r.engine.Step(delta)
	if f.Collided {
		r.throttle.Close()
		res := Result{Score: f.Score, SessionID: r.engine.State().SessionID}
		r.logger.Info("run over", "score", res.Score, "session_id", res.SessionID)
		if r.onGameOver != nil {
			r.onGameOver(res)
		}
		return res, true
	}

	if !f.Skipped {
		r.throttle.Call(Update{Score: f.Score, IsJumping: f.IsJumping})
	}
	return Result{}, false
}

func (r *Runner) drainObstacles() {
	for {
		select {
		case o, ok := <-r.obstacles:
			if !ok {
				r.obstacles = nil
				return
			}
			if _, err := r.engine.AddObstacle(o); err != nil {
				r.logger.Warn("dropping obstacle", "obstacle_id", o.ID, "error", err)
			}
		default:
			return
		}
	}
}

// JumpWhenClose returns an autopilot that jumps when the nearest obstacle
// ahead of the avatar is within reach pixels.
func JumpWhenClose(reach float64) Autopilot {
	return func(s State, obstacles []domain.Obstacle) bool {
		if s.IsJumping {
			return false
		}
		for _, o := range obstacles {
			gap := o.X - (DinoX + DinoWidth)
			if gap >= 0 && gap <= reach {
				return true
			}
		}
		return false
	}
}
