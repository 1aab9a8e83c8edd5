package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dino-runner/internal/domain"
)

type sentUpdates struct {
	mu      sync.Mutex
	updates []Update
}

func (s *sentUpdates) send(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
}

func (s *sentUpdates) all() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Update(nil), s.updates...)
}

// feed pushes n frame timestamps 16ms apart starting at start.
func feed(frames chan<- time.Time, start time.Time, n int) time.Time {
	now := start
	for i := 0; i < n; i++ {
		frames <- now
		now = now.Add(frame)
	}
	return now
}

func TestRunnerReportsGameOverAndFlushes(t *testing.T) {
	e := newTestEngine(t, domain.ObstacleModeServer)
	obstacles := make(chan domain.Obstacle, 4)
	frames := make(chan time.Time)
	sent := &sentUpdates{}

	var results []Result
	r := NewRunner(RunnerConfig{
		Engine:           e,
		Send:             sent.send,
		Obstacles:        obstacles,
		ThrottleInterval: time.Hour,
		OnGameOver:       func(res Result) { results = append(results, res) },
	})

	done := make(chan struct{})
	var (
		res    Result
		runErr error
	)
	go func() {
		defer close(done)
		res, runErr = r.Run(context.Background(), frames)
	}()

	start := time.Unix(0, 0)
	now := feed(frames, start, 10)
	assert.Empty(t, sent.all(), "hour-long throttle has not fired")

	// The obstacle may be folded into the frame already in flight, in which
	// case the runner is gone before the next frame is taken.
	obstacles <- domain.Obstacle{ID: 1, X: DinoX + 10, Width: 20, Height: 40}
	select {
	case frames <- now:
	case <-done:
	}

	<-done
	require.NoError(t, runErr)
	require.Len(t, results, 1)
	assert.Equal(t, res, results[0])
	assert.Equal(t, e.State().SessionID, res.SessionID)
	assert.Equal(t, int64(1), res.Score, "nine or ten 16ms frames floor to one point")

	updates := sent.all()
	require.Len(t, updates, 1, "pending update flushed exactly once at game over")
	assert.Equal(t, int64(1), updates[0].Score)
}

func TestRunnerThrottlesUpdates(t *testing.T) {
	e := newTestEngine(t, domain.ObstacleModeServer)
	frames := make(chan time.Time)
	sent := &sentUpdates{}

	r := NewRunner(RunnerConfig{Engine: e, Send: sent.send, ThrottleInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx, frames)
		done <- err
	}()

	now := feed(frames, time.Unix(0, 0), 50)
	require.Eventually(t, func() bool { return len(sent.all()) >= 1 }, time.Second, 5*time.Millisecond)
	assert.Less(t, len(sent.all()), 49, "updates are coalesced, not sent per frame")

	r.Jump()
	frames <- now
	require.Eventually(t, func() bool {
		all := sent.all()
		return len(all) > 0 && all[len(all)-1].IsJumping
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunnerCancelDropsPendingUpdate(t *testing.T) {
	e := newTestEngine(t, domain.ObstacleModeServer)
	frames := make(chan time.Time)
	sent := &sentUpdates{}
	r := NewRunner(RunnerConfig{Engine: e, Send: sent.send, ThrottleInterval: 30 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx, frames)
		done <- err
	}()

	feed(frames, time.Unix(0, 0), 3)
	cancel()
	<-done

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, sent.all(), "no send after the run ended")
}

func TestRunnerFramesClosed(t *testing.T) {
	e := newTestEngine(t, domain.ObstacleModeServer)
	frames := make(chan time.Time)
	close(frames)

	_, err := NewRunner(RunnerConfig{Engine: e}).Run(context.Background(), frames)
	assert.ErrorIs(t, err, ErrFramesClosed)
}

func TestAutopilotSurvivesLocalObstacles(t *testing.T) {
	e := newTestEngine(t, domain.ObstacleModeClient)
	r := NewRunner(RunnerConfig{Engine: e, Autopilot: JumpWhenClose(80), ThrottleInterval: time.Hour})

	// Sixty seconds of play at 60 fps.
	for i := 0; i < 3750; i++ {
		_, over := r.frame(frame)
		require.False(t, over, "collided at frame %d with state %+v", i, e.State())
	}
	assert.Greater(t, e.State().Score, 590.0)
	assert.Greater(t, e.State().GroundSpeed, InitialGroundSpeed)
}

func TestJumpWhenClose(t *testing.T) {
	pilot := JumpWhenClose(50)
	grounded := State{DinoY: GroundY}

	assert.False(t, pilot(grounded, nil))
	assert.True(t, pilot(grounded, []domain.Obstacle{{X: DinoX + DinoWidth + 40}}))
	assert.False(t, pilot(grounded, []domain.Obstacle{{X: DinoX + DinoWidth + 60}}))
	assert.False(t, pilot(State{IsJumping: true}, []domain.Obstacle{{X: DinoX + DinoWidth + 10}}))
}
