package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/dino-runner/internal/domain"
	"github.com/dino-runner/internal/engine"
)

var playerPrefixes = []string{
	"Rex", "Raptor", "Spike", "Dash", "Cactus", "Pebble", "Comet", "Fossil", "Ptero", "Trike",
	"Bronto", "Stego", "Ankylo", "Dino", "Jumper", "Sprint", "Dune", "Mesa", "Sandy", "Flint",
}

func playerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

// skill maps a player index to its autopilot reach. Lower indices jump
// closer to the ideal distance and survive longer.
func skill(idx int, rng *rand.Rand) float64 {
	base := 60.0
	if idx >= 10 {
		base = 30.0
	}
	return base + rng.Float64()*40
}

// simulateRun plays one local-mode run without a real clock. Runs that
// survive maxFrames end there with the score reached.
func simulateRun(ctx context.Context, rng *rand.Rand, name string, reach float64, maxFrames int) (domain.ScoreSubmission, error) {
	eng, err := engine.New(engine.Config{
		Mode: domain.ObstacleModeClient,
		Rand: rand.New(rand.NewSource(rng.Int63())),
	})
	if err != nil {
		return domain.ScoreSubmission{}, err
	}

	runner := engine.NewRunner(engine.RunnerConfig{
		Engine:    eng,
		Autopilot: engine.JumpWhenClose(reach),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	frames := make(chan time.Time)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer close(frames)
		at := time.Unix(0, 0)
		for i := 0; i <= maxFrames; i++ {
			select {
			case frames <- at:
			case <-runCtx.Done():
				return
			}
			at = at.Add(engine.FrameUnit)
		}
	}()

	res, err := runner.Run(runCtx, frames)
	switch {
	case errors.Is(err, engine.ErrFramesClosed) && ctx.Err() == nil:
		st := eng.State()
		res = engine.Result{Score: int64(math.Floor(st.Score)), SessionID: st.SessionID}
	case errors.Is(err, engine.ErrFramesClosed):
		return domain.ScoreSubmission{}, ctx.Err()
	case err != nil:
		return domain.ScoreSubmission{}, err
	}

	score := float64(res.Score)
	return domain.ScoreSubmission{
		PlayerName: name,
		Score:      &score,
		SessionID:  res.SessionID,
	}, nil
}
