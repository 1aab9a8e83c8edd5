package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/dino-runner/internal/client"
	"github.com/dino-runner/internal/domain"
	"github.com/dino-runner/internal/engine"
	"github.com/dino-runner/internal/ghost"
)

type playOptions struct {
	name   string
	runs   int
	reach  float64
	maxRun time.Duration
	submit bool
	brag   bool
}

func newPlayCmd(opts *options) *cobra.Command {
	p := playOptions{}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join the server and play runs with the autopilot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlay(cmd, opts, p)
		},
	}

	cmd.Flags().StringVar(&p.name, "name", "Bot Rex", "Player name")
	cmd.Flags().IntVar(&p.runs, "runs", 1, "Number of runs to play")
	cmd.Flags().Float64Var(&p.reach, "reach", 80, "Jump when the next obstacle is this close")
	cmd.Flags().DurationVar(&p.maxRun, "max-run", 0, "End a run that survives this long (0 = until collision)")
	cmd.Flags().BoolVar(&p.submit, "submit", true, "Submit each finished run to the leaderboard")
	cmd.Flags().BoolVar(&p.brag, "brag", false, "Post each score to chat")

	return cmd
}

func runPlay(cmd *cobra.Command, opts *options, p playOptions) error {
	logger := opts.logger(cmd)
	ctx := cmd.Context()

	wsURL, err := opts.socketURL()
	if err != nil {
		return err
	}

	c, err := client.Dial(ctx, wsURL, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	readyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	session, err := c.WaitReady(readyCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("wait for session: %w", err)
	}
	logger.Info("connected", "socket_id", session.SocketID, "obstacle_mode", session.ObstacleMode)

	eng, err := engine.New(engine.Config{Mode: session.ObstacleMode, GameWidth: session.GameWidth})
	if err != nil {
		return err
	}

	var obstacles <-chan domain.Obstacle
	if session.ObstacleMode == domain.ObstacleModeServer {
		obstacles = c.Obstacles()
	}

	scores := client.NewScoreAPI(opts.httpURL())
	out := cmd.OutOrStdout()

	for i := 0; i < p.runs; i++ {
		if i > 0 {
			eng.Reset()
			if n := discardObstacles(obstacles); n > 0 {
				logger.Debug("dropped obstacles from the previous run", "count", n)
			}
		}
		if err := c.Join(p.name); err != nil {
			return err
		}

		runner := engine.NewRunner(engine.RunnerConfig{
			Engine: eng,
			Send: func(u engine.Update) {
				if err := c.SendUpdate(u.Score, u.IsJumping); err != nil {
					logger.Debug("update not sent", "error", err)
				}
			},
			Obstacles:        obstacles,
			ThrottleInterval: ghost.DefaultInterval,
			Autopilot:        engine.JumpWhenClose(p.reach),
			Logger:           logger,
		})

		result, err := playRun(ctx, runner, eng, p.maxRun)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "run %d: score %d (%s), %d other players\n",
			i+1, result.Score, result.SessionID, c.Ghosts().Len())

		if p.submit {
			rec, err := scores.Submit(ctx, p.name, result.Score, result.SessionID)
			if err != nil {
				logger.Warn("score not submitted", "error", err)
			} else {
				logger.Info("score submitted", "id", rec.ID, "score", rec.Score)
			}
		}
		if p.brag {
			if err := c.SendChat(fmt.Sprintf("just ran %d 🦖", result.Score), p.name); err != nil {
				logger.Warn("chat not sent", "error", err)
			}
		}
	}
	return nil
}

// discardObstacles empties spawns queued while the previous run was ending
// so the next run starts with a clear track. A nil channel holds nothing.
func discardObstacles(ch <-chan domain.Obstacle) int {
	n := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// playRun drives runner in real time. A run cut short by maxRun still counts
// with the score reached so far.
func playRun(ctx context.Context, runner *engine.Runner, eng *engine.Engine, maxRun time.Duration) (engine.Result, error) {
	runCtx := ctx
	if maxRun > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, maxRun)
		defer cancel()
	}

	frames := time.NewTicker(engine.FrameUnit)
	defer frames.Stop()

	result, err := runner.Run(runCtx, frames.C)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			st := eng.State()
			return engine.Result{Score: int64(math.Floor(st.Score)), SessionID: st.SessionID}, nil
		}
		return engine.Result{}, err
	}
	return result, nil
}
