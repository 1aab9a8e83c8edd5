package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dino-runner/internal/config"
	"github.com/dino-runner/internal/kafka"
)

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "dino-scores", "Kafka topic")
	totalPlayers := flag.Int("players", 100, "Number of simulated players")
	runsPerSecond := flag.Int("rate", 20, "Runs published per second")
	maxFrames := flag.Int("max-frames", 20000, "Frames after which a surviving run is ended")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	initialOnly := flag.Bool("initial-only", false, "Only play one run per player, no continuous runs")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *totalPlayers <= 0 || *runsPerSecond <= 0 {
		logger.Error("players and rate must be positive")
		os.Exit(1)
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  🦖 Dino Run Simulator")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Players:          %d\n", *totalPlayers)
	fmt.Printf("  Runs/sec:         %d\n", *runsPerSecond)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	producer, err := kafka.NewProducer(&config.KafkaConfig{
		Brokers: strings.Split(*brokers, ","),
		Topic:   *topic,
	}, logger)
	if err != nil {
		logger.Error("failed to create producer", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	rng := rand.New(rand.NewSource(*seed))
	var runCount atomic.Int64

	play := func(idx int) bool {
		sub, err := simulateRun(ctx, rng, playerName(idx), skill(idx, rng), *maxFrames)
		if err != nil {
			return false
		}
		if err := producer.Publish(ctx, sub); err != nil {
			return false
		}
		runCount.Add(1)
		return true
	}

	finish := func() {
		producer.Close()
		sent, failed := producer.Stats()
		fmt.Printf("\n✓ Completed. Runs: %d, Sent: %d, Errors: %d\n", runCount.Load(), sent, failed)
	}

	fmt.Printf("Playing one run for each of %d players...\n", *totalPlayers)
	for i := 0; i < *totalPlayers; i++ {
		if !play(i) {
			fmt.Println("\n\nShutting down...")
			finish()
			return
		}
		progress := float64(i+1) / float64(*totalPlayers) * 100
		fmt.Printf("\r  Progress: %d/%d players (%.1f%%)", i+1, *totalPlayers, progress)
	}
	fmt.Printf("\n✓ Played %d runs\n\n", *totalPlayers)

	if *initialOnly {
		finish()
		return
	}

	fmt.Printf("Starting continuous runs (%d/sec)\n", *runsPerSecond)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ticker := time.NewTicker(time.Second / time.Duration(*runsPerSecond))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n\nShutting down...")
			finish()
			return

		case <-ticker.C:
			// Top players get most of the runs so the board keeps moving.
			idx := rng.Intn(*totalPlayers)
			if *totalPlayers > 20 && rng.Intn(100) < 70 {
				idx = rng.Intn(20)
			}
			play(idx)

		case <-statsTicker.C:
			sent, failed := producer.Stats()
			fmt.Printf("[%s] Runs: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				runCount.Load(),
				sent,
				failed,
			)
		}
	}
}
