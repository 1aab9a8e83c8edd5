package engine

import "time"

// Playfield geometry, in pixels.
const (
	GameWidth      = 800
	GameHeight     = 300
	GroundY        = 40
	DinoX          = 40
	DinoWidth      = 80
	DinoHeight     = 80
	ObstacleWidth  = 20
	ObstacleHeight = 40

	// Obstacles at or left of DiscardX are dropped.
	DiscardX = -74
)

// Physics and pacing.
const (
	InitialGroundSpeed = 6.0
	MaxGroundSpeed     = 16.0
	SpeedIncrement     = 0.2
	SpeedRampThreshold = 50.0
	SpeedRampStep      = 100.0

	Gravity      = 1.0
	JumpVelocity = 18.0

	// ScoreRate is points per millisecond.
	ScoreRate = 0.01

	// FrameUnit normalizes elapsed time so velocity and gravity are expressed
	// per nominal frame.
	FrameUnit = 16 * time.Millisecond

	LocalSpawnInterval = 1500 * time.Millisecond
)
