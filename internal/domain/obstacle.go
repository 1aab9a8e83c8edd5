package domain

// Obstacle is a single hazard scrolling toward the player.
type Obstacle struct {
	ID     int64   `json:"id"`
	X      float64 `json:"x"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Type   string  `json:"type"`
}

// ObstacleSize is one of the discrete size classes obstacles are drawn from.
type ObstacleSize struct {
	Type   string
	Width  float64
	Height float64
}

// ObstacleSizes are the size classes shared by server and client spawners.
var ObstacleSizes = []ObstacleSize{
	{Type: "small", Width: 20, Height: 40},
	{Type: "large", Width: 24, Height: 60},
}

// ObstacleMode selects which side produces obstacles. Exactly one is active
// per deployment.
type ObstacleMode string

const (
	ObstacleModeServer ObstacleMode = "server"
	ObstacleModeClient ObstacleMode = "client"
)

// Valid reports whether m names a known mode.
func (m ObstacleMode) Valid() bool {
	return m == ObstacleModeServer || m == ObstacleModeClient
}
