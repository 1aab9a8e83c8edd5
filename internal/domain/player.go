package domain

import "time"

// ConnID identifies one transport connection for its lifetime.
type ConnID string

// PlayerID identifies a player session. It is kept apart from ConnID so a
// session could later outlive the connection that created it.
type PlayerID string

// PlayerSession is the server's view of one joined player.
type PlayerSession struct {
	ConnID         ConnID    `json:"socketId"`
	PlayerID       PlayerID  `json:"playerId"`
	PlayerName     string    `json:"playerName"`
	Score          float64   `json:"score"`
	IsJumping      bool      `json:"isJumping"`
	JoinedAt       time.Time `json:"joinedAt"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`
}

// GhostUpdate is the state relayed from one player to everyone else.
type GhostUpdate struct {
	SocketID  ConnID  `json:"socketId"`
	Score     float64 `json:"score"`
	IsJumping bool    `json:"isJumping"`
}
