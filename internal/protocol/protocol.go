// Package protocol defines the socket events exchanged between the game
// server and its clients. Every frame carries one or more JSON envelopes of
// the form {"event": name, "data": payload}; the server may coalesce several
// envelopes into one frame separated by newlines.
package protocol

import (
	"encoding/json"

	"github.com/dino-runner/internal/domain"
)

// Socket events
const (
	EventSessionInit       = "session:init"
	EventPlayerJoin        = "player:join"
	EventPlayerUpdate      = "player:update"
	EventPlayerLeave       = "player:leave"
	EventPlayersCount      = "players:count"
	EventPlayerCountAlias  = "player:count"
	EventObstacleSpawn     = "game:obstacle:spawn"
	EventChatHistory       = "chat:history"
	EventChatMessage       = "chat:message"
	EventChatReact         = "chat:react"
	EventLeaderboardUpdate = "leaderboard:update"
	EventScoreNew          = "score:new"
	EventError             = "error"
)

// Envelope wraps every socket message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SessionInit is the first message a new connection receives.
type SessionInit struct {
	SocketID     domain.ConnID       `json:"socketId"`
	ObstacleMode domain.ObstacleMode `json:"obstacleMode"`
	GameWidth    float64             `json:"gameWidth"`
}

// JoinRequest is sent by a client to start a run.
type JoinRequest struct {
	PlayerName string `json:"playerName"`
}

// PlayerJoined announces a new session to everyone.
type PlayerJoined struct {
	SocketID   domain.ConnID `json:"socketId"`
	PlayerName string        `json:"playerName"`
}

// UpdateRequest carries a client's throttled local state.
type UpdateRequest struct {
	Score     float64 `json:"score"`
	IsJumping bool    `json:"isJumping"`
}

// ChatRequest posts a chat message.
type ChatRequest struct {
	Text       string `json:"text"`
	PlayerName string `json:"playerName"`
}

// ReactRequest toggles a reaction on a chat message.
type ReactRequest struct {
	MessageID int64  `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// ReactionsChanged carries the full reaction map of one message.
type ReactionsChanged struct {
	MessageID int64            `json:"messageId"`
	Reactions domain.Reactions `json:"reactions"`
}

// ErrorPayload reports a malformed client message.
type ErrorPayload struct {
	Error string `json:"error"`
}
