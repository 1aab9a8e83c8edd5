package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Column limits of the score store, in characters.
const (
	MaxScorePlayerNameLength = 64
	MaxScoreSessionIDLength  = 128
)

// ScoreRecord is a persisted end-of-run score.
type ScoreRecord struct {
	ID         string    `json:"_id"`
	PlayerName string    `json:"player_name"`
	Score      int64     `json:"score"`
	SessionID  string    `json:"session_id"`
	TimeStamp  time.Time `json:"time_stamp"`
	CreatedAt  time.Time `json:"created_at"`
}

// LeaderboardEntry is a ScoreRecord annotated with its 1-based rank
type LeaderboardEntry struct {
	ScoreRecord
	Rank int64 `json:"rank"`
}

// ScoreSubmission represents a request to submit a score. Score is a pointer
// so a missing field can be told apart from zero.
type ScoreSubmission struct {
	PlayerName string   `json:"player_name"`
	Score      *float64 `json:"score"`
	SessionID  string   `json:"session_id"`
}

// Validate checks the submission and returns the normalized record to store.
func (s ScoreSubmission) Validate(now time.Time) (ScoreRecord, error) {
	name := strings.TrimSpace(s.PlayerName)
	if name == "" || utf8.RuneCountInString(name) > MaxScorePlayerNameLength {
		return ScoreRecord{}, ErrInvalidPlayer
	}
	if s.Score == nil || math.IsNaN(*s.Score) || math.IsInf(*s.Score, 0) || *s.Score < 0 {
		return ScoreRecord{}, ErrInvalidScore
	}
	if strings.TrimSpace(s.SessionID) == "" || utf8.RuneCountInString(s.SessionID) > MaxScoreSessionIDLength {
		return ScoreRecord{}, ErrInvalidSession
	}
	return ScoreRecord{
		PlayerName: name,
		Score:      int64(math.Floor(*s.Score)),
		SessionID:  s.SessionID,
		TimeStamp:  now,
		CreatedAt:  now,
	}, nil
}

// BatchScoreSubmission represents multiple score submissions
type BatchScoreSubmission struct {
	Scores []ScoreSubmission `json:"scores"`
}

// ScoreAnnouncement is broadcast whenever a new score lands.
type ScoreAnnouncement struct {
	PlayerName string `json:"player_name"`
	Score      int64  `json:"score"`
}
