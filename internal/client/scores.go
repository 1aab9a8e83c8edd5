package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dino-runner/internal/domain"
)

// ScoreAPI talks to the score HTTP endpoints.
type ScoreAPI struct {
	baseURL string
	http    *http.Client
}

// NewScoreAPI creates a client for the server at baseURL.
func NewScoreAPI(baseURL string) *ScoreAPI {
	return &ScoreAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Submit posts a finished run.
func (a *ScoreAPI) Submit(ctx context.Context, playerName string, score int64, sessionID string) (domain.ScoreRecord, error) {
	s := float64(score)
	body, err := json.Marshal(domain.ScoreSubmission{PlayerName: playerName, Score: &s, SessionID: sessionID})
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("encoding score: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/score/scores", bytes.NewReader(body))
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var rec domain.ScoreRecord
	if err := a.do(req, http.StatusCreated, &rec); err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("submitting score: %w", err)
	}
	return rec, nil
}

// Top fetches the leaderboard. A non-positive limit uses the server default.
func (a *ScoreAPI) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	u := a.baseURL + "/api/score/leaderboard"
	if limit > 0 {
		u += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var entries []domain.LeaderboardEntry
	if err := a.do(req, http.StatusOK, &entries); err != nil {
		return nil, fmt.Errorf("fetching leaderboard: %w", err)
	}
	return entries, nil
}

func (a *ScoreAPI) do(req *http.Request, want int, out any) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, e.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
