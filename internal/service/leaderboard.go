package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dino-runner/internal/config"
	"github.com/dino-runner/internal/domain"
	"github.com/dino-runner/internal/protocol"
)

// ScoreStore persists finished runs
type ScoreStore interface {
	InsertScore(ctx context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error)
	InsertScores(ctx context.Context, recs []domain.ScoreRecord) ([]domain.ScoreRecord, error)
	TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardCache holds recently computed leaderboard pages
type LeaderboardCache interface {
	Get(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	Set(ctx context.Context, limit int, entries []domain.LeaderboardEntry) error
	Invalidate(ctx context.Context) error
}

// Publisher fans an event out to every live connection
type Publisher interface {
	Publish(event string, payload any) error
}

// LeaderboardService provides business logic for score submission and ranking
type LeaderboardService struct {
	store     ScoreStore
	cache     LeaderboardCache
	publisher Publisher
	config    *config.LeaderboardConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewLeaderboardService creates a new leaderboard service. cache and
// publisher may be nil.
func NewLeaderboardService(
	store ScoreStore,
	cache LeaderboardCache,
	publisher Publisher,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitScore validates and stores a finished run, then announces it
func (s *LeaderboardService) SubmitScore(ctx context.Context, submission domain.ScoreSubmission) (domain.ScoreRecord, error) {
	rec, err := submission.Validate(s.now().UTC())
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	saved, err := s.store.InsertScore(ctx, rec)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("storing score: %w", err)
	}

	s.logger.Info("score submitted",
		"player_name", saved.PlayerName,
		"score", saved.Score,
		"session_id", saved.SessionID,
	)

	s.invalidate(ctx)
	s.announce(ctx, saved)
	return saved, nil
}

// SubmitScoreBatch stores every valid submission in the batch and returns
// the number stored. Invalid entries are skipped.
func (s *LeaderboardService) SubmitScoreBatch(ctx context.Context, batch domain.BatchScoreSubmission) (int, error) {
	now := s.now().UTC()
	recs := make([]domain.ScoreRecord, 0, len(batch.Scores))
	for _, submission := range batch.Scores {
		rec, err := submission.Validate(now)
		if err != nil {
			s.logger.Warn("skipping invalid score in batch",
				"player_name", submission.PlayerName,
				"session_id", submission.SessionID,
				"error", err,
			)
			continue
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	saved, err := s.store.InsertScores(ctx, recs)
	if err != nil {
		return 0, fmt.Errorf("storing score batch: %w", err)
	}
	s.invalidate(ctx)
	s.announce(ctx, saved...)
	return len(saved), nil
}

// GetTopN returns the top n scores. n is defaulted and clamped to the
// configured limits.
func (s *LeaderboardService) GetTopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	n = s.clamp(n)

	if s.cache != nil {
		entries, err := s.cache.Get(ctx, n)
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("leaderboard cache read failed", "limit", n, "error", err)
		}
	}

	return s.load(ctx, n)
}

// Refresh reloads the broadcast page from the store, bypassing the cache.
func (s *LeaderboardService) Refresh(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return s.load(ctx, s.config.BroadcastLimit)
}

// BroadcastLeaderboard publishes entries as a leaderboard:update.
func (s *LeaderboardService) BroadcastLeaderboard(entries []domain.LeaderboardEntry) {
	s.publish(protocol.EventLeaderboardUpdate, entries)
}

func (s *LeaderboardService) load(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	entries, err := s.store.TopScores(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, n, entries); err != nil {
			s.logger.Warn("leaderboard cache write failed", "limit", n, "error", err)
		}
	}
	return entries, nil
}

func (s *LeaderboardService) clamp(n int) int {
	if n <= 0 {
		n = s.config.DefaultLimit
	}
	if n > s.config.MaxLimit {
		n = s.config.MaxLimit
	}
	return n
}

func (s *LeaderboardService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", "error", err)
	}
}

// announce broadcasts the fresh top list and one score:new per record.
// Failures are logged and never reach the submitter.
func (s *LeaderboardService) announce(ctx context.Context, recs ...domain.ScoreRecord) {
	if s.publisher == nil {
		return
	}

	top, err := s.Refresh(ctx)
	if err != nil {
		s.logger.Error("failed to load leaderboard for broadcast", "error", err)
	} else {
		s.BroadcastLeaderboard(top)
	}

	for _, rec := range recs {
		s.publish(protocol.EventScoreNew, domain.ScoreAnnouncement{
			PlayerName: rec.PlayerName,
			Score:      rec.Score,
		})
	}
}

func (s *LeaderboardService) publish(event string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event, payload); err != nil {
		s.logger.Warn("failed to publish event", "event", event, "error", err)
	}
}
