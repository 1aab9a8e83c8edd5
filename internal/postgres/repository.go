package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dino-runner/internal/config"
	"github.com/dino-runner/internal/domain"
)

// Repository stores finished-run scores in PostgreSQL
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS scores (
			id UUID PRIMARY KEY,
			player_name VARCHAR(%d) NOT NULL,
			score BIGINT NOT NULL CHECK (score >= 0),
			session_id VARCHAR(%d) NOT NULL,
			time_stamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, domain.MaxScorePlayerNameLength, domain.MaxScoreSessionIDLength),
		`CREATE INDEX IF NOT EXISTS idx_scores_rank ON scores(score DESC, time_stamp ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_session ON scores(session_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

const insertScoreQuery = `
	INSERT INTO scores (id, player_name, score, session_id, time_stamp, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id::text, player_name, score, session_id, time_stamp, created_at
`

// InsertScore stores a record and returns it as persisted
func (r *Repository) InsertScore(ctx context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	var out domain.ScoreRecord
	err := r.pool.QueryRow(ctx, insertScoreQuery,
		rec.ID, rec.PlayerName, rec.Score, rec.SessionID, rec.TimeStamp, rec.CreatedAt,
	).Scan(&out.ID, &out.PlayerName, &out.Score, &out.SessionID, &out.TimeStamp, &out.CreatedAt)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("inserting score: %w", err)
	}
	return out, nil
}

// InsertScores stores many records in one round trip. The batch runs as a
// single implicit transaction, so on error nothing is stored and no records
// are returned.
func (r *Repository) InsertScores(ctx context.Context, recs []domain.ScoreRecord) ([]domain.ScoreRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for i := range recs {
		if recs[i].ID == "" {
			recs[i].ID = uuid.NewString()
		}
		rec := recs[i]
		batch.Queue(insertScoreQuery, rec.ID, rec.PlayerName, rec.Score, rec.SessionID, rec.TimeStamp, rec.CreatedAt)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	out := make([]domain.ScoreRecord, 0, len(recs))
	for range recs {
		var rec domain.ScoreRecord
		err := br.QueryRow().Scan(&rec.ID, &rec.PlayerName, &rec.Score, &rec.SessionID, &rec.TimeStamp, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("batch inserting scores: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// TopScores returns the best limit scores, earliest first among equals
func (r *Repository) TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT id::text, player_name, score, session_id, time_stamp, created_at,
			   ROW_NUMBER() OVER (ORDER BY score DESC, time_stamp ASC) AS rank
		FROM scores
		ORDER BY score DESC, time_stamp ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		err := rows.Scan(&e.ID, &e.PlayerName, &e.Score, &e.SessionID, &e.TimeStamp, &e.CreatedAt, &e.Rank)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading top scores: %w", err)
	}
	return entries, nil
}
