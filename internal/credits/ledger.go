// Package credits implements the per-user, per-engine usage counters that
// gate the expensive generation operations.
package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Engine names. Each engine has its own counter per user.
const (
	EngineEbook  = "ebook"
	EngineScript = "script"
)

// Config holds the starting allotment granted to a user the first time
// each engine sees them.
type Config struct {
	DefaultAllotments map[string]int
}

// DefaultConfig returns the free-tier allotments.
func DefaultConfig() Config {
	return Config{DefaultAllotments: map[string]int{
		EngineEbook:  2,
		EngineScript: 3,
	}}
}

// ErrInsufficientCredits indicates the user has no remaining uses for an
// engine. It maps to a 403, never a generic server error.
type ErrInsufficientCredits struct {
	UserID string
	Engine string
}

func (e *ErrInsufficientCredits) Error() string {
	return fmt.Sprintf("no %s credits remaining for user %s", e.Engine, e.UserID)
}

// Ledger is the credit-gate contract. Consume must be atomic: check and
// decrement happen as one operation, never as separate read and write.
type Ledger interface {
	// Consume spends one credit and returns the remaining balance, or
	// *ErrInsufficientCredits when the counter is already zero.
	Consume(ctx context.Context, userID, engine string) (int, error)
	// Grant adds credits (top-up or refund) and returns the new balance.
	Grant(ctx context.Context, userID, engine string, amount int) (int, error)
	// Balance reads the remaining credits without spending.
	Balance(ctx context.Context, userID, engine string) (int, error)
}

// Store is the PostgreSQL-backed Ledger.
type Store struct {
	pool     *pgxpool.Pool
	defaults map[string]int
}

// Connect establishes a pooled connection, verifies it, and ensures the
// ledger table exists.
func Connect(ctx context.Context, databaseURL string, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool, defaults: cfg.DefaultAllotments}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS credits (
			user_id    TEXT NOT NULL,
			engine     TEXT NOT NULL,
			remaining  INTEGER NOT NULL CHECK (remaining >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, engine)
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure credits schema: %w", err)
	}
	return nil
}

// ensureRow seeds the default allotment the first time a (user, engine)
// pair is observed. Racing inserts are absorbed by ON CONFLICT.
func (s *Store) ensureRow(ctx context.Context, userID, engine string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credits (user_id, engine, remaining)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, engine) DO NOTHING`,
		userID, engine, s.defaults[engine],
	)
	if err != nil {
		return fmt.Errorf("failed to seed credits row: %w", err)
	}
	return nil
}

// Consume atomically spends one credit. The guard and the decrement are a
// single UPDATE, so two concurrent requests can never both spend the last
// credit.
func (s *Store) Consume(ctx context.Context, userID, engine string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user ID is required")
	}
	if err := s.ensureRow(ctx, userID, engine); err != nil {
		return 0, err
	}

	var remaining int
	err := s.pool.QueryRow(ctx,
		`UPDATE credits
		 SET remaining = remaining - 1, updated_at = NOW()
		 WHERE user_id = $1 AND engine = $2 AND remaining > 0
		 RETURNING remaining`,
		userID, engine,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &ErrInsufficientCredits{UserID: userID, Engine: engine}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to consume credit: %w", err)
	}
	return remaining, nil
}

// Grant adds credits to a user's counter, seeding the row if needed.
func (s *Store) Grant(ctx context.Context, userID, engine string, amount int) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user ID is required")
	}
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive")
	}
	if err := s.ensureRow(ctx, userID, engine); err != nil {
		return 0, err
	}

	var remaining int
	err := s.pool.QueryRow(ctx,
		`UPDATE credits
		 SET remaining = remaining + $3, updated_at = NOW()
		 WHERE user_id = $1 AND engine = $2
		 RETURNING remaining`,
		userID, engine, amount,
	).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("failed to grant credits: %w", err)
	}
	return remaining, nil
}

// Balance reads the remaining credits, seeding the default allotment for
// first-time users so the response reflects what they can actually spend.
func (s *Store) Balance(ctx context.Context, userID, engine string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user ID is required")
	}
	if err := s.ensureRow(ctx, userID, engine); err != nil {
		return 0, err
	}

	var remaining int
	err := s.pool.QueryRow(ctx,
		`SELECT remaining FROM credits WHERE user_id = $1 AND engine = $2`,
		userID, engine,
	).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return remaining, nil
}
