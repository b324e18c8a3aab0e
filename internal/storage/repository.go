package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/suggest"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Snapshot is one recorded suggestion run.
type Snapshot struct {
	ID          int
	Lat         float64
	Lon         float64
	RadiusM     float64
	Suggestions []suggest.Suggestion
	Diagnostics suggest.Diagnostics
	CreatedAt   time.Time
}

// Repository provides database access for suggestion snapshots.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier
// (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// InsertSnapshot records one suggestion run with its diagnostics.
func (r *Repository) InsertSnapshot(ctx context.Context, lat, lon, radiusM float64, suggestions []suggest.Suggestion, diag suggest.Diagnostics) error {
	payload, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("marshaling suggestions: %w", err)
	}
	diagJSON, err := json.Marshal(diag)
	if err != nil {
		return fmt.Errorf("marshaling diagnostics: %w", err)
	}

	const q = `
		INSERT INTO suggestion_snapshots (lat, lon, radius_m, payload, diagnostics)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.q.Exec(ctx, q, lat, lon, radiusM, payload, diagJSON); err != nil {
		return fmt.Errorf("inserting suggestion snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot for the exact query
// coordinates and radius, or nil, nil when none exists.
func (r *Repository) LatestSnapshot(ctx context.Context, lat, lon, radiusM float64) (*Snapshot, error) {
	const q = `
		SELECT id, lat, lon, radius_m, payload, diagnostics, created_at
		FROM suggestion_snapshots
		WHERE lat = $1 AND lon = $2 AND radius_m = $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	s, err := scanSnapshot(r.q.QueryRow(ctx, q, lat, lon, radiusM))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	return s, nil
}

// SnapshotsWithActivity returns snapshots whose payload contains at least
// one suggestion for the given activity, using JSONB containment.
func (r *Repository) SnapshotsWithActivity(ctx context.Context, activity suggest.Activity) ([]*Snapshot, error) {
	filter, err := json.Marshal([]map[string]any{{"activity": activity}})
	if err != nil {
		return nil, fmt.Errorf("marshaling JSONB filter: %w", err)
	}

	const q = `
		SELECT id, lat, lon, radius_m, payload, diagnostics, created_at
		FROM suggestion_snapshots
		WHERE payload @> $1::jsonb
	`

	rows, err := r.q.Query(ctx, q, string(filter))
	if err != nil {
		return nil, fmt.Errorf("querying snapshots by activity: %w", err)
	}
	defer rows.Close()

	var results []*Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		results = append(results, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}
	return results, nil
}

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	var payload, diagJSON []byte

	if err := row.Scan(&s.ID, &s.Lat, &s.Lon, &s.RadiusM, &payload, &diagJSON, &s.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &s.Suggestions); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot payload: %w", err)
	}
	if err := json.Unmarshal(diagJSON, &s.Diagnostics); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot diagnostics: %w", err)
	}
	return &s, nil
}
