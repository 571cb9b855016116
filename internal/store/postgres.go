package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps documents in a single jsonb table keyed by path. Update runs
// inside one transaction so the write map applies atomically.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool. See scripts/schema.sql for the table.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Get reads the document at path.
func (p *Postgres) Get(ctx context.Context, path string) (Snapshot, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT doc FROM documents WHERE path = $1`, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return jsonSnapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", path, err)
	}
	return jsonSnapshot{raw: raw}, nil
}

// List reads every document under prefix.
func (p *Postgres) List(ctx context.Context, prefix string) (map[string]Snapshot, error) {
	rows, err := p.pool.Query(ctx, `SELECT path, doc FROM documents WHERE path LIKE $1 || '%'`, prefix)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string]Snapshot)
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("store: list %s: %w", prefix, err)
		}
		out[path] = jsonSnapshot{raw: raw}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list %s: %w", prefix, err)
	}
	return out, nil
}

// Set writes a single document.
func (p *Postgres) Set(ctx context.Context, path string, value any) error {
	raw, err := marshalDoc(path, value)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, upsertDocument, path, raw)
	if err != nil {
		return fmt.Errorf("store: set %s: %w", path, err)
	}
	return nil
}

// Remove deletes a single document.
func (p *Postgres) Remove(ctx context.Context, path string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path); err != nil {
		return fmt.Errorf("store: remove %s: %w", path, err)
	}
	return nil
}

const upsertDocument = `
INSERT INTO documents (path, doc, updated_at) VALUES ($1, $2, now())
ON CONFLICT (path) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`

// Update applies the write map inside one transaction.
func (p *Postgres) Update(ctx context.Context, writes map[string]any) error {
	marshalled := make(map[string][]byte, len(writes))
	for path, value := range writes {
		if value == nil {
			marshalled[path] = nil
			continue
		}
		raw, err := marshalDoc(path, value)
		if err != nil {
			return err
		}
		marshalled[path] = raw
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for path, raw := range marshalled {
		if raw == nil {
			if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path); err != nil {
				return fmt.Errorf("store: update delete %s: %w", path, err)
			}
			continue
		}
		if _, err := tx.Exec(ctx, upsertDocument, path, raw); err != nil {
			return fmt.Errorf("store: update set %s: %w", path, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit update: %w", err)
	}
	return nil
}

// Push allocates a child identifier under path.
func (p *Postgres) Push(ctx context.Context, path string) (string, error) {
	return uuid.NewString(), nil
}

func marshalDoc(path string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: marshal %s: %w", path, err)
	}
	return raw, nil
}
