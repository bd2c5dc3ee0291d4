package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
	"github.com/flowlane-labs/flowlane-go/internal/repo"
)

// DB is satisfied by *sql.DB and *sql.Tx so stores can run inside a caller
// transaction.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func encodeJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return raw, nil
}

func decodeGraph(raw []byte) (domain.StepGraph, error) {
	var graph domain.StepGraph
	if err := json.Unmarshal(raw, &graph); err != nil {
		return domain.StepGraph{}, fmt.Errorf("decode graph: %w", err)
	}
	return graph, nil
}

func decodeDefaults(raw []byte) (domain.DefaultConfig, error) {
	if len(raw) == 0 {
		return domain.DefaultConfig{}, nil
	}
	var defaults domain.DefaultConfig
	if err := json.Unmarshal(raw, &defaults); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	if defaults == nil {
		defaults = domain.DefaultConfig{}
	}
	return defaults, nil
}

func handleNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repo.ErrNotFound
	}
	return err
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
