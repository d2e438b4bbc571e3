package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
)

var qb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// KeyValue is a durable key-value store backed by a single sqlite table.
type KeyValue struct {
	db *sql.DB
}

func NewKeyValue(ctx context.Context, db *sql.DB) (*KeyValue, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`)
	if err != nil {
		return nil, fmt.Errorf("ensure kv_entries table: %w", err)
	}
	return &KeyValue{db: db}, nil
}

func (s *KeyValue) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := qb.Select("value").
		From("kv_entries").
		Where(squirrel.Eq{"key": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build select query: %w", err)
	}

	var value string
	if err = s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get entry: %w", err)
	}
	return value, true, nil
}

func (s *KeyValue) Set(ctx context.Context, key, value string) error {
	query, args, err := qb.Insert("kv_entries").
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert query: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set entry: %w", err)
	}
	return nil
}

func (s *KeyValue) Remove(ctx context.Context, key string) error {
	query, args, err := qb.Delete("kv_entries").
		Where(squirrel.Eq{"key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	return nil
}
