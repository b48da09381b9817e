package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/huandu/go-sqlbuilder"

	"github.com/johnrirwin/feedmix/internal/models"
)

// SourceStore handles the sources an account subscribes to
type SourceStore struct {
	db *DB
}

// NewSourceStore creates a new source store
func NewSourceStore(db *DB) *SourceStore {
	return &SourceStore{db: db}
}

// AddSource subscribes an account to a source, creating the source row on first use.
// Subscribing twice is not an error.
func (s *SourceStore) AddSource(ctx context.Context, accountID string, src models.Source) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args := upsertSourceQuery(src)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}

	query, args = insertAccountSourceQuery(accountID, src.ID)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to subscribe to source: %w", err)
	}

	return tx.Commit()
}

// ListSources returns the sources of an account in the order they were added
func (s *SourceStore) ListSources(ctx context.Context, accountID string) ([]models.Source, error) {
	query, args := selectSourcesQuery(accountID)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := []models.Source{}
	for rows.Next() {
		var (
			src models.Source
			id  string
		)
		if err := rows.Scan(&id, &src.Title, &src.Feed, &src.Type, &src.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		if src.ID, err = strconv.ParseUint(id, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid source id %q: %w", id, err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// RemoveSource unsubscribes an account from a source
func (s *SourceStore) RemoveSource(ctx context.Context, accountID string, sourceID uint64) error {
	query, args := deleteAccountSourceQuery(accountID, sourceID)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to remove source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %d: %w", sourceID, ErrNotFound)
	}
	return nil
}

// numeric formats an unsigned id for a NUMERIC(20, 0) column. database/sql
// rejects uint64 values with the high bit set.
func numeric(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func upsertSourceQuery(src models.Source) (string, []interface{}) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("sources").
		Cols("id", "title", "feed", "type", "icon").
		Values(numeric(src.ID), src.Title, src.Feed, string(src.Type), src.Icon)
	ib.SQL("ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, icon = EXCLUDED.icon")
	return ib.Build()
}

func insertAccountSourceQuery(accountID string, sourceID uint64) (string, []interface{}) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("account_sources").Cols("account_id", "source_id").Values(accountID, numeric(sourceID))
	ib.SQL("ON CONFLICT DO NOTHING")
	return ib.Build()
}

func selectSourcesQuery(accountID string) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("s.id::text", "s.title", "s.feed", "s.type", "s.icon").
		From("sources s").
		Join("account_sources a", "a.source_id = s.id").
		Where(sb.Equal("a.account_id", accountID)).
		OrderBy("a.added_at", "s.id")
	return sb.Build()
}

func deleteAccountSourceQuery(accountID string, sourceID uint64) (string, []interface{}) {
	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("account_sources").Where(
		db.Equal("account_id", accountID),
		db.Equal("source_id", numeric(sourceID)),
	)
	return db.Build()
}
