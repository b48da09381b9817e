package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/johnrirwin/feedmix/internal/models"
)

// AccountStore handles account and follow database operations
type AccountStore struct {
	db      *DB
	sources *SourceStore
}

// NewAccountStore creates a new account store
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db, sources: NewSourceStore(db)}
}

// CreateAccount registers a new account
func (s *AccountStore) CreateAccount(ctx context.Context, params models.CreateAccountParams) (*models.Account, error) {
	if err := models.ValidateUsername(params.Username); err != nil {
		return nil, err
	}

	account := &models.Account{
		ID:        uuid.NewString(),
		Username:  strings.TrimSpace(params.Username),
		Sources:   []models.Source{},
		Following: []string{},
	}

	query, args := insertAccountQuery(account.ID, account.Username)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("account %s: %w", account.Username, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// GetAccountByUsername loads an account with its sources and the usernames it follows
func (s *AccountStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	query, args := selectAccountQuery(username)

	account := &models.Account{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&account.ID, &account.Username, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &LookupError{Username: username}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.Sources, err = s.sources.ListSources(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	account.Following, err = s.following(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	return account, nil
}

// Follow makes follower follow followee. Following twice is not an error.
func (s *AccountStore) Follow(ctx context.Context, follower, followee string) error {
	followerID, followeeID, err := s.resolvePair(ctx, follower, followee)
	if err != nil {
		return err
	}

	query, args := insertFollowQuery(followerID, followeeID)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to follow %s: %w", followee, err)
	}
	return nil
}

// Unfollow removes a follow. Returns ErrNotFound if follower did not follow followee.
func (s *AccountStore) Unfollow(ctx context.Context, follower, followee string) error {
	followerID, followeeID, err := s.resolvePair(ctx, follower, followee)
	if err != nil {
		return err
	}

	query, args := deleteFollowQuery(followerID, followeeID)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to unfollow %s: %w", followee, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s does not follow %s: %w", follower, followee, ErrNotFound)
	}
	return nil
}

func (s *AccountStore) resolvePair(ctx context.Context, follower, followee string) (string, string, error) {
	if strings.EqualFold(follower, followee) {
		return "", "", ErrSelfFollow
	}
	followerID, err := s.idFor(ctx, follower)
	if err != nil {
		return "", "", err
	}
	followeeID, err := s.idFor(ctx, followee)
	if err != nil {
		return "", "", err
	}
	return followerID, followeeID, nil
}

func (s *AccountStore) idFor(ctx context.Context, username string) (string, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id").From("accounts").Where(sb.Equal("LOWER(username)", strings.ToLower(username)))
	query, args := sb.Build()

	var id string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &LookupError{Username: username}
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up account %s: %w", username, err)
	}
	return id, nil
}

func (s *AccountStore) following(ctx context.Context, accountID string) ([]string, error) {
	query, args := selectFollowingQuery(accountID)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	defer rows.Close()

	following := []string{}
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan following: %w", err)
		}
		following = append(following, username)
	}
	return following, rows.Err()
}

func insertAccountQuery(id, username string) (string, []interface{}) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("accounts").Cols("id", "username").Values(id, username)
	ib.SQL("RETURNING created_at")
	return ib.Build()
}

func selectAccountQuery(username string) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "username", "created_at").
		From("accounts").
		Where(sb.Equal("LOWER(username)", strings.ToLower(strings.TrimSpace(username))))
	return sb.Build()
}

func selectFollowingQuery(accountID string) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("a.username").
		From("follows f").
		Join("accounts a", "a.id = f.followee_id").
		Where(sb.Equal("f.follower_id", accountID)).
		OrderBy("a.username")
	return sb.Build()
}

func insertFollowQuery(followerID, followeeID string) (string, []interface{}) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("follows").Cols("follower_id", "followee_id").Values(followerID, followeeID)
	ib.SQL("ON CONFLICT DO NOTHING")
	return ib.Build()
}

func deleteFollowQuery(followerID, followeeID string) (string, []interface{}) {
	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("follows").Where(
		db.Equal("follower_id", followerID),
		db.Equal("followee_id", followeeID),
	)
	return db.Build()
}
