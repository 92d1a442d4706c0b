package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/models"
)

type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore fails fast when the pool is absent so no per-call "is the
// store up" check is needed anywhere else.
func NewUserStore(pool *pgxpool.Pool) (*UserStore, error) {
	if pool == nil {
		return nil, backend.ErrNotInitialised
	}
	return &UserStore{pool: pool}, nil
}

const userColumns = "id, nick, name, email, passwd_hash, devices_token_list, confirmed, created_at"

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Nick,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.DeviceTokens,
		&u.Confirmed,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, nick, name, email, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (id, nick, name, email, passwd_hash)
		VALUES ($1, $2, $3, $4, $5)`

	id, err := retryOnIDCollision("users_pkey", func(id int64) error {
		_, err := s.pool.Exec(ctx, query, id, nick, name, email, passwordHash)
		return err
	})
	if err != nil {
		switch {
		case uniqueViolation(err, "users_nick_key"):
			return nil, backend.ErrNickTaken
		case uniqueViolation(err, "users_email_key"):
			return nil, backend.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByNick(ctx context.Context, nick string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE nick = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, nick))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by nick: %w", err)
	}
	return u, nil
}

func (s *UserStore) SetConfirmed(ctx context.Context, userID int64) error {
	query := `UPDATE users SET confirmed = TRUE WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("confirm user: %w", err)
	}
	return nil
}

func (s *UserStore) AddDeviceToken(ctx context.Context, userID int64, token string) error {
	// array_append only when the token is not already present keeps the
	// list an ordered, deduplicated set in a single statement.
	query := `
		UPDATE users
		SET devices_token_list = array_append(devices_token_list, $2)
		WHERE id = $1 AND NOT ($2 = ANY(devices_token_list))`

	if _, err := s.pool.Exec(ctx, query, userID, token); err != nil {
		return fmt.Errorf("add device token: %w", err)
	}
	return nil
}

func (s *UserStore) RemoveDeviceToken(ctx context.Context, userID int64, token string) error {
	query := `
		UPDATE users
		SET devices_token_list = array_remove(devices_token_list, $2)
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, userID, token); err != nil {
		return fmt.Errorf("remove device token: %w", err)
	}
	return nil
}

func (s *UserStore) DeviceTokens(ctx context.Context, userIDs []int64) ([]string, error) {
	query := `
		SELECT DISTINCT token
		FROM users, unnest(devices_token_list) AS token
		WHERE id = ANY($1)`

	rows, err := s.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device tokens: %w", err)
	}

	return tokens, nil
}

func (s *UserStore) Delete(ctx context.Context, userID, reassignTo int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback(ctx)

	// Authored history is reassigned to the sentinel, never erased: the
	// other members of a chat keep their context.
	if _, err := tx.Exec(ctx,
		`UPDATE messages SET author_id = $2 WHERE author_id = $1`, userID, reassignTo); err != nil {
		return fmt.Errorf("reassign messages: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE chats SET creator_id = $2 WHERE creator_id = $1`, userID, reassignTo); err != nil {
		return fmt.Errorf("reassign chats: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE attachments SET owner_id = $2 WHERE owner_id = $1`, userID, reassignTo); err != nil {
		return fmt.Errorf("reassign attachments: %w", err)
	}

	// Dropping the account drops its memberships; chats whose only member
	// this was must go with them, just as when the last member leaves.
	if _, err := tx.Exec(ctx,
		`DELETE FROM chat_memberships WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM chats c
		WHERE NOT EXISTS (
			SELECT 1 FROM chat_memberships m WHERE m.chat_id = c.id
		)`); err != nil {
		return fmt.Errorf("delete emptied chats: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	return nil
}
