package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/models"
)

type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) (*MembershipStore, error) {
	if pool == nil {
		return nil, backend.ErrNotInitialised
	}
	return &MembershipStore{pool: pool}, nil
}

func (s *MembershipStore) Add(ctx context.Context, userID, chatID int64, isAdmin bool) (bool, error) {
	// ON CONFLICT DO NOTHING makes the check-then-insert atomic: a repeat
	// add is a soft no-op reported through the affected-row count, and two
	// concurrent adds cannot both claim to have inserted.
	query := `
		INSERT INTO chat_memberships (user_id, chat_id, is_admin)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, chat_id) DO NOTHING`

	ct, err := s.pool.Exec(ctx, query, userID, chatID, isAdmin)
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *MembershipStore) Remove(ctx context.Context, userID, chatID int64) (bool, bool, error) {
	// Delete and empty-chat cascade run in one transaction so two
	// concurrent removals of the last two members cannot both observe a
	// non-empty chat.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, false, fmt.Errorf("begin remove member: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`DELETE FROM chat_memberships WHERE user_id = $1 AND chat_id = $2`,
		userID, chatID,
	)
	if err != nil {
		return false, false, fmt.Errorf("remove member: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return false, false, nil
	}

	var remaining int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_memberships WHERE chat_id = $1`, chatID,
	).Scan(&remaining); err != nil {
		return false, false, fmt.Errorf("count members: %w", err)
	}

	chatDeleted := false
	if remaining == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID); err != nil {
			return false, false, fmt.Errorf("delete empty chat: %w", err)
		}
		chatDeleted = true
	}

	if err := tx.Commit(ctx); err != nil {
		return false, false, fmt.Errorf("commit remove member: %w", err)
	}
	return true, chatDeleted, nil
}

func (s *MembershipStore) Promote(ctx context.Context, userID, chatID int64) (bool, error) {
	query := `
		UPDATE chat_memberships SET is_admin = TRUE
		WHERE user_id = $1 AND chat_id = $2`

	ct, err := s.pool.Exec(ctx, query, userID, chatID)
	if err != nil {
		return false, fmt.Errorf("promote member: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *MembershipStore) IsMember(ctx context.Context, userID, chatID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_memberships
			WHERE user_id = $1 AND chat_id = $2
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, userID, chatID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (s *MembershipStore) IsAdmin(ctx context.Context, userID, chatID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_memberships
			WHERE user_id = $1 AND chat_id = $2 AND is_admin
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, userID, chatID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return exists, nil
}

func (s *MembershipStore) ListMembers(ctx context.Context, chatID int64) ([]models.Membership, error) {
	query := `
		SELECT user_id, chat_id, is_admin
		FROM chat_memberships
		WHERE chat_id = $1`

	rows, err := s.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.Membership, 0)
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.UserID, &m.ChatID, &m.IsAdmin); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

func (s *MembershipStore) ChatsForUser(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT chat_id FROM chat_memberships WHERE user_id = $1`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats for user: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat ids: %w", err)
	}

	return ids, nil
}
