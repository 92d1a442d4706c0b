package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/models"
	"github.com/ProjectPlatform/Server/internal/repository"
)

type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) (*ChatStore, error) {
	if pool == nil {
		return nil, backend.ErrNotInitialised
	}
	return &ChatStore{pool: pool}, nil
}

const chatColumns = `id, name, creator_id, avatar_uri, colour, is_encrypted, is_personal,
	is_user_expandable, is_user_expandable_modified_by,
	is_non_admin, is_non_admin_modified_by,
	non_removable_messages, non_removable_messages_modified_by,
	non_modifiable_messages, non_modifiable_messages_modified_by,
	auto_remove_messages, auto_remove_messages_modified_by, auto_remove_period,
	digest_messages, digest_messages_modified_by, created_at`

func scanChat(row pgx.Row) (*models.Chat, error) {
	var ch models.Chat
	err := row.Scan(
		&ch.ID,
		&ch.Name,
		&ch.CreatorID,
		&ch.AvatarURI,
		&ch.Colour,
		&ch.IsEncrypted,
		&ch.IsPersonal,
		&ch.IsUserExpandable,
		&ch.IsUserExpandableModifiedBy,
		&ch.IsNonAdmin,
		&ch.IsNonAdminModifiedBy,
		&ch.NonRemovableMessages,
		&ch.NonRemovableMessagesModifiedBy,
		&ch.NonModifiableMessages,
		&ch.NonModifiableMessagesModifiedBy,
		&ch.AutoRemoveMessages,
		&ch.AutoRemoveMessagesModifiedBy,
		&ch.AutoRemovePeriod,
		&ch.DigestMessages,
		&ch.DigestMessagesModifiedBy,
		&ch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *ChatStore) Create(ctx context.Context, p repository.CreateChatParams) (*models.Chat, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create chat: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO chats (
			id, name, creator_id, avatar_uri, colour, is_encrypted, is_personal,
			is_user_expandable, is_user_expandable_modified_by,
			is_non_admin, is_non_admin_modified_by,
			non_removable_messages, non_removable_messages_modified_by,
			non_modifiable_messages, non_modifiable_messages_modified_by,
			auto_remove_messages, auto_remove_messages_modified_by,
			digest_messages, digest_messages_modified_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $3, $9, $3, FALSE, $3, FALSE, $3, FALSE, $3, FALSE, $3
		)`

	id, err := retryOnIDCollisionTx(ctx, tx, "chats_pkey", func(id int64) error {
		_, err := tx.Exec(ctx, insert,
			id, p.Name, p.CreatorID, p.AvatarURI, p.Colour, p.IsEncrypted,
			p.IsPersonal, p.IsUserExpandable, p.IsNonAdmin,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	// The creator's admin membership lands in the same transaction: a chat
	// never exists without at least one admin.
	if _, err := tx.Exec(ctx,
		`INSERT INTO chat_memberships (user_id, chat_id, is_admin) VALUES ($1, $2, TRUE)`,
		p.CreatorID, id,
	); err != nil {
		return nil, fmt.Errorf("insert creator membership: %w", err)
	}

	if p.SecondMemberID != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_memberships (user_id, chat_id, is_admin) VALUES ($1, $2, TRUE)`,
			*p.SecondMemberID, id,
		); err != nil {
			return nil, fmt.Errorf("insert second membership: %w", err)
		}
	}

	ch, err := scanChat(tx.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("read back chat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create chat: %w", err)
	}
	return ch, nil
}

func (s *ChatStore) GetByID(ctx context.Context, chatID int64) (*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`

	ch, err := scanChat(s.pool.QueryRow(ctx, query, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return ch, nil
}

// flagColumns whitelists the togglable policy columns. The flag name is
// interpolated into SQL, so anything not listed here is rejected.
var flagColumns = map[repository.ChatFlag]bool{
	repository.FlagUserExpandable:        true,
	repository.FlagNonAdmin:              true,
	repository.FlagNonRemovableMessages:  true,
	repository.FlagNonModifiableMessages: true,
	repository.FlagAutoRemoveMessages:    true,
	repository.FlagDigestMessages:        true,
}

func (s *ChatStore) SetFlag(ctx context.Context, chatID int64, flag repository.ChatFlag, value bool, period *int64, modifiedBy int64) error {
	if !flagColumns[flag] {
		return fmt.Errorf("unknown chat flag %q", flag)
	}

	if flag == repository.FlagAutoRemoveMessages {
		query := fmt.Sprintf(
			`UPDATE chats SET %s = $1, %s_modified_by = $2, auto_remove_period = $3 WHERE id = $4`,
			flag, flag,
		)
		if _, err := s.pool.Exec(ctx, query, value, modifiedBy, period, chatID); err != nil {
			return fmt.Errorf("set chat flag %s: %w", flag, err)
		}
		return nil
	}

	query := fmt.Sprintf(
		`UPDATE chats SET %s = $1, %s_modified_by = $2 WHERE id = $3`,
		flag, flag,
	)
	if _, err := s.pool.Exec(ctx, query, value, modifiedBy, chatID); err != nil {
		return fmt.Errorf("set chat flag %s: %w", flag, err)
	}
	return nil
}

func (s *ChatStore) PersonalChatExists(ctx context.Context, userA, userB int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM chats c
			JOIN chat_memberships a ON a.chat_id = c.id AND a.user_id = $1
			JOIN chat_memberships b ON b.chat_id = c.id AND b.user_id = $2
			WHERE c.is_personal
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, userA, userB).Scan(&exists); err != nil {
		return false, fmt.Errorf("check personal chat: %w", err)
	}
	return exists, nil
}

func (s *ChatStore) DistinctTags(ctx context.Context, chatID int64) ([]string, error) {
	query := `
		SELECT DISTINCT tag
		FROM messages, unnest(tag_list) AS tag
		WHERE chat_id = $1
		ORDER BY tag`

	rows, err := s.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list chat tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan chat tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat tags: %w", err)
	}

	return tags, nil
}

func (s *ChatStore) AttachmentIDs(ctx context.Context, chatID int64) ([]int64, error) {
	query := `
		SELECT ma.attachment_id
		FROM message_attachments ma
		JOIN messages m ON m.id = ma.message_id
		WHERE m.chat_id = $1
		ORDER BY ma.attachment_id`

	rows, err := s.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list chat attachments: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat attachment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat attachments: %w", err)
	}

	return ids, nil
}

func (s *ChatStore) LastMessageID(ctx context.Context, chatID int64) (*int64, error) {
	query := `
		SELECT id FROM messages
		WHERE chat_id = $1
		ORDER BY sent_at DESC
		LIMIT 1`

	var id int64
	err := s.pool.QueryRow(ctx, query, chatID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last message id: %w", err)
	}
	return &id, nil
}
