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

type AttachmentStore struct {
	pool *pgxpool.Pool
}

func NewAttachmentStore(pool *pgxpool.Pool) (*AttachmentStore, error) {
	if pool == nil {
		return nil, backend.ErrNotInitialised
	}
	return &AttachmentStore{pool: pool}, nil
}

// attachmentSelect resolves the embedding message, if any, via the link
// table.
const attachmentSelect = `
	SELECT a.id, a.owner_id, a.uri, a.storage_path, a.is_public, a.is_showable,
		a.description, a.chat_id, ma.message_id
	FROM attachments a
	LEFT JOIN message_attachments ma ON ma.attachment_id = a.id`

func scanAttachment(row pgx.Row) (*models.Attachment, error) {
	var a models.Attachment
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.URI,
		&a.StoragePath,
		&a.Public,
		&a.Showable,
		&a.Description,
		&a.ChatID,
		&a.MessageID,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AttachmentStore) Create(ctx context.Context, a *models.Attachment) (*models.Attachment, error) {
	insert := `
		INSERT INTO attachments (id, owner_id, uri, storage_path, is_public, is_showable, description, chat_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	id, err := retryOnIDCollision("attachments_pkey", func(id int64) error {
		_, err := s.pool.Exec(ctx, insert,
			id, a.OwnerID, a.URI, a.StoragePath, a.Public, a.Showable, a.Description, a.ChatID,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert attachment: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *AttachmentStore) GetByID(ctx context.Context, attachmentID int64) (*models.Attachment, error) {
	a, err := scanAttachment(s.pool.QueryRow(ctx, attachmentSelect+` WHERE a.id = $1`, attachmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	return a, nil
}

func (s *AttachmentStore) Whitelist(ctx context.Context, attachmentID, chatID int64) (bool, error) {
	// The guard in the WHERE clause keeps the binding exclusive: once an
	// attachment belongs to a chat it cannot be re-pointed at another.
	query := `
		UPDATE attachments SET chat_id = $2
		WHERE id = $1 AND (chat_id IS NULL OR chat_id = $2)`

	ct, err := s.pool.Exec(ctx, query, attachmentID, chatID)
	if err != nil {
		return false, fmt.Errorf("whitelist attachment: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
