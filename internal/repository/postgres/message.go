package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) (*MessageStore, error) {
	if pool == nil {
		return nil, backend.ErrNotInitialised
	}
	return &MessageStore{pool: pool}, nil
}

// messageSelect aggregates attachment links per message so a single query
// materializes the full record.
const messageSelect = `
	SELECT m.id, m.chat_id, m.author_id, m.body, m.message_type, m.tag_list, m.sent_at,
		COALESCE(array_agg(ma.attachment_id ORDER BY ma.attachment_id)
			FILTER (WHERE ma.attachment_id IS NOT NULL), '{}')
	FROM messages m
	LEFT JOIN message_attachments ma ON ma.message_id = m.id`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.ChatID,
		&m.AuthorID,
		&m.Body,
		&m.Type,
		&m.Tags,
		&m.SentAt,
		&m.Attachments,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MessageStore) Create(ctx context.Context, chatID, authorID int64, body string, msgType models.MessageType, tags []string, attachments []int64) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create message: %w", err)
	}
	defer tx.Rollback(ctx)

	if tags == nil {
		tags = []string{}
	}

	insert := `
		INSERT INTO messages (id, chat_id, author_id, body, message_type, tag_list, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`

	id, err := retryOnIDCollisionTx(ctx, tx, "messages_pkey", func(id int64) error {
		_, err := tx.Exec(ctx, insert, id, chatID, authorID, body, msgType, tags)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	// Link rows are scoped to the freshly assigned id: concurrent sends to
	// the same chat can interleave without cross-talk.
	for _, attID := range attachments {
		if _, err := tx.Exec(ctx,
			`INSERT INTO message_attachments (message_id, attachment_id) VALUES ($1, $2)`,
			id, attID,
		); err != nil {
			return nil, fmt.Errorf("link attachment %d: %w", attID, err)
		}
	}

	m, err := scanMessage(tx.QueryRow(ctx, messageSelect+` WHERE m.id = $1 GROUP BY m.id`, id))
	if err != nil {
		return nil, fmt.Errorf("read back message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create message: %w", err)
	}
	return m, nil
}

func (s *MessageStore) GetByID(ctx context.Context, messageID int64) (*models.Message, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx, messageSelect+` WHERE m.id = $1 GROUP BY m.id`, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *MessageStore) Update(ctx context.Context, messageID int64, body string, tags []string, attachments []int64) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update message: %w", err)
	}
	defer tx.Rollback(ctx)

	if tags == nil {
		tags = []string{}
	}

	// An edit is a full replacement of the mutable payload: body, tags and
	// attachment links together. Author and sent time stay untouched.
	ct, err := tx.Exec(ctx,
		`UPDATE messages SET body = $2, tag_list = $3 WHERE id = $1`,
		messageID, body, tags,
	)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM message_attachments WHERE message_id = $1`, messageID,
	); err != nil {
		return nil, fmt.Errorf("clear attachment links: %w", err)
	}
	for _, attID := range attachments {
		if _, err := tx.Exec(ctx,
			`INSERT INTO message_attachments (message_id, attachment_id) VALUES ($1, $2)`,
			messageID, attID,
		); err != nil {
			return nil, fmt.Errorf("link attachment %d: %w", attID, err)
		}
	}

	m, err := scanMessage(tx.QueryRow(ctx, messageSelect+` WHERE m.id = $1 GROUP BY m.id`, messageID))
	if err != nil {
		return nil, fmt.Errorf("read back message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update message: %w", err)
	}
	return m, nil
}

func (s *MessageStore) Delete(ctx context.Context, messageID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *MessageStore) Range(ctx context.Context, chatID int64, lower, upper *time.Time, limit int) ([]models.Message, error) {
	query := messageSelect + ` WHERE m.chat_id = $1`
	args := []any{chatID}

	if lower != nil {
		args = append(args, *lower)
		query += fmt.Sprintf(" AND m.sent_at >= $%d", len(args))
	}
	if upper != nil {
		args = append(args, *upper)
		query += fmt.Sprintf(" AND m.sent_at <= $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" GROUP BY m.id ORDER BY m.sent_at DESC LIMIT $%d", len(args))

	return s.list(ctx, query, args...)
}

func (s *MessageStore) WithTag(ctx context.Context, chatID int64, tag string) ([]models.Message, error) {
	query := messageSelect + `
		WHERE m.chat_id = $1 AND $2 = ANY(m.tag_list)
		GROUP BY m.id
		ORDER BY m.sent_at DESC`

	return s.list(ctx, query, chatID, tag)
}

func (s *MessageStore) list(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
