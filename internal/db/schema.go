package db

import (
	"context"
	"fmt"
)

// Bootstrap applies the schema and seeds the reserved sentinel users.
// Every statement is idempotent so it is safe to run on each start.
func (db *DB) Bootstrap(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			nick TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			passwd_hash TEXT NOT NULL,
			devices_token_list TEXT[] NOT NULL DEFAULT '{}',
			confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT users_nick_key UNIQUE (nick),
			CONSTRAINT users_email_key UNIQUE (email)
		)`,

		`CREATE TABLE IF NOT EXISTS chats (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			creator_id BIGINT NOT NULL REFERENCES users(id),
			avatar_uri TEXT NOT NULL DEFAULT '',
			colour BIGINT NOT NULL DEFAULT 0,
			is_encrypted BOOLEAN NOT NULL DEFAULT FALSE,
			is_personal BOOLEAN NOT NULL DEFAULT FALSE,
			is_user_expandable BOOLEAN NOT NULL DEFAULT FALSE,
			is_user_expandable_modified_by BIGINT NOT NULL,
			is_non_admin BOOLEAN NOT NULL DEFAULT FALSE,
			is_non_admin_modified_by BIGINT NOT NULL,
			non_removable_messages BOOLEAN NOT NULL DEFAULT FALSE,
			non_removable_messages_modified_by BIGINT NOT NULL,
			non_modifiable_messages BOOLEAN NOT NULL DEFAULT FALSE,
			non_modifiable_messages_modified_by BIGINT NOT NULL,
			auto_remove_messages BOOLEAN NOT NULL DEFAULT FALSE,
			auto_remove_messages_modified_by BIGINT NOT NULL,
			auto_remove_period BIGINT,
			digest_messages BOOLEAN NOT NULL DEFAULT FALSE,
			digest_messages_modified_by BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS chat_memberships (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (user_id, chat_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id BIGINT PRIMARY KEY,
			chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			author_id BIGINT NOT NULL REFERENCES users(id),
			body TEXT NOT NULL,
			message_type TEXT NOT NULL DEFAULT 'message',
			tag_list TEXT[] NOT NULL DEFAULT '{}',
			sent_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_chat_sent
		ON messages (chat_id, sent_at DESC)`,

		`CREATE TABLE IF NOT EXISTS attachments (
			id BIGINT PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id),
			uri TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			is_showable BOOLEAN NOT NULL DEFAULT TRUE,
			description TEXT NOT NULL DEFAULT '',
			chat_id BIGINT REFERENCES chats(id) ON DELETE SET NULL,
			CONSTRAINT attachments_uri_key UNIQUE (uri)
		)`,

		`CREATE TABLE IF NOT EXISTS message_attachments (
			message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			attachment_id BIGINT NOT NULL REFERENCES attachments(id) ON DELETE CASCADE,
			PRIMARY KEY (message_id, attachment_id)
		)`,

		// Reserved identities: the system sender that authors automated
		// notifications, and the sentinel that inherits messages from
		// deleted accounts.
		`INSERT INTO users (id, nick, name, email, passwd_hash, confirmed)
		VALUES
			(1, 'system', 'System', 'system@localhost', '', TRUE),
			(2, 'deleted', 'Deleted User', 'deleted@localhost', '', TRUE)
		ON CONFLICT (id) DO NOTHING`,
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}

	db.logger.Info("schema bootstrap complete")
	return nil
}
