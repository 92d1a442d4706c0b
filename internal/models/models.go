package models

import "time"

// User is a registered account. DeviceTokens is the ordered, deduplicated
// set of push-notification tokens for the user's devices.
type User struct {
	ID           int64     `json:"id"`
	Nick         string    `json:"nick"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Confirmed    bool      `json:"confirmed"`
	DeviceTokens []string  `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Chat is a conversation. Each policy flag records which user last flipped
// it, for audit. A personal (1:1) chat is never user-expandable and always
// has exactly two members.
type Chat struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	CreatorID   int64     `json:"creator_id"`
	AvatarURI   string    `json:"avatar_uri,omitempty"`
	Colour      int64     `json:"colour"`
	IsEncrypted bool      `json:"is_encrypted"`
	IsPersonal  bool      `json:"is_personal"`
	CreatedAt   time.Time `json:"created_at"`

	IsUserExpandable           bool  `json:"is_user_expandable"`
	IsUserExpandableModifiedBy int64 `json:"is_user_expandable_modified_by"`

	IsNonAdmin           bool  `json:"is_non_admin"`
	IsNonAdminModifiedBy int64 `json:"is_non_admin_modified_by"`

	NonRemovableMessages           bool  `json:"non_removable_messages"`
	NonRemovableMessagesModifiedBy int64 `json:"non_removable_messages_modified_by"`

	NonModifiableMessages           bool  `json:"non_modifiable_messages"`
	NonModifiableMessagesModifiedBy int64 `json:"non_modifiable_messages_modified_by"`

	AutoRemoveMessages           bool   `json:"auto_remove_messages"`
	AutoRemoveMessagesModifiedBy int64  `json:"auto_remove_messages_modified_by"`
	AutoRemovePeriod             *int64 `json:"auto_remove_period,omitempty"`

	DigestMessages           bool  `json:"digest_messages"`
	DigestMessagesModifiedBy int64 `json:"digest_messages_modified_by"`
}

// ChatInfo is the full chat view returned by GetInfo: the row plus the
// member split, the distinct tags used in the chat, the attachment ids
// referenced by its messages and the newest message id.
type ChatInfo struct {
	Chat
	Admins        []int64  `json:"admins"`
	Users         []int64  `json:"users"`
	Tags          []string `json:"tags"`
	Attachments   []int64  `json:"attachments"`
	LastMessageID *int64   `json:"last_message_id"`
}

// Membership is the join entity granting a user access to a chat.
type Membership struct {
	UserID  int64 `json:"user_id"`
	ChatID  int64 `json:"chat_id"`
	IsAdmin bool  `json:"is_admin"`
}

// MessageType distinguishes user messages from automated notifications
// authored by the system sender.
type MessageType string

const (
	TypeMessage MessageType = "message"
	TypeSystem  MessageType = "system"
)

// Message is a single chat message. AuthorID and SentAt are fixed at
// creation; edits replace body, tags and attachments only.
type Message struct {
	ID          int64       `json:"id"`
	ChatID      int64       `json:"chat_id"`
	AuthorID    int64       `json:"author_id"`
	Body        string      `json:"body"`
	Type        MessageType `json:"message_type"`
	Tags        []string    `json:"tags"`
	Attachments []int64     `json:"attachments"`
	SentAt      time.Time   `json:"sent_at"`
}

// HasAttachments reports whether any attachment is linked to the message.
func (m *Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// Attachment is an uploaded file. ChatID, when set, whitelists the chat
// allowed to reference the file from its messages; MessageID is the message
// currently embedding it, if any.
type Attachment struct {
	ID          int64  `json:"id"`
	OwnerID     int64  `json:"owner_id"`
	URI         string `json:"uri"`
	StoragePath string `json:"-"`
	Public      bool   `json:"public"`
	Showable    bool   `json:"showable"`
	Description string `json:"description,omitempty"`
	ChatID      *int64 `json:"chat_id,omitempty"`
	MessageID   *int64 `json:"message_id,omitempty"`
}
