package repository

import (
	"context"
	"time"

	"github.com/ProjectPlatform/Server/internal/models"
)

// The repositories are the only code that speaks SQL. They return typed
// records, never raw rows, and surface uniqueness conflicts as the typed
// errors from internal/backend. "Not found" is nil, nil at this layer; the
// services translate that to ErrObjectNotFound where the API contract
// demands it.
//
// Every multi-statement mutation (chat + first membership, message + link
// rows, member removal + empty-chat cascade) runs in a single transaction
// so an aborted handler leaves no partial row state.

// CreateChatParams carries everything needed to insert a chat row. All
// audit columns start out attributed to the creator. SecondMemberID, when
// set, adds that user as a second admin inside the same transaction; a
// personal chat must never be committed with only one member.
type CreateChatParams struct {
	Name             string
	CreatorID        int64
	SecondMemberID   *int64
	AvatarURI        string
	Colour           int64
	IsEncrypted      bool
	IsPersonal       bool
	IsUserExpandable bool
	IsNonAdmin       bool
}

// ChatFlag names a togglable chat policy column.
type ChatFlag string

const (
	FlagUserExpandable        ChatFlag = "is_user_expandable"
	FlagNonAdmin              ChatFlag = "is_non_admin"
	FlagNonRemovableMessages  ChatFlag = "non_removable_messages"
	FlagNonModifiableMessages ChatFlag = "non_modifiable_messages"
	FlagAutoRemoveMessages    ChatFlag = "auto_remove_messages"
	FlagDigestMessages        ChatFlag = "digest_messages"
)

type UserRepository interface {
	// Create inserts a new unconfirmed user. Fails with ErrNickTaken or
	// ErrEmailTaken on a uniqueness conflict.
	Create(ctx context.Context, nick, name, email, passwordHash string) (*models.User, error)

	GetByID(ctx context.Context, userID int64) (*models.User, error)
	GetByNick(ctx context.Context, nick string) (*models.User, error)

	SetConfirmed(ctx context.Context, userID int64) error

	// AddDeviceToken appends a push token, keeping the list deduplicated.
	AddDeviceToken(ctx context.Context, userID int64, token string) error
	RemoveDeviceToken(ctx context.Context, userID int64, token string) error

	// DeviceTokens returns the union of push tokens for the given users.
	DeviceTokens(ctx context.Context, userIDs []int64) ([]string, error)

	// Delete removes the account, reassigning authored messages and
	// created chats to reassignTo, in one transaction.
	Delete(ctx context.Context, userID, reassignTo int64) error
}

type ChatRepository interface {
	// Create inserts the chat row and the creator's admin membership
	// atomically.
	Create(ctx context.Context, p CreateChatParams) (*models.Chat, error)

	GetByID(ctx context.Context, chatID int64) (*models.Chat, error)

	// SetFlag persists a policy flag together with its _modified_by audit
	// column. period is only consulted for FlagAutoRemoveMessages.
	SetFlag(ctx context.Context, chatID int64, flag ChatFlag, value bool, period *int64, modifiedBy int64) error

	// PersonalChatExists reports whether a personal chat already links the
	// two users, in either order.
	PersonalChatExists(ctx context.Context, userA, userB int64) (bool, error)

	// Info aggregation pieces for GetInfo.
	DistinctTags(ctx context.Context, chatID int64) ([]string, error)
	AttachmentIDs(ctx context.Context, chatID int64) ([]int64, error)
	LastMessageID(ctx context.Context, chatID int64) (*int64, error)
}

type MembershipRepository interface {
	// Add inserts a membership. Returns false, nil if the user is already
	// a member (soft no-op, never an error).
	Add(ctx context.Context, userID, chatID int64, isAdmin bool) (bool, error)

	// Remove deletes a membership inside a transaction that re-checks row
	// existence and deletes the chat when its last member leaves. Returns
	// (removed, chatDeleted).
	Remove(ctx context.Context, userID, chatID int64) (bool, bool, error)

	// Promote sets is_admin for an existing membership. Returns false, nil
	// if the user is not a member.
	Promote(ctx context.Context, userID, chatID int64) (bool, error)

	IsMember(ctx context.Context, userID, chatID int64) (bool, error)
	IsAdmin(ctx context.Context, userID, chatID int64) (bool, error)

	ListMembers(ctx context.Context, chatID int64) ([]models.Membership, error)
	ChatsForUser(ctx context.Context, userID int64) ([]int64, error)
}

type MessageRepository interface {
	// Create inserts the message and its attachment links atomically.
	// SentAt is assigned by the store at insert time.
	Create(ctx context.Context, chatID, authorID int64, body string, msgType models.MessageType, tags []string, attachments []int64) (*models.Message, error)

	// GetByID returns the message with tags and attachment ids populated.
	GetByID(ctx context.Context, messageID int64) (*models.Message, error)

	// Update replaces body, tags and attachment links in place. Author and
	// sent time are never touched.
	Update(ctx context.Context, messageID int64, body string, tags []string, attachments []int64) (*models.Message, error)

	Delete(ctx context.Context, messageID int64) error

	// Range returns messages in the chat ordered by descending sent time,
	// optionally bounded by a timestamp interval.
	Range(ctx context.Context, chatID int64, lower, upper *time.Time, limit int) ([]models.Message, error)

	// WithTag returns messages in the chat carrying the tag, newest first.
	WithTag(ctx context.Context, chatID int64, tag string) ([]models.Message, error)
}

type AttachmentRepository interface {
	Create(ctx context.Context, a *models.Attachment) (*models.Attachment, error)
	GetByID(ctx context.Context, attachmentID int64) (*models.Attachment, error)

	// Whitelist binds the attachment to the one chat allowed to reference
	// it. Returns false, nil if it is already bound to a different chat.
	Whitelist(ctx context.Context, attachmentID, chatID int64) (bool, error)
}
