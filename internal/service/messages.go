package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/models"
	"github.com/ProjectPlatform/Server/internal/repository"
)

const (
	defaultRangeLimit = 50
	maxRangeLimit     = 200
)

// Dispatcher is the fan-out hook invoked after a message is persisted.
// Implementations must swallow their own failures; delivery is advisory.
type Dispatcher interface {
	MessageCreated(ctx context.Context, chat *models.Chat, msg *models.Message)
}

// Messages is the message engine: CRUD plus tag and attachment association,
// gated by chat policy and authorship.
type Messages struct {
	messages    repository.MessageRepository
	chats       repository.ChatRepository
	attachments repository.AttachmentRepository
	perms       *Perms
	dispatcher  Dispatcher
	logger      *zap.Logger
}

func NewMessages(
	messages repository.MessageRepository,
	chats repository.ChatRepository,
	attachments repository.AttachmentRepository,
	perms *Perms,
	dispatcher Dispatcher,
	logger *zap.Logger,
) *Messages {
	return &Messages{
		messages:    messages,
		chats:       chats,
		attachments: attachments,
		perms:       perms,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Send persists a message and fans it out. The fan-out runs only after the
// insert committed and cannot undo it.
func (s *Messages) Send(ctx context.Context, currentUser, chatID int64, body string, tags []string, attachments []int64) (*models.Message, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, backend.ErrObjectNotFound
	}

	if err := s.perms.RequireMember(ctx, currentUser, chatID); err != nil {
		return nil, err
	}

	if err := s.claimAttachments(ctx, currentUser, chatID, attachments); err != nil {
		return nil, err
	}

	msgType := models.TypeMessage
	if currentUser == backend.SystemUserID {
		msgType = models.TypeSystem
	}

	msg, err := s.messages.Create(ctx, chatID, currentUser, body, msgType, tags, attachments)
	if err != nil {
		return nil, err
	}

	s.dispatcher.MessageCreated(ctx, chat, msg)

	return msg, nil
}

// SendSystem emits an automated notification authored by the system sender.
func (s *Messages) SendSystem(ctx context.Context, chatID int64, body string) (*models.Message, error) {
	return s.Send(ctx, backend.SystemUserID, chatID, body, nil, nil)
}

// Edit replaces body, tags and attachments of a message. Only the author
// may edit, and only while the chat permits modification. Author and sent
// time never change.
func (s *Messages) Edit(ctx context.Context, currentUser, messageID int64, body string, tags []string, attachments []int64) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, backend.ErrObjectNotFound
	}

	chat, err := s.chats.GetByID(ctx, msg.ChatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, backend.ErrObjectNotFound
	}

	if msg.AuthorID != currentUser || chat.NonModifiableMessages {
		return nil, backend.ErrPermissionDenied
	}

	if err := s.claimAttachments(ctx, currentUser, msg.ChatID, attachments); err != nil {
		return nil, err
	}

	updated, err := s.messages.Update(ctx, messageID, body, tags, attachments)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, backend.ErrObjectNotFound
	}
	return updated, nil
}

// Delete hard-removes a message. Only the author may delete, and only while
// the chat permits removal.
func (s *Messages) Delete(ctx context.Context, currentUser, messageID int64) (bool, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, backend.ErrObjectNotFound
	}

	chat, err := s.chats.GetByID(ctx, msg.ChatID)
	if err != nil {
		return false, err
	}
	if chat == nil {
		return false, backend.ErrObjectNotFound
	}

	if msg.AuthorID != currentUser || chat.NonRemovableMessages {
		return false, backend.ErrPermissionDenied
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns a single message to a member of its chat.
func (s *Messages) Get(ctx context.Context, currentUser, messageID int64) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, backend.ErrObjectNotFound
	}

	if err := s.perms.RequireMember(ctx, currentUser, msg.ChatID); err != nil {
		return nil, err
	}
	return msg, nil
}

// Range returns up to limit messages of the chat, newest first, restricted
// to the sent-time interval spanned by the boundary message ids. At least
// one bound is required, and both bounds must belong to the chat.
func (s *Messages) Range(ctx context.Context, currentUser, chatID int64, lowerID, upperID *int64, limit int) ([]models.Message, error) {
	if lowerID == nil && upperID == nil {
		return nil, backend.ErrInvalidRange
	}

	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, backend.ErrObjectNotFound
	}

	if err := s.perms.RequireMember(ctx, currentUser, chatID); err != nil {
		return nil, err
	}

	resolve := func(id *int64) (*models.Message, error) {
		if id == nil {
			return nil, nil
		}
		m, err := s.messages.GetByID(ctx, *id)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, backend.ErrObjectNotFound
		}
		if m.ChatID != chatID {
			return nil, backend.ErrInvalidRange
		}
		return m, nil
	}

	lower, err := resolve(lowerID)
	if err != nil {
		return nil, err
	}
	upper, err := resolve(upperID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultRangeLimit
	}
	if limit > maxRangeLimit {
		limit = maxRangeLimit
	}

	var lowerAt, upperAt *time.Time
	if lower != nil {
		lowerAt = &lower.SentAt
	}
	if upper != nil {
		upperAt = &upper.SentAt
	}

	return s.messages.Range(ctx, chatID, lowerAt, upperAt, limit)
}

// WithTag returns the chat's messages carrying the tag. Zero matches is
// ErrObjectNotFound on purpose: it distinguishes "no such tag used here"
// from an empty chat.
func (s *Messages) WithTag(ctx context.Context, currentUser, chatID int64, tag string) ([]models.Message, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, backend.ErrObjectNotFound
	}

	if err := s.perms.RequireMember(ctx, currentUser, chatID); err != nil {
		return nil, err
	}

	msgs, err := s.messages.WithTag(ctx, chatID, tag)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, backend.ErrObjectNotFound
	}
	return msgs, nil
}

// claimAttachments verifies every referenced attachment and binds it to the
// chat's whitelist. The system sender never attaches files.
func (s *Messages) claimAttachments(ctx context.Context, currentUser, chatID int64, attachments []int64) error {
	for _, id := range attachments {
		att, err := s.attachments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if att == nil {
			return backend.ErrObjectNotFound
		}
		if att.OwnerID != currentUser {
			return backend.ErrPermissionDenied
		}
		ok, err := s.attachments.Whitelist(ctx, id, chatID)
		if err != nil {
			return err
		}
		if !ok {
			// Already whitelisted for another chat.
			return backend.ErrPermissionDenied
		}
	}
	return nil
}
