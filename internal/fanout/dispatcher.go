package fanout

import (
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/models"
	"github.com/ProjectPlatform/Server/internal/notify"
	"github.com/ProjectPlatform/Server/internal/repository"
	"github.com/ProjectPlatform/Server/internal/ws"
)

// Sender is the live-connection handle type. Aliased so that the registry's
// Lookup result type matches LiveRegistry exactly.
type Sender = ws.Sender

// LiveRegistry is the slice of the connection registry the dispatcher
// needs.
type LiveRegistry interface {
	Lookup(userID int64) (Sender, bool)
}

// Dispatcher delivers a freshly persisted message to the rest of the chat:
// immediately over live connections for members currently online, and as a
// batched push notification for everyone else's devices. Every failure on
// this path is logged and swallowed; persistence succeeding is the send
// operation's contract, delivery is advisory.
type Dispatcher struct {
	members  repository.MembershipRepository
	users    repository.UserRepository
	registry LiveRegistry
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewDispatcher(
	members repository.MembershipRepository,
	users repository.UserRepository,
	registry LiveRegistry,
	notifier notify.Notifier,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		members:  members,
		users:    users,
		registry: registry,
		notifier: notifier,
		logger:   logger,
	}
}

// MessageCreated fans a new message out to every chat member except the
// author.
func (d *Dispatcher) MessageCreated(ctx context.Context, chat *models.Chat, msg *models.Message) {
	members, err := d.members.ListMembers(ctx, chat.ID)
	if err != nil {
		d.logger.Error("fanout: list members", zap.Int64("chat_id", chat.ID), zap.Error(err))
		return
	}

	recipients := make([]int64, 0, len(members))
	for _, m := range members {
		if m.UserID != msg.AuthorID {
			recipients = append(recipients, m.UserID)
		}
	}
	if len(recipients) == 0 {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error("fanout: marshal message", zap.Int64("message_id", msg.ID), zap.Error(err))
		return
	}

	for _, userID := range recipients {
		handle, ok := d.registry.Lookup(userID)
		if !ok {
			continue
		}
		if err := handle.Send(payload); err != nil {
			d.logger.Warn("fanout: live push failed",
				zap.Int64("user_id", userID),
				zap.Int64("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	// Push notifications go out regardless of live-handle presence: a
	// phone in a pocket is offline from the registry's point of view.
	d.notify(ctx, chat, msg, recipients)
}

func (d *Dispatcher) notify(ctx context.Context, chat *models.Chat, msg *models.Message, recipients []int64) {
	tokens, err := d.users.DeviceTokens(ctx, recipients)
	if err != nil {
		d.logger.Error("fanout: collect tokens", zap.Int64("chat_id", chat.ID), zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		return
	}

	nick := "system"
	if author, err := d.users.GetByID(ctx, msg.AuthorID); err == nil && author != nil {
		nick = author.Nick
	}

	data := map[string]string{
		"chat_id":    strconv.FormatInt(chat.ID, 10),
		"message_id": strconv.FormatInt(msg.ID, 10),
	}
	if err := d.notifier.SendMulticast(ctx, tokens, chat.Name, nick+": "+msg.Body, data); err != nil {
		d.logger.Warn("fanout: push notification failed",
			zap.Int64("chat_id", chat.ID),
			zap.Int64("message_id", msg.ID),
			zap.Error(err),
		)
	}
}
