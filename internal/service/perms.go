package service

import (
	"context"
	"fmt"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/repository"
)

// Perms is the authorization core: every chat-scoped operation in the chat
// and message services goes through it before touching anything.
type Perms struct {
	members repository.MembershipRepository
}

func NewPerms(members repository.MembershipRepository) *Perms {
	return &Perms{members: members}
}

// HasMember reports whether the user may see the chat. The system sender
// passes unconditionally: it has to reach every chat to emit notifications
// but never appears in membership rows.
func (p *Perms) HasMember(ctx context.Context, userID, chatID int64) (bool, error) {
	if userID == backend.SystemUserID {
		return true, nil
	}
	return p.members.IsMember(ctx, userID, chatID)
}

func (p *Perms) IsAdmin(ctx context.Context, userID, chatID int64) (bool, error) {
	return p.members.IsAdmin(ctx, userID, chatID)
}

// RequireMember fails with ErrPermissionDenied unless the user belongs to
// the chat (or is the system sender).
func (p *Perms) RequireMember(ctx context.Context, userID, chatID int64) error {
	ok, err := p.HasMember(ctx, userID, chatID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return backend.ErrPermissionDenied
	}
	return nil
}
