package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/models"
	"github.com/ProjectPlatform/Server/internal/repository"
)

// Chats owns the chat lifecycle: creation, membership churn, promotion and
// the policy toggles.
type Chats struct {
	chats    repository.ChatRepository
	members  repository.MembershipRepository
	users    repository.UserRepository
	perms    *Perms
	messages *Messages
	logger   *zap.Logger
}

func NewChats(
	chats repository.ChatRepository,
	members repository.MembershipRepository,
	users repository.UserRepository,
	perms *Perms,
	messages *Messages,
	logger *zap.Logger,
) *Chats {
	return &Chats{
		chats:    chats,
		members:  members,
		users:    users,
		perms:    perms,
		messages: messages,
		logger:   logger,
	}
}

// Create makes a new group chat with the creator as its first admin. Any
// authenticated user may create chats.
func (s *Chats) Create(ctx context.Context, creatorID int64, name, avatarURI string, colour int64, encrypted bool) (*models.ChatInfo, error) {
	chat, err := s.chats.Create(ctx, repository.CreateChatParams{
		Name:        name,
		CreatorID:   creatorID,
		AvatarURI:   avatarURI,
		Colour:      colour,
		IsEncrypted: encrypted,
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, chat.ID, "Chat created")

	return s.GetInfo(ctx, creatorID, chat.ID)
}

// CreatePersonal makes the 1:1 chat for a pair of users. Exactly one
// personal chat may exist per pair; a second attempt is refused.
func (s *Chats) CreatePersonal(ctx context.Context, currentUser, otherUser int64) (*models.ChatInfo, error) {
	u1, err := s.users.GetByID(ctx, currentUser)
	if err != nil {
		return nil, err
	}
	u2, err := s.users.GetByID(ctx, otherUser)
	if err != nil {
		return nil, err
	}
	if u1 == nil || u2 == nil {
		return nil, backend.ErrObjectNotFound
	}

	exists, err := s.chats.PersonalChatExists(ctx, currentUser, otherUser)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, backend.ErrPermissionDenied
	}

	// Both sides of a personal chat are admins; there is no hierarchy in
	// a conversation of two. The second membership commits in the same
	// transaction as the chat, so a one-member personal chat can never
	// exist.
	chat, err := s.chats.Create(ctx, repository.CreateChatParams{
		Name:           u1.Nick + " & " + u2.Nick,
		CreatorID:      currentUser,
		SecondMemberID: &otherUser,
		IsPersonal:     true,
		IsNonAdmin:     true,
	})
	if err != nil {
		return nil, err
	}

	return s.GetInfo(ctx, currentUser, chat.ID)
}

// AddUser adds target to the chat. Returns false without error when target
// is already a member.
func (s *Chats) AddUser(ctx context.Context, currentUser, chatID, targetUser int64) (bool, error) {
	if err := s.perms.RequireMember(ctx, currentUser, chatID); err != nil {
		return false, err
	}

	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return false, err
	}
	if chat == nil {
		return false, backend.ErrObjectNotFound
	}
	if chat.IsPersonal {
		return false, backend.ErrPermissionDenied
	}

	if !chat.IsUserExpandable {
		admin, err := s.perms.IsAdmin(ctx, currentUser, chatID)
		if err != nil {
			return false, err
		}
		if !admin {
			return false, backend.ErrPermissionDenied
		}
	}

	target, err := s.users.GetByID(ctx, targetUser)
	if err != nil {
		return false, err
	}
	if target == nil {
		return false, backend.ErrObjectNotFound
	}

	added, err := s.members.Add(ctx, targetUser, chatID, false)
	if err != nil {
		return false, err
	}
	if added {
		s.announceUser(ctx, chatID, targetUser, "joined the chat")
	}
	return added, nil
}

// RemoveUser removes target from the chat. Leaving (current == target) is
// always allowed; removing someone else takes admin rights. Returns false
// without error when target is not a member. The chat is deleted when its
// last member leaves.
func (s *Chats) RemoveUser(ctx context.Context, currentUser, chatID, targetUser int64) (bool, error) {
	if err := s.perms.RequireMember(ctx, currentUser, chatID); err != nil {
		return false, err
	}

	if currentUser != targetUser {
		admin, err := s.perms.IsAdmin(ctx, currentUser, chatID)
		if err != nil {
			return false, err
		}
		if !admin {
			return false, backend.ErrPermissionDenied
		}
	}

	removed, chatDeleted, err := s.members.Remove(ctx, targetUser, chatID)
	if err != nil {
		return false, err
	}
	if removed && !chatDeleted {
		s.announceUser(ctx, chatID, targetUser, "left the chat")
	}
	if chatDeleted {
		s.logger.Info("chat deleted after last member left",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", targetUser),
		)
	}
	return removed, nil
}

// MakeUserAdmin promotes target. Returns false without error when target is
// not a member.
func (s *Chats) MakeUserAdmin(ctx context.Context, currentUser, chatID, targetUser int64) (bool, error) {
	admin, err := s.perms.IsAdmin(ctx, currentUser, chatID)
	if err != nil {
		return false, err
	}
	if !admin {
		return false, backend.ErrPermissionDenied
	}

	return s.members.Promote(ctx, targetUser, chatID)
}

// SetFlag flips a chat policy flag, recording who changed it. Admins may
// always toggle; in a non-admin chat any member may, but only towards the
// restrictive (true) value. period is only meaningful for the auto-remove
// flag.
func (s *Chats) SetFlag(ctx context.Context, currentUser, chatID int64, flag repository.ChatFlag, value bool, period *int64) error {
	if err := s.perms.RequireMember(ctx, currentUser, chatID); err != nil {
		return err
	}

	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return backend.ErrObjectNotFound
	}

	// Personal chats are exactly two people, permanently.
	if flag == repository.FlagUserExpandable && chat.IsPersonal {
		return backend.ErrPermissionDenied
	}

	admin, err := s.perms.IsAdmin(ctx, currentUser, chatID)
	if err != nil {
		return err
	}
	if !admin && !(value && chat.IsNonAdmin) {
		return backend.ErrPermissionDenied
	}

	if flag != repository.FlagAutoRemoveMessages {
		period = nil
	}
	return s.chats.SetFlag(ctx, chatID, flag, value, period, currentUser)
}

// GetInfo returns the full chat view. The two-tier error contract applies:
// a missing chat is ErrObjectNotFound, an existing chat the caller does not
// belong to is ErrPermissionDenied.
func (s *Chats) GetInfo(ctx context.Context, currentUser, chatID int64) (*models.ChatInfo, error) {
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

	info := &models.ChatInfo{Chat: *chat}

	members, err := s.members.ListMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	info.Admins = make([]int64, 0)
	info.Users = make([]int64, 0)
	for _, m := range members {
		if m.IsAdmin {
			info.Admins = append(info.Admins, m.UserID)
		} else {
			info.Users = append(info.Users, m.UserID)
		}
	}

	if info.Tags, err = s.chats.DistinctTags(ctx, chatID); err != nil {
		return nil, err
	}
	if info.Attachments, err = s.chats.AttachmentIDs(ctx, chatID); err != nil {
		return nil, err
	}
	if info.LastMessageID, err = s.chats.LastMessageID(ctx, chatID); err != nil {
		return nil, err
	}

	return info, nil
}

// ChatsForUser lists the chat ids the user belongs to. A user may always
// list their own chats.
func (s *Chats) ChatsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return s.members.ChatsForUser(ctx, userID)
}

// announce emits a system notification into the chat. Announcement failures
// never fail the operation that triggered them.
func (s *Chats) announce(ctx context.Context, chatID int64, body string) {
	if _, err := s.messages.SendSystem(ctx, chatID, body); err != nil {
		s.logger.Warn("system announcement failed",
			zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (s *Chats) announceUser(ctx context.Context, chatID, userID int64, event string) {
	nick := fmt.Sprintf("user %d", userID)
	if u, err := s.users.GetByID(ctx, userID); err == nil && u != nil {
		nick = u.Nick
	}
	s.announce(ctx, chatID, nick+" "+event)
}
