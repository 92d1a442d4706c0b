package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/models"
	"github.com/ProjectPlatform/Server/internal/repository"
)

func TestCreateChat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")

	info, err := f.chats.Create(ctx, alice.ID, "general", "", 0xFF0000, false)
	require.NoError(t, err)
	require.Equal(t, "general", info.Name)
	require.Equal(t, alice.ID, info.CreatorID)
	require.Equal(t, []int64{alice.ID}, info.Admins)
	require.Empty(t, info.Users)

	// Creation emits a system announcement into the new chat.
	require.NotNil(t, info.LastMessageID)
	msg := f.store.messages[*info.LastMessageID]
	require.Equal(t, models.TypeSystem, msg.Type)
	require.Equal(t, backend.SystemUserID, msg.AuthorID)
}

func TestCreatePersonalChat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	info, err := f.chats.CreatePersonal(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, info.IsPersonal)
	require.True(t, info.IsNonAdmin)
	require.Equal(t, "alice & bob", info.Name)
	require.ElementsMatch(t, []int64{alice.ID, bob.ID}, info.Admins)

	// Only one personal chat per pair, in either order.
	_, err = f.chats.CreatePersonal(ctx, bob.ID, alice.ID)
	require.ErrorIs(t, err, backend.ErrPermissionDenied)
}

func TestCreatePersonalChatAtomicMemberships(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	info, err := f.chats.CreatePersonal(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	// Both memberships come out of the chat-creation insert itself, never
	// a follow-up call that could leave a one-member personal chat behind.
	require.Zero(t, f.store.addCalls)

	for _, userID := range []int64{alice.ID, bob.ID} {
		member, err := f.store.IsMember(ctx, userID, info.ID)
		require.NoError(t, err)
		require.True(t, member)
	}
}

func TestCreatePersonalChatUnknownUser(t *testing.T) {
	f := newFixture()
	alice := f.store.addUser("alice")

	_, err := f.chats.CreatePersonal(context.Background(), alice.ID, 99999)
	require.ErrorIs(t, err, backend.ErrObjectNotFound)
}

func TestAddUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	info, err := f.chats.Create(ctx, alice.ID, "general", "", 0, false)
	require.NoError(t, err)

	added, err := f.chats.AddUser(ctx, alice.ID, info.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, added)

	// Adding twice is a soft no-op.
	added, err = f.chats.AddUser(ctx, alice.ID, info.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, added)

	// An unknown target is not-found, never a raw storage error.
	_, err = f.chats.AddUser(ctx, alice.ID, info.ID, 99999)
	require.ErrorIs(t, err, backend.ErrObjectNotFound)
}

func TestAddUserExpandablePolicy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")
	carol := f.store.addUser("carol")

	info, err := f.chats.Create(ctx, alice.ID, "general", "", 0, false)
	require.NoError(t, err)
	_, err = f.chats.AddUser(ctx, alice.ID, info.ID, bob.ID)
	require.NoError(t, err)

	// Plain member cannot grow a non-expandable chat.
	_, err = f.chats.AddUser(ctx, bob.ID, info.ID, carol.ID)
	require.ErrorIs(t, err, backend.ErrPermissionDenied)

	require.NoError(t, f.chats.SetFlag(ctx, alice.ID, info.ID, repository.FlagUserExpandable, true, nil))

	added, err := f.chats.AddUser(ctx, bob.ID, info.ID, carol.ID)
	require.NoError(t, err)
	require.True(t, added)
}

func TestAddUserToPersonalChat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")
	carol := f.store.addUser("carol")

	info, err := f.chats.CreatePersonal(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.chats.AddUser(ctx, alice.ID, info.ID, carol.ID)
	require.ErrorIs(t, err, backend.ErrPermissionDenied)
}

func TestRemoveUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	info, err := f.chats.Create(ctx, alice.ID, "general", "", 0, false)
	require.NoError(t, err)
	_, err = f.chats.AddUser(ctx, alice.ID, info.ID, bob.ID)
	require.NoError(t, err)

	// Plain member cannot remove someone else.
	_, err = f.chats.RemoveUser(ctx, bob.ID, info.ID, alice.ID)
	require.ErrorIs(t, err, backend.ErrPermissionDenied)

	// Leaving is always allowed.
	removed, err := f.chats.RemoveUser(ctx, bob.ID, info.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, removed)

	// Removing a non-member is a soft no-op.
	removed, err = f.chats.RemoveUser(ctx, alice.ID, info.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestLastMemberLeavingDeletesChat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")

	info, err := f.chats.Create(ctx, alice.ID, "solo", "", 0, false)
	require.NoError(t, err)

	removed, err := f.chats.RemoveUser(ctx, alice.ID, info.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, removed)

	require.Nil(t, f.store.chats[info.ID])
}

func TestMakeUserAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")
	carol := f.store.addUser("carol")

	info, err := f.chats.Create(ctx, alice.ID, "general", "", 0, false)
	require.NoError(t, err)
	_, err = f.chats.AddUser(ctx, alice.ID, info.ID, bob.ID)
	require.NoError(t, err)

	// Non-admins cannot promote.
	_, err = f.chats.MakeUserAdmin(ctx, bob.ID, info.ID, bob.ID)
	require.ErrorIs(t, err, backend.ErrPermissionDenied)

	promoted, err := f.chats.MakeUserAdmin(ctx, alice.ID, info.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, promoted)

	// The fresh admin may now remove the original one.
	removed, err := f.chats.RemoveUser(ctx, bob.ID, info.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, removed)

	// Promoting a non-member is a soft no-op.
	promoted, err = f.chats.MakeUserAdmin(ctx, bob.ID, info.ID, carol.ID)
	require.NoError(t, err)
	require.False(t, promoted)
}

func TestSetFlag(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	info, err := f.chats.Create(ctx, alice.ID, "general", "", 0, false)
	require.NoError(t, err)
	_, err = f.chats.AddUser(ctx, alice.ID, info.ID, bob.ID)
	require.NoError(t, err)

	// Plain member cannot toggle in an admin-governed chat.
	err = f.chats.SetFlag(ctx, bob.ID, info.ID, repository.FlagNonRemovableMessages, true, nil)
	require.ErrorIs(t, err, backend.ErrPermissionDenied)

	require.NoError(t, f.chats.SetFlag(ctx, alice.ID, info.ID, repository.FlagNonAdmin, true, nil))
	chat := f.store.chats[info.ID]
	require.True(t, chat.IsNonAdmin)
	require.Equal(t, alice.ID, chat.IsNonAdminModifiedBy)

	// In a non-admin chat any member may restrict, but never relax.
	require.NoError(t, f.chats.SetFlag(ctx, bob.ID, info.ID, repository.FlagNonRemovableMessages, true, nil))
	require.True(t, chat.NonRemovableMessages)
	require.Equal(t, bob.ID, chat.NonRemovableMessagesModifiedBy)

	err = f.chats.SetFlag(ctx, bob.ID, info.ID, repository.FlagNonRemovableMessages, false, nil)
	require.ErrorIs(t, err, backend.ErrPermissionDenied)
}

func TestSetFlagAutoRemovePeriod(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")

	info, err := f.chats.Create(ctx, alice.ID, "general", "", 0, false)
	require.NoError(t, err)

	period := int64(3600)
	require.NoError(t, f.chats.SetFlag(ctx, alice.ID, info.ID, repository.FlagAutoRemoveMessages, true, &period))
	chat := f.store.chats[info.ID]
	require.True(t, chat.AutoRemoveMessages)
	require.NotNil(t, chat.AutoRemovePeriod)
	require.Equal(t, period, *chat.AutoRemovePeriod)
}

func TestSetFlagUserExpandableOnPersonalChat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	info, err := f.chats.CreatePersonal(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	err = f.chats.SetFlag(ctx, alice.ID, info.ID, repository.FlagUserExpandable, true, nil)
	require.ErrorIs(t, err, backend.ErrPermissionDenied)
}

func TestGetInfoErrorTiers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	mallory := f.store.addUser("mallory")

	// Missing chat is not-found even for a complete stranger.
	_, err := f.chats.GetInfo(ctx, mallory.ID, 99999)
	require.ErrorIs(t, err, backend.ErrObjectNotFound)

	info, err := f.chats.Create(ctx, alice.ID, "general", "", 0, false)
	require.NoError(t, err)

	// An existing chat the caller does not belong to is denied, not hidden.
	_, err = f.chats.GetInfo(ctx, mallory.ID, info.ID)
	require.ErrorIs(t, err, backend.ErrPermissionDenied)
}

func TestChatsForUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	a, err := f.chats.Create(ctx, alice.ID, "one", "", 0, false)
	require.NoError(t, err)
	b, err := f.chats.Create(ctx, alice.ID, "two", "", 0, false)
	require.NoError(t, err)

	ids, err := f.chats.ChatsForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{a.ID, b.ID}, ids)

	ids, err = f.chats.ChatsForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Empty(t, ids)
}
