package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/models"
	"github.com/ProjectPlatform/Server/internal/repository"
)

// fakeStore is an in-memory stand-in for every repository interface, good
// enough to drive the service layer without Postgres.
type fakeStore struct {
	nextID      int64
	users       map[int64]*models.User
	chats       map[int64]*models.Chat
	memberships map[memberKey]*models.Membership
	messages    map[int64]*models.Message
	attachments map[int64]*models.Attachment

	// addCalls counts Add invocations, to pin down which paths must go
	// through the atomic chat-creation insert instead.
	addCalls int

	// failCreateAttachment, when set, makes CreateAttachment fail with it.
	failCreateAttachment error
}

type memberKey struct {
	userID int64
	chatID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:      1000,
		users:       make(map[int64]*models.User),
		chats:       make(map[int64]*models.Chat),
		memberships: make(map[memberKey]*models.Membership),
		messages:    make(map[int64]*models.Message),
		attachments: make(map[int64]*models.Attachment),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addUser(nick string) *models.User {
	u := &models.User{ID: f.id(), Nick: nick, Name: nick, Email: nick + "@example.com"}
	f.users[u.ID] = u
	return u
}

// UserRepository

func (f *fakeStore) Create(ctx context.Context, nick, name, email, passwordHash string) (*models.User, error) {
	for _, u := range f.users {
		if u.Nick == nick {
			return nil, backend.ErrNickTaken
		}
		if u.Email == email {
			return nil, backend.ErrEmailTaken
		}
	}
	u := &models.User{
		ID: f.id(), Nick: nick, Name: name, Email: email,
		PasswordHash: passwordHash, CreatedAt: time.Now(),
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	return f.users[userID], nil
}

func (f *fakeStore) GetByNick(ctx context.Context, nick string) (*models.User, error) {
	for _, u := range f.users {
		if u.Nick == nick {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SetConfirmed(ctx context.Context, userID int64) error {
	if u := f.users[userID]; u != nil {
		u.Confirmed = true
	}
	return nil
}

func (f *fakeStore) AddDeviceToken(ctx context.Context, userID int64, token string) error {
	u := f.users[userID]
	if u == nil {
		return nil
	}
	for _, t := range u.DeviceTokens {
		if t == token {
			return nil
		}
	}
	u.DeviceTokens = append(u.DeviceTokens, token)
	return nil
}

func (f *fakeStore) RemoveDeviceToken(ctx context.Context, userID int64, token string) error {
	u := f.users[userID]
	if u == nil {
		return nil
	}
	kept := u.DeviceTokens[:0]
	for _, t := range u.DeviceTokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	u.DeviceTokens = kept
	return nil
}

func (f *fakeStore) DeviceTokens(ctx context.Context, userIDs []int64) ([]string, error) {
	seen := make(map[string]bool)
	var tokens []string
	for _, id := range userIDs {
		u := f.users[id]
		if u == nil {
			continue
		}
		for _, t := range u.DeviceTokens {
			if !seen[t] {
				seen[t] = true
				tokens = append(tokens, t)
			}
		}
	}
	return tokens, nil
}

func (f *fakeStore) Delete(ctx context.Context, userID, reassignTo int64) error {
	for _, m := range f.messages {
		if m.AuthorID == userID {
			m.AuthorID = reassignTo
		}
	}
	for _, c := range f.chats {
		if c.CreatorID == userID {
			c.CreatorID = reassignTo
		}
	}
	for _, a := range f.attachments {
		if a.OwnerID == userID {
			a.OwnerID = reassignTo
		}
	}
	for k := range f.memberships {
		if k.userID == userID {
			delete(f.memberships, k)
		}
	}
	for id := range f.chats {
		populated := false
		for k := range f.memberships {
			if k.chatID == id {
				populated = true
				break
			}
		}
		if !populated {
			delete(f.chats, id)
			for mid, m := range f.messages {
				if m.ChatID == id {
					delete(f.messages, mid)
				}
			}
		}
	}
	delete(f.users, userID)
	return nil
}

// ChatRepository

func (f *fakeStore) CreateChat(ctx context.Context, p repository.CreateChatParams) (*models.Chat, error) {
	c := &models.Chat{
		ID: f.id(), Name: p.Name, CreatorID: p.CreatorID,
		AvatarURI: p.AvatarURI, Colour: p.Colour,
		IsEncrypted: p.IsEncrypted, IsPersonal: p.IsPersonal,
		IsUserExpandable: p.IsUserExpandable, IsNonAdmin: p.IsNonAdmin,
		CreatedAt: time.Now(),
	}
	c.IsUserExpandableModifiedBy = p.CreatorID
	c.IsNonAdminModifiedBy = p.CreatorID
	c.NonRemovableMessagesModifiedBy = p.CreatorID
	c.NonModifiableMessagesModifiedBy = p.CreatorID
	c.AutoRemoveMessagesModifiedBy = p.CreatorID
	c.DigestMessagesModifiedBy = p.CreatorID
	f.chats[c.ID] = c
	f.memberships[memberKey{p.CreatorID, c.ID}] = &models.Membership{
		UserID: p.CreatorID, ChatID: c.ID, IsAdmin: true,
	}
	if p.SecondMemberID != nil {
		f.memberships[memberKey{*p.SecondMemberID, c.ID}] = &models.Membership{
			UserID: *p.SecondMemberID, ChatID: c.ID, IsAdmin: true,
		}
	}
	return c, nil
}

func (f *fakeStore) GetChatByID(ctx context.Context, chatID int64) (*models.Chat, error) {
	return f.chats[chatID], nil
}

func (f *fakeStore) SetFlag(ctx context.Context, chatID int64, flag repository.ChatFlag, value bool, period *int64, modifiedBy int64) error {
	c := f.chats[chatID]
	if c == nil {
		return nil
	}
	switch flag {
	case repository.FlagUserExpandable:
		c.IsUserExpandable, c.IsUserExpandableModifiedBy = value, modifiedBy
	case repository.FlagNonAdmin:
		c.IsNonAdmin, c.IsNonAdminModifiedBy = value, modifiedBy
	case repository.FlagNonRemovableMessages:
		c.NonRemovableMessages, c.NonRemovableMessagesModifiedBy = value, modifiedBy
	case repository.FlagNonModifiableMessages:
		c.NonModifiableMessages, c.NonModifiableMessagesModifiedBy = value, modifiedBy
	case repository.FlagAutoRemoveMessages:
		c.AutoRemoveMessages, c.AutoRemoveMessagesModifiedBy = value, modifiedBy
		c.AutoRemovePeriod = period
	case repository.FlagDigestMessages:
		c.DigestMessages, c.DigestMessagesModifiedBy = value, modifiedBy
	}
	return nil
}

func (f *fakeStore) PersonalChatExists(ctx context.Context, userA, userB int64) (bool, error) {
	for id, c := range f.chats {
		if !c.IsPersonal {
			continue
		}
		_, a := f.memberships[memberKey{userA, id}]
		_, b := f.memberships[memberKey{userB, id}]
		if a && b {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) DistinctTags(ctx context.Context, chatID int64) ([]string, error) {
	seen := make(map[string]bool)
	tags := make([]string, 0)
	for _, m := range f.messages {
		if m.ChatID != chatID {
			continue
		}
		for _, t := range m.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags, nil
}

func (f *fakeStore) AttachmentIDs(ctx context.Context, chatID int64) ([]int64, error) {
	ids := make([]int64, 0)
	for _, m := range f.messages {
		if m.ChatID == chatID {
			ids = append(ids, m.Attachments...)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) LastMessageID(ctx context.Context, chatID int64) (*int64, error) {
	var last *models.Message
	for _, m := range f.messages {
		if m.ChatID != chatID {
			continue
		}
		if last == nil || m.SentAt.After(last.SentAt) || (m.SentAt.Equal(last.SentAt) && m.ID > last.ID) {
			last = m
		}
	}
	if last == nil {
		return nil, nil
	}
	id := last.ID
	return &id, nil
}

// MembershipRepository

func (f *fakeStore) Add(ctx context.Context, userID, chatID int64, isAdmin bool) (bool, error) {
	f.addCalls++
	key := memberKey{userID, chatID}
	if _, exists := f.memberships[key]; exists {
		return false, nil
	}
	f.memberships[key] = &models.Membership{UserID: userID, ChatID: chatID, IsAdmin: isAdmin}
	return true, nil
}

func (f *fakeStore) Remove(ctx context.Context, userID, chatID int64) (bool, bool, error) {
	key := memberKey{userID, chatID}
	if _, exists := f.memberships[key]; !exists {
		return false, false, nil
	}
	delete(f.memberships, key)
	for k := range f.memberships {
		if k.chatID == chatID {
			return true, false, nil
		}
	}
	delete(f.chats, chatID)
	return true, true, nil
}

func (f *fakeStore) Promote(ctx context.Context, userID, chatID int64) (bool, error) {
	m, exists := f.memberships[memberKey{userID, chatID}]
	if !exists {
		return false, nil
	}
	m.IsAdmin = true
	return true, nil
}

func (f *fakeStore) IsMember(ctx context.Context, userID, chatID int64) (bool, error) {
	_, exists := f.memberships[memberKey{userID, chatID}]
	return exists, nil
}

func (f *fakeStore) IsAdmin(ctx context.Context, userID, chatID int64) (bool, error) {
	m, exists := f.memberships[memberKey{userID, chatID}]
	return exists && m.IsAdmin, nil
}

func (f *fakeStore) ListMembers(ctx context.Context, chatID int64) ([]models.Membership, error) {
	var members []models.Membership
	for _, m := range f.memberships {
		if m.ChatID == chatID {
			members = append(members, *m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

func (f *fakeStore) ChatsForUser(ctx context.Context, userID int64) ([]int64, error) {
	ids := make([]int64, 0)
	for k := range f.memberships {
		if k.userID == userID {
			ids = append(ids, k.chatID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// MessageRepository

func (f *fakeStore) CreateMessage(ctx context.Context, chatID, authorID int64, body string, msgType models.MessageType, tags []string, attachments []int64) (*models.Message, error) {
	m := &models.Message{
		ID: f.id(), ChatID: chatID, AuthorID: authorID,
		Body: body, Type: msgType,
		Tags: append([]string(nil), tags...), Attachments: append([]int64(nil), attachments...),
		SentAt: time.Now(),
	}
	f.messages[m.ID] = m
	return m, nil
}

func (f *fakeStore) GetMessageByID(ctx context.Context, messageID int64) (*models.Message, error) {
	return f.messages[messageID], nil
}

func (f *fakeStore) Update(ctx context.Context, messageID int64, body string, tags []string, attachments []int64) (*models.Message, error) {
	m := f.messages[messageID]
	if m == nil {
		return nil, nil
	}
	m.Body = body
	m.Tags = append([]string(nil), tags...)
	m.Attachments = append([]int64(nil), attachments...)
	return m, nil
}

func (f *fakeStore) DeleteMessage(ctx context.Context, messageID int64) error {
	delete(f.messages, messageID)
	return nil
}

func (f *fakeStore) Range(ctx context.Context, chatID int64, lower, upper *time.Time, limit int) ([]models.Message, error) {
	var msgs []models.Message
	for _, m := range f.messages {
		if m.ChatID != chatID {
			continue
		}
		if lower != nil && m.SentAt.Before(*lower) {
			continue
		}
		if upper != nil && m.SentAt.After(*upper) {
			continue
		}
		msgs = append(msgs, *m)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].SentAt.After(msgs[j].SentAt) })
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeStore) WithTag(ctx context.Context, chatID int64, tag string) ([]models.Message, error) {
	var msgs []models.Message
	for _, m := range f.messages {
		if m.ChatID != chatID {
			continue
		}
		for _, t := range m.Tags {
			if t == tag {
				msgs = append(msgs, *m)
				break
			}
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].SentAt.After(msgs[j].SentAt) })
	return msgs, nil
}

// AttachmentRepository

func (f *fakeStore) CreateAttachment(ctx context.Context, a *models.Attachment) (*models.Attachment, error) {
	if f.failCreateAttachment != nil {
		return nil, f.failCreateAttachment
	}
	cp := *a
	cp.ID = f.id()
	f.attachments[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeStore) GetAttachmentByID(ctx context.Context, attachmentID int64) (*models.Attachment, error) {
	return f.attachments[attachmentID], nil
}

func (f *fakeStore) Whitelist(ctx context.Context, attachmentID, chatID int64) (bool, error) {
	a := f.attachments[attachmentID]
	if a == nil {
		return false, nil
	}
	if a.ChatID != nil && *a.ChatID != chatID {
		return false, nil
	}
	id := chatID
	a.ChatID = &id
	return true, nil
}

// Adapters narrowing fakeStore to the repository interfaces where the
// method sets collide on names.

type fakeChatRepo struct{ *fakeStore }

func (r fakeChatRepo) Create(ctx context.Context, p repository.CreateChatParams) (*models.Chat, error) {
	return r.CreateChat(ctx, p)
}

func (r fakeChatRepo) GetByID(ctx context.Context, chatID int64) (*models.Chat, error) {
	return r.GetChatByID(ctx, chatID)
}

type fakeMessageRepo struct{ *fakeStore }

func (r fakeMessageRepo) Create(ctx context.Context, chatID, authorID int64, body string, msgType models.MessageType, tags []string, attachments []int64) (*models.Message, error) {
	return r.CreateMessage(ctx, chatID, authorID, body, msgType, tags, attachments)
}

func (r fakeMessageRepo) GetByID(ctx context.Context, messageID int64) (*models.Message, error) {
	return r.GetMessageByID(ctx, messageID)
}

func (r fakeMessageRepo) Delete(ctx context.Context, messageID int64) error {
	return r.DeleteMessage(ctx, messageID)
}

type fakeAttachmentRepo struct{ *fakeStore }

func (r fakeAttachmentRepo) Create(ctx context.Context, a *models.Attachment) (*models.Attachment, error) {
	return r.CreateAttachment(ctx, a)
}

func (r fakeAttachmentRepo) GetByID(ctx context.Context, attachmentID int64) (*models.Attachment, error) {
	return r.GetAttachmentByID(ctx, attachmentID)
}

// nopDispatcher records fan-out invocations without delivering anything.
type nopDispatcher struct {
	created []int64
}

func (d *nopDispatcher) MessageCreated(ctx context.Context, chat *models.Chat, msg *models.Message) {
	d.created = append(d.created, msg.ID)
}

// fixture wires the full service layer over one fakeStore.
type fixture struct {
	store       *fakeStore
	blobs       *fakeBlobs
	dispatcher  *nopDispatcher
	users       *Users
	chats       *Chats
	messages    *Messages
	attachments *Attachments
}

func newFixture() *fixture {
	store := newFakeStore()
	blobs := &fakeBlobs{}
	dispatcher := &nopDispatcher{}
	logger := zap.NewNop()

	chatRepo := fakeChatRepo{store}
	messageRepo := fakeMessageRepo{store}
	attachmentRepo := fakeAttachmentRepo{store}

	perms := NewPerms(store)
	messages := NewMessages(messageRepo, chatRepo, attachmentRepo, perms, dispatcher, logger)
	chats := NewChats(chatRepo, store, store, perms, messages, logger)
	users := NewUsers(store, fakeCodes{}, logger)
	attachments := NewAttachments(attachmentRepo, blobs, perms)

	return &fixture{
		store:       store,
		blobs:       blobs,
		dispatcher:  dispatcher,
		users:       users,
		chats:       chats,
		messages:    messages,
		attachments: attachments,
	}
}

// fakeCodes always issues "123456" and accepts only that code.
type fakeCodes struct{}

func (fakeCodes) Issue(ctx context.Context, userID int64) (string, error) {
	return "123456", nil
}

func (fakeCodes) Confirm(ctx context.Context, userID int64, code string) error {
	if code != "123456" {
		return backend.ErrAuthentication
	}
	return nil
}

// fakeBlobs stores nothing, resolves every uri to itself and records
// removals.
type fakeBlobs struct {
	removed []string
}

func (b *fakeBlobs) Store(data []byte, name string) (string, error) { return "blob-" + name, nil }
func (b *fakeBlobs) Resolve(uri string) (string, error)             { return uri, nil }

func (b *fakeBlobs) Remove(uri string) error {
	b.removed = append(b.removed, uri)
	return nil
}
