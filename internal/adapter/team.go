package adapter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"unichat/internal/api"
	"unichat/internal/domain"
)

// Team is the team-chat adapter: channels and DMs over the REST
// collaborator. Presence and mention caches are domain-scoped and cleared
// when the domain is backgrounded.
type Team struct {
	store

	client   *api.Client
	log      *zap.Logger
	userID   string
	userName string

	// guarded by store.mu
	connected bool
	presence  map[string]domain.Presence
	typing    map[string]time.Time
	replies   map[string][]domain.Message
	dnd       bool
}

// NewTeam builds the team adapter.
func NewTeam(client *api.Client, userID, userName string, log *zap.Logger) *Team {
	if log == nil {
		log = zap.NewNop()
	}
	return &Team{
		client:   client,
		log:      log.Named("team"),
		userID:   userID,
		userName: userName,
		presence: map[string]domain.Presence{},
		typing:   map[string]time.Time{},
		replies:  map[string][]domain.Message{},
	}
}

func (t *Team) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Team) setConnected(ok bool) {
	t.mu.Lock()
	t.connected = ok
	t.mu.Unlock()
}

// Threads returns the domain's full thread collection: channels and DMs
// together; the aggregator partitions them for display.
func (t *Team) Threads(ctx context.Context) ([]domain.Thread, error) {
	channels, err := t.client.FetchThreads(ctx, domain.ThreadTeamChannel)
	if err != nil {
		t.setConnected(false)
		return nil, err
	}
	dms, err := t.client.FetchThreads(ctx, domain.ThreadTeamDM)
	if err != nil {
		t.setConnected(false)
		return nil, err
	}
	t.setConnected(true)
	return append(channels, dms...), nil
}

// LoadThread fetches a thread's messages and clears its unread counter.
func (t *Team) LoadThread(ctx context.Context, id string) error {
	t.setLoading(true)
	defer t.setLoading(false)

	messages, err := t.client.FetchMessages(ctx, id, t.userID)
	if err != nil {
		t.setConnected(false)
		return err
	}
	t.setConnected(true)

	thread := t.findThread(ctx, id)
	t.setThread(thread, messages)
	if err := t.client.MarkRead(ctx, id); err != nil {
		// Read receipts are cosmetic; the thread still loads.
		t.log.Debug("mark read failed", zap.String("thread", id), zap.Error(err))
	}
	return nil
}

func (t *Team) findThread(ctx context.Context, id string) domain.Thread {
	threads, err := t.Threads(ctx)
	if err == nil {
		for _, thread := range threads {
			if thread.ID == id {
				thread.UnreadCount = 0
				return thread
			}
		}
	}
	return domain.Thread{ID: id, Type: domain.ThreadTeamChannel}
}

// RefreshMessages re-fetches the active thread, keeping pending optimistic
// entries the backend does not know yet.
func (t *Team) RefreshMessages(ctx context.Context) error {
	thread := t.Thread()
	if thread == nil {
		return nil
	}
	messages, err := t.client.FetchMessages(ctx, thread.ID, t.userID)
	if err != nil {
		t.setConnected(false)
		return err
	}
	t.setConnected(true)
	t.replaceMessages(thread.ID, messages)
	return nil
}

func (t *Team) SendMessage(content string, attachments []domain.Attachment) domain.Message {
	threadID := ""
	if thread := t.Thread(); thread != nil {
		threadID = thread.ID
	}
	return t.appendOptimistic(threadID, t.userID, t.userName, content, attachments)
}

func (t *Team) DeliverMessage(ctx context.Context, id string) error {
	msg, ok := t.message(id)
	if !ok {
		return fmt.Errorf("no pending message %s", id)
	}
	stored, err := t.client.PostMessage(ctx, msg.ThreadID, msg.Content, msg.Attachments)
	if err != nil {
		t.markStatus(id, domain.StatusFailed)
		return err
	}
	t.reconcile(id, stored)
	return nil
}

// reconcile adopts the server copy of an optimistic entry in place: same
// position, server id and status, no duplicate row.
func (t *Team) reconcile(localID string, stored domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.messages {
		if t.messages[i].ID == localID {
			if stored.ID != "" {
				t.messages[i].ID = stored.ID
			}
			status := stored.Status
			if status == "" || status == domain.StatusSending {
				status = domain.StatusSent
			}
			t.messages[i].Status = status
			t.messages[i].Own = true
			return
		}
	}
}

func (t *Team) RetryMessage(ctx context.Context, id string) error {
	msg, ok := t.message(id)
	if !ok {
		return fmt.Errorf("no message %s", id)
	}
	if !msg.Retryable() {
		return fmt.Errorf("message %s is not retryable", id)
	}
	t.markStatus(id, domain.StatusSending)
	return t.DeliverMessage(ctx, id)
}

// CreateThread opens a DM, creates a channel, or joins one, depending on
// which config field is set.
func (t *Team) CreateThread(ctx context.Context, cfg ThreadConfig) (string, error) {
	switch {
	case cfg.RecipientID != "":
		return t.client.CreateDM(ctx, cfg.RecipientID)
	case cfg.ChannelName != "":
		return t.client.CreateChannel(ctx, cfg.ChannelName)
	case cfg.JoinThreadID != "":
		return t.client.JoinChannel(ctx, cfg.JoinThreadID)
	default:
		return "", fmt.Errorf("empty thread config")
	}
}

// EditMessage replaces a team message's content.
func (t *Team) EditMessage(ctx context.Context, messageID, content string) error {
	thread := t.Thread()
	if thread == nil {
		return fmt.Errorf("no active thread")
	}
	if err := t.client.EditMessage(ctx, thread.ID, messageID, content); err != nil {
		return err
	}
	now := time.Now()
	t.mu.Lock()
	for i := range t.messages {
		if t.messages[i].ID == messageID {
			t.messages[i].Content = content
			t.messages[i].EditedAt = &now
		}
	}
	t.mu.Unlock()
	return nil
}

// DeleteMessage tombstones a team message locally and remotely.
func (t *Team) DeleteMessage(ctx context.Context, messageID string) error {
	thread := t.Thread()
	if thread == nil {
		return fmt.Errorf("no active thread")
	}
	if err := t.client.DeleteMessage(ctx, thread.ID, messageID); err != nil {
		return err
	}
	now := time.Now()
	t.mu.Lock()
	for i := range t.messages {
		if t.messages[i].ID == messageID {
			t.messages[i].DeletedAt = &now
		}
	}
	t.mu.Unlock()
	return nil
}

// MarkAsRead clears the active thread's unread counter.
func (t *Team) MarkAsRead(ctx context.Context) error {
	thread := t.Thread()
	if thread == nil {
		return nil
	}
	if err := t.client.MarkRead(ctx, thread.ID); err != nil {
		return err
	}
	t.mu.Lock()
	if t.thread != nil {
		t.thread.UnreadCount = 0
	}
	t.mu.Unlock()
	return nil
}

// StartTyping reports the current user typing on the active thread.
func (t *Team) StartTyping(ctx context.Context) error {
	thread := t.Thread()
	if thread == nil {
		return nil
	}
	return t.client.SetTyping(ctx, thread.ID, true)
}

// StopTyping clears the current user's typing state.
func (t *Team) StopTyping(ctx context.Context) error {
	thread := t.Thread()
	if thread == nil {
		return nil
	}
	return t.client.SetTyping(ctx, thread.ID, false)
}

// AddReaction attaches an emoji to a message, optimistically mirrored.
func (t *Team) AddReaction(ctx context.Context, messageID, emoji string) error {
	thread := t.Thread()
	if thread == nil {
		return fmt.Errorf("no active thread")
	}
	if err := t.client.React(ctx, thread.ID, messageID, emoji); err != nil {
		return err
	}
	t.mu.Lock()
	for i := range t.messages {
		if t.messages[i].ID == messageID {
			if t.messages[i].Reactions == nil {
				t.messages[i].Reactions = map[string][]string{}
			}
			t.messages[i].Reactions[emoji] = appendUnique(t.messages[i].Reactions[emoji], t.userID)
		}
	}
	t.mu.Unlock()
	return nil
}

// RemoveReaction removes the current user's emoji from a message.
func (t *Team) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	thread := t.Thread()
	if thread == nil {
		return fmt.Errorf("no active thread")
	}
	if err := t.client.Unreact(ctx, thread.ID, messageID, emoji); err != nil {
		return err
	}
	t.mu.Lock()
	for i := range t.messages {
		if t.messages[i].ID == messageID {
			if t.messages[i].Reactions == nil {
				continue
			}
			t.messages[i].Reactions[emoji] = removeValue(t.messages[i].Reactions[emoji], t.userID)
			if len(t.messages[i].Reactions[emoji]) == 0 {
				delete(t.messages[i].Reactions, emoji)
			}
		}
	}
	t.mu.Unlock()
	return nil
}

// LoadReplies fetches and caches a message's reply thread.
func (t *Team) LoadReplies(ctx context.Context, messageID string) ([]domain.Message, error) {
	thread := t.Thread()
	if thread == nil {
		return nil, fmt.Errorf("no active thread")
	}
	replies, err := t.client.FetchReplies(ctx, thread.ID, messageID, t.userID)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.replies[messageID] = replies
	t.mu.Unlock()
	return replies, nil
}

// RefreshPresence re-fetches presence for the given users into the
// domain-scoped cache.
func (t *Team) RefreshPresence(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	entries, err := t.client.GetPresence(ctx, userIDs)
	if err != nil {
		return err
	}
	t.mu.Lock()
	for _, entry := range entries {
		t.presence[entry.UserID] = entry
	}
	t.mu.Unlock()
	return nil
}

// PresenceFor reads the cached presence for one user.
func (t *Team) PresenceFor(userID string) (domain.Presence, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.presence[userID]
	return entry, ok
}

// SetPresenceDND toggles the current user's do-not-disturb state.
func (t *Team) SetPresenceDND(ctx context.Context, enabled bool) error {
	if err := t.client.SetDND(ctx, enabled); err != nil {
		return err
	}
	t.mu.Lock()
	t.dnd = enabled
	t.mu.Unlock()
	return nil
}

// DND reports the locally tracked do-not-disturb state.
func (t *Team) DND() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dnd
}

// NoteTyping records that a user is typing on the active thread; entries
// expire after a few seconds.
func (t *Team) NoteTyping(userID string, at time.Time) {
	t.mu.Lock()
	t.typing[userID] = at
	t.mu.Unlock()
}

// TypingUsers lists users typing within the expiry window.
func (t *Team) TypingUsers(now time.Time) []string {
	const typingWindow = 5 * time.Second
	t.mu.Lock()
	defer t.mu.Unlock()
	var names []string
	for userID, at := range t.typing {
		if now.Sub(at) <= typingWindow {
			names = append(names, userID)
		} else {
			delete(t.typing, userID)
		}
	}
	sort.Strings(names)
	return names
}

// ClearCaches drops the domain-scoped presence and typing caches; called
// when the domain is backgrounded.
func (t *Team) ClearCaches() {
	t.mu.Lock()
	t.presence = map[string]domain.Presence{}
	t.typing = map[string]time.Time{}
	t.mu.Unlock()
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}

func removeValue(values []string, value string) []string {
	out := values[:0]
	for _, existing := range values {
		if existing != value {
			out = append(out, existing)
		}
	}
	return out
}
