package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"unichat/internal/api"
	"unichat/internal/domain"
)

// Visitor is the live-chat adapter: each visitor session maps to one
// thread. Agents reply and retry; editing, deleting, and reactions do not
// exist in this domain.
type Visitor struct {
	store

	client    *api.Client
	log       *zap.Logger
	agentID   string
	agentName string

	// guarded by store.mu
	connected bool
	session   *domain.VisitorSession
	canned    []domain.CannedResponse
	handoffs  []domain.HandoffRequest
	typing    map[string]time.Time
}

// NewVisitor builds the visitor adapter for the signed-in agent.
func NewVisitor(client *api.Client, agentID, agentName string, log *zap.Logger) *Visitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Visitor{
		client:    client,
		log:       log.Named("visitor"),
		agentID:   agentID,
		agentName: agentName,
		typing:    map[string]time.Time{},
	}
}

func (v *Visitor) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}

func (v *Visitor) setConnected(ok bool) {
	v.mu.Lock()
	v.connected = ok
	v.mu.Unlock()
}

// Threads lists active visitor sessions as threads.
func (v *Visitor) Threads(ctx context.Context) ([]domain.Thread, error) {
	threads, err := v.client.FetchThreads(ctx, domain.ThreadVisitor)
	if err != nil {
		v.setConnected(false)
		return nil, err
	}
	v.setConnected(true)
	return threads, nil
}

// LoadThread opens a visitor session: messages plus the session details
// shown in the header.
func (v *Visitor) LoadThread(ctx context.Context, id string) error {
	v.setLoading(true)
	defer v.setLoading(false)

	messages, err := v.client.FetchMessages(ctx, id, v.agentID)
	if err != nil {
		v.setConnected(false)
		return err
	}
	v.setConnected(true)

	thread := domain.Thread{ID: id, Type: domain.ThreadVisitor}
	if threads, terr := v.Threads(ctx); terr == nil {
		for _, candidate := range threads {
			if candidate.ID == id {
				thread = candidate
				break
			}
		}
	}
	v.setThread(thread, messages)

	session, err := v.client.FetchSession(ctx, id)
	if err != nil {
		v.log.Debug("session fetch failed", zap.String("thread", id), zap.Error(err))
		session = domain.VisitorSession{ThreadID: id}
	}
	v.mu.Lock()
	v.session = &session
	v.mu.Unlock()
	return nil
}

// Session returns the loaded session details for the active thread.
func (v *Visitor) Session() *domain.VisitorSession {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return nil
	}
	copied := *v.session
	return &copied
}

// RefreshMessages re-fetches the active session's messages, keeping
// pending optimistic entries.
func (v *Visitor) RefreshMessages(ctx context.Context) error {
	thread := v.Thread()
	if thread == nil {
		return nil
	}
	messages, err := v.client.FetchMessages(ctx, thread.ID, v.agentID)
	if err != nil {
		v.setConnected(false)
		return err
	}
	v.setConnected(true)
	v.replaceMessages(thread.ID, messages)
	return nil
}

func (v *Visitor) SendMessage(content string, attachments []domain.Attachment) domain.Message {
	threadID := ""
	if thread := v.Thread(); thread != nil {
		threadID = thread.ID
	}
	return v.appendOptimistic(threadID, v.agentID, v.agentName, content, attachments)
}

func (v *Visitor) DeliverMessage(ctx context.Context, id string) error {
	msg, ok := v.message(id)
	if !ok {
		return fmt.Errorf("no pending message %s", id)
	}
	stored, err := v.client.PostMessage(ctx, msg.ThreadID, msg.Content, msg.Attachments)
	if err != nil {
		v.markStatus(id, domain.StatusFailed)
		return err
	}
	v.mu.Lock()
	for i := range v.messages {
		if v.messages[i].ID == id {
			if stored.ID != "" {
				v.messages[i].ID = stored.ID
			}
			status := stored.Status
			if status == "" || status == domain.StatusSending {
				status = domain.StatusSent
			}
			v.messages[i].Status = status
		}
	}
	v.mu.Unlock()
	return nil
}

func (v *Visitor) RetryMessage(ctx context.Context, id string) error {
	msg, ok := v.message(id)
	if !ok {
		return fmt.Errorf("no message %s", id)
	}
	if !msg.Retryable() {
		return fmt.Errorf("message %s is not retryable", id)
	}
	v.markStatus(id, domain.StatusSending)
	return v.DeliverMessage(ctx, id)
}

// CreateThread is not supported: visitor sessions are opened by visitors,
// never by agents.
func (v *Visitor) CreateThread(ctx context.Context, cfg ThreadConfig) (string, error) {
	return "", fmt.Errorf("visitor sessions cannot be created from the shell")
}

// LastFailedMessageID returns the most recent failed message in the
// active session, or empty.
func (v *Visitor) LastFailedMessageID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.messages) - 1; i >= 0; i-- {
		if v.messages[i].Status == domain.StatusFailed {
			return v.messages[i].ID
		}
	}
	return ""
}

// SetAgentTyping reports the agent's typing state to the visitor widget.
func (v *Visitor) SetAgentTyping(ctx context.Context, typing bool) error {
	thread := v.Thread()
	if thread == nil {
		return nil
	}
	return v.client.SetAgentTyping(ctx, thread.ID, typing)
}

// NoteTyping records visitor typing on the active session.
func (v *Visitor) NoteTyping(visitorID string, at time.Time) {
	v.mu.Lock()
	v.typing[visitorID] = at
	v.mu.Unlock()
}

// TypingUsers lists visitors typing within the expiry window.
func (v *Visitor) TypingUsers(now time.Time) []string {
	const typingWindow = 5 * time.Second
	v.mu.Lock()
	defer v.mu.Unlock()
	var names []string
	for id, at := range v.typing {
		if now.Sub(at) <= typingWindow {
			names = append(names, id)
		} else {
			delete(v.typing, id)
		}
	}
	return names
}

// RefreshCannedResponses loads the canned-response catalog.
func (v *Visitor) RefreshCannedResponses(ctx context.Context) error {
	canned, err := v.client.FetchCannedResponses(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.canned = canned
	v.mu.Unlock()
	return nil
}

// CannedResponses returns the cached catalog.
func (v *Visitor) CannedResponses() []domain.CannedResponse {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.CannedResponse, len(v.canned))
	copy(out, v.canned)
	return out
}

// CannedByShortcut resolves a shortcut like "hi" to its body.
func (v *Visitor) CannedByShortcut(shortcut string) (domain.CannedResponse, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, response := range v.canned {
		if response.Shortcut == shortcut {
			return response, true
		}
	}
	return domain.CannedResponse{}, false
}

// RefreshHandoffQueue polls the agent-handoff queue.
func (v *Visitor) RefreshHandoffQueue(ctx context.Context) error {
	handoffs, err := v.client.FetchHandoffQueue(ctx)
	if err != nil {
		v.setConnected(false)
		return err
	}
	v.setConnected(true)
	v.mu.Lock()
	v.handoffs = handoffs
	v.mu.Unlock()
	return nil
}

// HandoffQueue returns the cached handoff requests.
func (v *Visitor) HandoffQueue() []domain.HandoffRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.HandoffRequest, len(v.handoffs))
	copy(out, v.handoffs)
	return out
}
