// Package adapter holds the three conversation backends behind one
// contract. The shell treats them as black boxes: it never assumes a
// transport, only this interface, which is what lets one shell multiplex
// heterogeneous domains. Adding a fourth domain means implementing
// Conversation, nothing more.
package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"unichat/internal/domain"
)

// ThreadConfig describes what CreateThread should open: exactly one field
// is set per call.
type ThreadConfig struct {
	RecipientID  string // open/reuse a DM with this contact
	ChannelName  string // create a channel with this name
	JoinThreadID string // join an existing channel by id
}

// Conversation is the adapter contract every domain implements.
//
// SendMessage is synchronous and cheap: it appends an optimistic entry with
// status sending and returns it, so the UI shows the message immediately.
// DeliverMessage performs the network send and reconciles the entry to
// sent or failed in place. RetryMessage re-submits a failed entry through
// sending without creating a duplicate and without moving it.
type Conversation interface {
	Thread() *domain.Thread
	Messages() []domain.Message
	Loading() bool
	Connected() bool
	Threads(ctx context.Context) ([]domain.Thread, error)
	LoadThread(ctx context.Context, id string) error
	SendMessage(content string, attachments []domain.Attachment) domain.Message
	DeliverMessage(ctx context.Context, id string) error
	RetryMessage(ctx context.Context, id string) error
	CreateThread(ctx context.Context, cfg ThreadConfig) (string, error)
}

// store is the mutex-guarded thread/message state every adapter embeds.
// Delivery commands resolve on other goroutines; the shell only ever reads
// snapshots.
type store struct {
	mu       sync.Mutex
	thread   *domain.Thread
	messages []domain.Message
	loading  bool
}

func (s *store) Thread() *domain.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thread == nil {
		return nil
	}
	copied := *s.thread
	return &copied
}

func (s *store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *store) setLoading(value bool) {
	s.mu.Lock()
	s.loading = value
	s.mu.Unlock()
}

func (s *store) setThread(thread domain.Thread, messages []domain.Message) {
	s.mu.Lock()
	s.thread = &thread
	s.messages = messages
	s.mu.Unlock()
}

// appendOptimistic creates the pending entry for an outgoing message.
func (s *store) appendOptimistic(threadID, senderID, senderName, content string, attachments []domain.Attachment) domain.Message {
	msg := domain.Message{
		ID:          uuid.NewString(),
		ThreadID:    threadID,
		SenderID:    senderID,
		SenderName:  senderName,
		Content:     content,
		CreatedAt:   time.Now(),
		Status:      domain.StatusSending,
		Own:         true,
		Attachments: attachments,
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	if s.thread != nil {
		s.thread.LastActivityAt = msg.CreatedAt
	}
	s.mu.Unlock()
	return msg
}

func (s *store) appendMessage(msg domain.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	if s.thread != nil && msg.CreatedAt.After(s.thread.LastActivityAt) {
		s.thread.LastActivityAt = msg.CreatedAt
	}
	s.mu.Unlock()
}

// markStatus flips a message's status in place, preserving its position.
func (s *store) markStatus(id string, status domain.MessageStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Status = status
			return true
		}
	}
	return false
}

func (s *store) message(id string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return domain.Message{}, false
}

// replaceMessages swaps the message slice, keeping any still-pending or
// failed optimistic entries that the backend does not know about yet so a
// refresh cannot drop an in-flight send.
func (s *store) replaceMessages(threadID string, fresh []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thread == nil || s.thread.ID != threadID {
		return
	}
	known := make(map[string]struct{}, len(fresh))
	for _, msg := range fresh {
		known[msg.ID] = struct{}{}
	}
	for _, msg := range s.messages {
		if msg.Status != domain.StatusSending && msg.Status != domain.StatusFailed {
			continue
		}
		if _, ok := known[msg.ID]; !ok {
			fresh = append(fresh, msg)
		}
	}
	s.messages = fresh
}
