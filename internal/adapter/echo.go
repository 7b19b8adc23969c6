package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"unichat/internal/api"
	"unichat/internal/domain"
)

const echoSenderID = "echo"

// StreamEvent is a push update from the echo adapter while an assistant
// reply is streaming.
type StreamEvent struct {
	ThreadID string
	Delta    string
	Done     bool
	Err      error
}

// streamFunc runs one completion over the given history, invoking onDelta
// for each partial chunk, and returns the full reply.
type streamFunc func(ctx context.Context, history []openai.ChatCompletionMessage, onDelta func(string)) (string, error)

// Echo is the AI conversation adapter. Replies stream; StreamingContent
// exposes the partial text while IsStreaming is true. Echo threads live
// locally for the session; messages are immutable once sent.
type Echo struct {
	store

	complete  streamFunc
	feedback  *api.Client
	log       *zap.Logger
	userID    string
	userName  string
	systemMsg string

	events chan StreamEvent

	// guarded by store.mu
	threads   []domain.Thread
	histories map[string][]domain.Message
	streaming bool
	streamBuf strings.Builder
	lastErr   string
}

// NewEcho builds the AI adapter over a go-openai streaming client.
func NewEcho(client *openai.Client, model string, feedback *api.Client, userID, userName string, log *zap.Logger) *Echo {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Echo{
		feedback:  feedback,
		log:       log.Named("echo"),
		userID:    userID,
		userName:  userName,
		systemMsg: "You are Echo, the assistant inside a marketing portal. Keep replies concise and concrete.",
		events:    make(chan StreamEvent, 64),
		histories: map[string][]domain.Message{},
	}
	e.complete = func(ctx context.Context, history []openai.ChatCompletionMessage, onDelta func(string)) (string, error) {
		stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    model,
			Messages: history,
			Stream:   true,
		})
		if err != nil {
			return "", fmt.Errorf("open completion stream: %w", err)
		}
		defer stream.Close()
		var full strings.Builder
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return full.String(), fmt.Errorf("completion stream: %w", err)
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			onDelta(delta)
		}
		return full.String(), nil
	}
	return e
}

// Events is the push channel for streaming deltas. The shell re-arms a wait
// command on it while the echo tab is foregrounded.
func (e *Echo) Events() <-chan StreamEvent {
	return e.events
}

func (e *Echo) emit(event StreamEvent) {
	select {
	case e.events <- event:
	default:
	}
}

// IsStreaming reports whether an assistant reply is in flight.
func (e *Echo) IsStreaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streaming
}

// StreamingContent is the partial assistant text accumulated so far.
func (e *Echo) StreamingContent() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streamBuf.String()
}

// LastError is the inline error text for the message view, empty when the
// last run succeeded.
func (e *Echo) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Echo) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr == ""
}

// Threads lists the session's local AI conversations, most recent first
// ordering left to the aggregator.
func (e *Echo) Threads(ctx context.Context) ([]domain.Thread, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Thread, len(e.threads))
	copy(out, e.threads)
	return out, nil
}

// CreateThread starts a fresh AI conversation. Only the zero config is
// meaningful for this domain.
func (e *Echo) CreateThread(ctx context.Context, cfg ThreadConfig) (string, error) {
	thread := domain.Thread{
		ID:             uuid.NewString(),
		Type:           domain.ThreadEcho,
		Title:          "New conversation",
		LastActivityAt: time.Now(),
	}
	e.mu.Lock()
	e.threads = append(e.threads, thread)
	e.histories[thread.ID] = nil
	e.mu.Unlock()
	return thread.ID, nil
}

// LoadThread activates a conversation, stashing the previous one's history.
func (e *Echo) LoadThread(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.thread != nil {
		e.histories[e.thread.ID] = e.messages
	}
	for _, thread := range e.threads {
		if thread.ID == id {
			copied := thread
			e.thread = &copied
			e.messages = e.histories[id]
			return nil
		}
	}
	return fmt.Errorf("unknown conversation %s", id)
}

func (e *Echo) SendMessage(content string, attachments []domain.Attachment) domain.Message {
	e.ensureThread()
	threadID := ""
	if t := e.Thread(); t != nil {
		threadID = t.ID
	}
	return e.appendOptimistic(threadID, e.userID, e.userName, content, attachments)
}

func (e *Echo) ensureThread() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.thread != nil {
		return
	}
	thread := domain.Thread{
		ID:             uuid.NewString(),
		Type:           domain.ThreadEcho,
		Title:          "New conversation",
		LastActivityAt: time.Now(),
	}
	e.threads = append(e.threads, thread)
	e.thread = &thread
	e.messages = nil
}

// DeliverMessage streams the assistant reply for a pending user message.
// The user entry flips to sent once the stream opens; a hard error marks it
// failed and surfaces inline without tearing anything else down.
func (e *Echo) DeliverMessage(ctx context.Context, id string) error {
	msg, ok := e.message(id)
	if !ok {
		return fmt.Errorf("no pending message %s", id)
	}
	history := e.buildHistory()

	e.mu.Lock()
	e.streaming = true
	e.streamBuf.Reset()
	e.lastErr = ""
	threadID := msg.ThreadID
	e.mu.Unlock()

	reply, err := e.complete(ctx, history, func(delta string) {
		e.mu.Lock()
		e.streamBuf.WriteString(delta)
		e.mu.Unlock()
		e.emit(StreamEvent{ThreadID: threadID, Delta: delta})
	})

	e.mu.Lock()
	e.streaming = false
	e.streamBuf.Reset()
	e.mu.Unlock()

	if err != nil {
		e.markStatus(id, domain.StatusFailed)
		e.mu.Lock()
		e.lastErr = err.Error()
		e.mu.Unlock()
		e.log.Warn("completion failed", zap.Error(err))
		e.emit(StreamEvent{ThreadID: threadID, Done: true, Err: err})
		return err
	}

	e.markStatus(id, domain.StatusSent)
	e.appendMessage(domain.Message{
		ID:         uuid.NewString(),
		ThreadID:   threadID,
		SenderID:   echoSenderID,
		SenderName: "Echo",
		Content:    reply,
		CreatedAt:  time.Now(),
		Status:     domain.StatusSent,
	})
	e.retitleFromFirstPrompt(threadID)
	e.emit(StreamEvent{ThreadID: threadID, Done: true})
	return nil
}

// RetryMessage re-runs a failed send in place.
func (e *Echo) RetryMessage(ctx context.Context, id string) error {
	msg, ok := e.message(id)
	if !ok {
		return fmt.Errorf("no message %s", id)
	}
	if !msg.Retryable() {
		return fmt.Errorf("message %s is not retryable", id)
	}
	e.markStatus(id, domain.StatusSending)
	return e.DeliverMessage(ctx, id)
}

// SendFeedback records a thumbs rating for an assistant message.
func (e *Echo) SendFeedback(ctx context.Context, messageID string, positive bool) error {
	if e.feedback == nil {
		return errors.New("feedback endpoint not configured")
	}
	return e.feedback.SendFeedback(ctx, messageID, positive)
}

func (e *Echo) buildHistory() []openai.ChatCompletionMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	history := make([]openai.ChatCompletionMessage, 0, len(e.messages)+1)
	history = append(history, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: e.systemMsg})
	for _, msg := range e.messages {
		if msg.Status == domain.StatusFailed {
			continue
		}
		role := openai.ChatMessageRoleAssistant
		if msg.Own {
			role = openai.ChatMessageRoleUser
		}
		history = append(history, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return history
}

// retitleFromFirstPrompt names untitled conversations after their first
// user message so the sidebar stays scannable.
func (e *Echo) retitleFromFirstPrompt(threadID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var first string
	for _, msg := range e.messages {
		if msg.Own {
			first = msg.Content
			break
		}
	}
	if first == "" {
		return
	}
	title := first
	if len(title) > 48 {
		title = title[:45] + "..."
	}
	for i := range e.threads {
		if e.threads[i].ID == threadID {
			if e.threads[i].Title == "" || e.threads[i].Title == "New conversation" {
				e.threads[i].Title = title
			}
			e.threads[i].LastActivityAt = time.Now()
		}
	}
	if e.thread != nil && e.thread.ID == threadID && (e.thread.Title == "" || e.thread.Title == "New conversation") {
		e.thread.Title = title
	}
}
