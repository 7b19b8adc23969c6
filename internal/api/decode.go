package api

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"unichat/internal/domain"
)

// ExtractThreadID pulls a thread id out of a tolerant response shape:
// thread_id, id, or data.thread_id (the envelope layer already strips one
// data level, so the nested form covers doubly-wrapped backends).
func ExtractThreadID(raw json.RawMessage) (string, error) {
	var shape struct {
		ThreadID string `json:"thread_id"`
		ID       string `json:"id"`
		Data     struct {
			ThreadID string `json:"thread_id"`
			ID       string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return "", &Error{Op: "extract thread id", Body: err.Error()}
	}
	for _, candidate := range []string{shape.ThreadID, shape.ID, shape.Data.ThreadID, shape.Data.ID} {
		if id := strings.TrimSpace(candidate); id != "" {
			return id, nil
		}
	}
	return "", errors.New("no thread id in response")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseWireTime(value string) time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func parseWireTimePtr(value string) *time.Time {
	parsed := parseWireTime(value)
	if parsed.IsZero() {
		return nil
	}
	return &parsed
}

type wireThread struct {
	ThreadID       string `json:"thread_id"`
	ID             string `json:"id"`
	Title          string `json:"title"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	LastActivityAt string `json:"last_activity_at"`
	UpdatedAt      string `json:"updated_at"`
	UnreadCount    int    `json:"unread_count"`
	Unread         int    `json:"unread"`
	Pinned         bool   `json:"pinned"`
	IsPinned       bool   `json:"is_pinned"`
	Muted          bool   `json:"muted"`
	IsMuted        bool   `json:"is_muted"`
	Recipient      *struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"recipient"`
}

func (w wireThread) decode(fallbackType domain.ThreadType) domain.Thread {
	threadType := fallbackType
	if domainType := normalizeThreadType(w.Type); domainType != "" {
		threadType = domainType
	}
	thread := domain.Thread{
		ID:             firstNonEmpty(w.ThreadID, w.ID),
		Type:           threadType,
		Title:          firstNonEmpty(w.Title, w.Name),
		LastActivityAt: parseWireTime(firstNonEmpty(w.LastActivityAt, w.UpdatedAt)),
		UnreadCount:    maxInt(0, maxInt(w.UnreadCount, w.Unread)),
		Pinned:         w.Pinned || w.IsPinned,
		Muted:          w.Muted || w.IsMuted,
	}
	if w.Recipient != nil {
		thread.Recipient = &domain.Recipient{ID: w.Recipient.ID, Name: w.Recipient.Name, Email: w.Recipient.Email}
	}
	return thread
}

func normalizeThreadType(value string) domain.ThreadType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ai", "echo":
		return domain.ThreadEcho
	case "team-dm", "dm", "direct":
		return domain.ThreadTeamDM
	case "team-channel", "channel":
		return domain.ThreadTeamChannel
	case "visitor", "live":
		return domain.ThreadVisitor
	default:
		return ""
	}
}

type wireMessage struct {
	MessageID   string              `json:"message_id"`
	ID          string              `json:"id"`
	ThreadID    string              `json:"thread_id"`
	SenderID    string              `json:"sender_id"`
	AuthorID    string              `json:"author_id"`
	SenderName  string              `json:"sender_name"`
	Content     string              `json:"content"`
	Body        string              `json:"body"`
	Text        string              `json:"text"`
	CreatedAt   string              `json:"created_at"`
	Status      string              `json:"status"`
	Failed      bool                `json:"failed"`
	Optimistic  bool                `json:"_optimistic"`
	ReadAt      string              `json:"read_at"`
	DeliveredAt string              `json:"delivered_at"`
	EditedAt    string              `json:"edited_at"`
	DeletedAt   string              `json:"deleted_at"`
	Attachments []wireAttachment    `json:"attachments"`
	Reactions   map[string][]string `json:"reactions"`
}

type wireAttachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

func (w wireMessage) decode(fallbackThreadID, currentUserID string) domain.Message {
	senderID := firstNonEmpty(w.SenderID, w.AuthorID)
	msg := domain.Message{
		ID:         firstNonEmpty(w.MessageID, w.ID),
		ThreadID:   firstNonEmpty(w.ThreadID, fallbackThreadID),
		SenderID:   senderID,
		SenderName: w.SenderName,
		Content:    firstNonEmpty(w.Content, w.Body, w.Text),
		CreatedAt:  parseWireTime(w.CreatedAt),
		Own:        currentUserID != "" && senderID == currentUserID,
		EditedAt:   parseWireTimePtr(w.EditedAt),
		DeletedAt:  parseWireTimePtr(w.DeletedAt),
		Reactions:  w.Reactions,
	}
	for _, att := range w.Attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{ID: att.ID, Name: att.Name, URL: att.URL, Size: att.Size})
	}
	msg.Status = resolveStatus(w)
	return msg
}

// resolveStatus collapses the tolerant status signals into one value by the
// fixed precedence: failed > sending > read > delivered > sent.
func resolveStatus(w wireMessage) domain.MessageStatus {
	failed := w.Failed || strings.EqualFold(w.Status, string(domain.StatusFailed))
	sending := w.Optimistic || strings.EqualFold(w.Status, string(domain.StatusSending))
	read := strings.TrimSpace(w.ReadAt) != "" || strings.EqualFold(w.Status, string(domain.StatusRead))
	delivered := strings.TrimSpace(w.DeliveredAt) != "" || strings.EqualFold(w.Status, string(domain.StatusDelivered))
	return domain.StatusFromFlags(failed, sending, read, delivered)
}

type wireContact struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	IsAI      bool   `json:"is_ai"`
	AIManaged bool   `json:"ai_managed"`
}

func (w wireContact) decode() domain.Contact {
	return domain.Contact{
		ID:    firstNonEmpty(w.ID, w.UserID),
		Name:  firstNonEmpty(w.Name, w.FullName),
		Email: w.Email,
		IsAI:  w.IsAI || w.AIManaged,
	}
}

type wirePresence struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
	Status string `json:"status"`
	DND    bool   `json:"dnd"`
}

func (w wirePresence) decode() domain.Presence {
	status := domain.PresenceStatus(strings.ToLower(strings.TrimSpace(w.Status)))
	switch status {
	case domain.PresenceOnline, domain.PresenceAway, domain.PresenceOffline, domain.PresenceDND:
	default:
		status = domain.PresenceOffline
	}
	return domain.Presence{
		UserID: firstNonEmpty(w.UserID, w.ID),
		Status: status,
		DND:    w.DND || status == domain.PresenceDND,
	}
}

type wireHandoff struct {
	ThreadID    string `json:"thread_id"`
	ID          string `json:"id"`
	VisitorName string `json:"visitor_name"`
	Reason      string `json:"reason"`
	RequestedAt string `json:"requested_at"`
}

func (w wireHandoff) decode() domain.HandoffRequest {
	return domain.HandoffRequest{
		ThreadID:    firstNonEmpty(w.ThreadID, w.ID),
		VisitorName: w.VisitorName,
		Reason:      w.Reason,
		RequestedAt: parseWireTime(w.RequestedAt),
	}
}

type wireSession struct {
	ThreadID    string `json:"thread_id"`
	VisitorID   string `json:"visitor_id"`
	VisitorName string `json:"visitor_name"`
	Email       string `json:"email"`
	PageURL     string `json:"page_url"`
	StartedAt   string `json:"started_at"`
	AgentID     string `json:"agent_id"`
}

func (w wireSession) decode(fallbackThreadID string) domain.VisitorSession {
	return domain.VisitorSession{
		ThreadID:    firstNonEmpty(w.ThreadID, fallbackThreadID),
		VisitorID:   w.VisitorID,
		VisitorName: w.VisitorName,
		Email:       w.Email,
		PageURL:     w.PageURL,
		StartedAt:   parseWireTime(w.StartedAt),
		AgentID:     w.AgentID,
	}
}

type wireCanned struct {
	ID       string `json:"id"`
	Shortcut string `json:"shortcut"`
	Body     string `json:"body"`
	Text     string `json:"text"`
}

func (w wireCanned) decode() domain.CannedResponse {
	return domain.CannedResponse{
		ID:       w.ID,
		Shortcut: w.Shortcut,
		Body:     firstNonEmpty(w.Body, w.Text),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
