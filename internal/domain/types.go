package domain

import (
	"strings"
	"time"
)

// Tab identifies one of the three conversation surfaces of the shell.
type Tab string

const (
	TabEcho    Tab = "echo"
	TabUser    Tab = "user"
	TabVisitor Tab = "visitor"
)

// ValidTab reports whether value names a known tab.
func ValidTab(value string) bool {
	switch Tab(value) {
	case TabEcho, TabUser, TabVisitor:
		return true
	default:
		return false
	}
}

// ThreadType classifies a conversation container.
type ThreadType string

const (
	ThreadEcho        ThreadType = "ai"
	ThreadTeamDM      ThreadType = "team-dm"
	ThreadTeamChannel ThreadType = "team-channel"
	ThreadVisitor     ThreadType = "visitor"
)

// Tab maps a thread type onto the shell tab that owns it. Both team thread
// types live under the user tab.
func (t ThreadType) Tab() Tab {
	switch t {
	case ThreadTeamDM, ThreadTeamChannel:
		return TabUser
	case ThreadVisitor:
		return TabVisitor
	default:
		return TabEcho
	}
}

// Recipient is the counterpart of a direct-message thread.
type Recipient struct {
	ID    string
	Name  string
	Email string
}

// Thread is a conversation container.
type Thread struct {
	ID             string
	Type           ThreadType
	Title          string
	LastActivityAt time.Time
	UnreadCount    int
	Pinned         bool
	Muted          bool
	Recipient      *Recipient
}

// DisplayTitle derives a presentable name when the title is absent.
func (t Thread) DisplayTitle() string {
	if title := strings.TrimSpace(t.Title); title != "" {
		return title
	}
	if t.Recipient != nil {
		if name := strings.TrimSpace(t.Recipient.Name); name != "" {
			return name
		}
		if email := strings.TrimSpace(t.Recipient.Email); email != "" {
			return email
		}
		if id := strings.TrimSpace(t.Recipient.ID); id != "" {
			return id
		}
	}
	if t.ID != "" {
		return t.ID
	}
	return "untitled"
}

// MessageStatus is the delivery state of a message. Transitions are monotonic
// in the order sending < sent < delivered < read, except failed, which
// permits retry back to sending.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// StatusFromFlags resolves possibly contradictory wire flags into exactly one
// status. Precedence: failed > sending > read > delivered > sent.
func StatusFromFlags(failed, sending, read, delivered bool) MessageStatus {
	switch {
	case failed:
		return StatusFailed
	case sending:
		return StatusSending
	case read:
		return StatusRead
	case delivered:
		return StatusDelivered
	default:
		return StatusSent
	}
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID   string
	Name string
	URL  string
	Size int64
}

// Message is one entry in a thread.
type Message struct {
	ID          string
	ThreadID    string
	SenderID    string
	SenderName  string
	Content     string
	CreatedAt   time.Time
	Status      MessageStatus
	Own         bool
	EditedAt    *time.Time
	DeletedAt   *time.Time
	Attachments []Attachment
	Reactions   map[string][]string
}

// Deleted reports whether the message has been tombstoned.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Editable reports whether the message may be edited in its domain. Echo
// messages are immutable; visitor messages support send/retry only.
func (m Message) Editable(t ThreadType) bool {
	switch t {
	case ThreadTeamDM, ThreadTeamChannel:
		return m.Own && !m.Deleted()
	default:
		return false
	}
}

// Deletable mirrors Editable: team-domain own messages only.
func (m Message) Deletable(t ThreadType) bool {
	return m.Editable(t)
}

// Reactable reports whether emoji reactions apply in this domain.
func (m Message) Reactable(t ThreadType) bool {
	switch t {
	case ThreadTeamDM, ThreadTeamChannel:
		return !m.Deleted()
	default:
		return false
	}
}

// Retryable reports whether the message is in a state a retry can act on.
func (m Message) Retryable() bool {
	return m.Status == StatusFailed
}

// Contact is a directory entry for starting direct messages.
type Contact struct {
	ID    string
	Name  string
	Email string
	IsAI  bool
}

// DisplayName prefers the human name over the email.
func (c Contact) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	if email := strings.TrimSpace(c.Email); email != "" {
		return email
	}
	return c.ID
}

// PresenceStatus is a user's availability in the team domain.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
	PresenceDND     PresenceStatus = "dnd"
)

// Presence is the availability of one team member.
type Presence struct {
	UserID string
	Status PresenceStatus
	DND    bool
}

// VisitorSession describes the live-chat counterpart of a visitor thread.
type VisitorSession struct {
	ThreadID    string
	VisitorID   string
	VisitorName string
	Email       string
	PageURL     string
	StartedAt   time.Time
	AgentID     string
}

// CannedResponse is a predefined reply available in the visitor domain.
type CannedResponse struct {
	ID       string
	Shortcut string
	Body     string
}

// HandoffRequest is one entry in the visitor agent-handoff queue.
type HandoffRequest struct {
	ThreadID    string
	VisitorName string
	Reason      string
	RequestedAt time.Time
}
