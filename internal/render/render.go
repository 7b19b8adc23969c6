// Package render holds the message-presentation primitives shared by every
// conversation domain: calendar-date grouping, avatar suppression, the
// unread divider, and status iconography.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"unichat/internal/domain"
)

// Group is a run of messages sharing one local calendar date.
type Group struct {
	Date     time.Time
	Label    string
	Messages []domain.Message
}

// GroupByDate splits a message sequence into calendar-date groups using
// local date boundaries: exactly one group per distinct date, whatever the
// input order. Groups appear in first-occurrence order; message order inside
// a group is preserved, never re-sorted by timestamp.
func GroupByDate(messages []domain.Message, now time.Time) []Group {
	var groups []Group
	byDate := map[time.Time]int{}
	for _, msg := range messages {
		day := dateOf(msg.CreatedAt.Local())
		i, seen := byDate[day]
		if !seen {
			i = len(groups)
			byDate[day] = i
			groups = append(groups, Group{Date: day, Label: DayLabel(day, now)})
		}
		groups[i].Messages = append(groups[i].Messages, msg)
	}
	return groups
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayLabel formats a date-separator header.
func DayLabel(day, now time.Time) string {
	today := dateOf(now.Local())
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("Jan 2, 2006")
	}
}

// ShowAvatar reports whether the message at index i inside a group should
// repeat the sender avatar/name. True only when it is the first of the group
// or the previous message has a different sender.
func ShowAvatar(group []domain.Message, i int) bool {
	if i < 0 || i >= len(group) {
		return false
	}
	if i == 0 {
		return true
	}
	return group[i-1].SenderID != group[i].SenderID
}

// UnreadDividerIndex maps an unread count onto the index of the first unread
// message, or -1 when there is nothing unread.
func UnreadDividerIndex(total, unread int) int {
	if unread <= 0 || total <= 0 {
		return -1
	}
	if unread >= total {
		return 0
	}
	return total - unread
}

// StatusIcon returns the single indicator for a message status. Exactly one
// icon is shown, chosen by precedence; domain.StatusFromFlags performs the
// flag collapse upstream.
func StatusIcon(status domain.MessageStatus) string {
	switch status {
	case domain.StatusFailed:
		return "!"
	case domain.StatusSending:
		return "…"
	case domain.StatusRead:
		return "✓✓"
	case domain.StatusDelivered:
		return "✓·"
	default:
		return "✓"
	}
}

// TypingLine formats a typing indicator for one or more names.
func TypingLine(names []string) string {
	trimmed := make([]string, 0, len(names))
	for _, name := range names {
		if value := strings.TrimSpace(name); value != "" {
			trimmed = append(trimmed, value)
		}
	}
	switch len(trimmed) {
	case 0:
		return ""
	case 1:
		return trimmed[0] + " is typing…"
	case 2:
		return trimmed[0] + " and " + trimmed[1] + " are typing…"
	default:
		return fmt.Sprintf("%s and %d others are typing…", trimmed[0], len(trimmed)-1)
	}
}

// Reactions formats the reaction summary beneath a bubble, emoji with
// counts, stable by insertion in the emoji keys' sorted order.
func Reactions(reactions map[string][]string) string {
	if len(reactions) == 0 {
		return ""
	}
	keys := make([]string, 0, len(reactions))
	for emoji := range reactions {
		keys = append(keys, emoji)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, emoji := range keys {
		if n := len(reactions[emoji]); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", emoji, n))
		}
	}
	return strings.Join(parts, "  ")
}

// Styles are the lipgloss pieces the timeline renderer composes.
type Styles struct {
	DateSeparator lipgloss.Style
	UnreadDivider lipgloss.Style
	SenderName    lipgloss.Style
	OwnSender     lipgloss.Style
	Body          lipgloss.Style
	DeletedBody   lipgloss.Style
	Meta          lipgloss.Style
	FailedMeta    lipgloss.Style
	Typing        lipgloss.Style
}

// DefaultStyles builds the fixed style set.
func DefaultStyles() Styles {
	muted := lipgloss.Color("243")
	accent := lipgloss.Color("#01cdfe")
	own := lipgloss.Color("#05ffa1")
	danger := lipgloss.Color("#ff71ce")
	return Styles{
		DateSeparator: lipgloss.NewStyle().Foreground(muted).Bold(true),
		UnreadDivider: lipgloss.NewStyle().Foreground(danger).Bold(true),
		SenderName:    lipgloss.NewStyle().Foreground(accent).Bold(true),
		OwnSender:     lipgloss.NewStyle().Foreground(own).Bold(true),
		Body:          lipgloss.NewStyle(),
		DeletedBody:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		Meta:          lipgloss.NewStyle().Foreground(muted),
		FailedMeta:    lipgloss.NewStyle().Foreground(danger),
		Typing:        lipgloss.NewStyle().Foreground(muted).Italic(true),
	}
}

// Timeline renders an ordered message sequence with date separators, avatar
// suppression, the unread divider, and one status icon per own message.
// unreadIndex is the absolute index of the first unread message, -1 for
// none. width bounds wrapping.
func Timeline(messages []domain.Message, threadType domain.ThreadType, unreadIndex, width int, now time.Time, styles Styles) string {
	if len(messages) == 0 {
		return "No messages yet."
	}
	// The divider tracks the first unread message itself, so regrouping by
	// date cannot shift it.
	unreadID := ""
	if unreadIndex >= 0 && unreadIndex < len(messages) {
		unreadID = messages[unreadIndex].ID
	}
	var b strings.Builder
	for _, group := range GroupByDate(messages, now) {
		b.WriteString(styles.DateSeparator.Render("── "+group.Label+" ──") + "\n")
		for i, msg := range group.Messages {
			if unreadID != "" && msg.ID == unreadID {
				b.WriteString(styles.UnreadDivider.Render("── new messages ──") + "\n")
			}
			b.WriteString(bubble(msg, threadType, ShowAvatar(group.Messages, i), width, styles))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func bubble(msg domain.Message, threadType domain.ThreadType, showHeader bool, width int, styles Styles) string {
	var b strings.Builder
	if showHeader {
		name := msg.SenderName
		if strings.TrimSpace(name) == "" {
			name = msg.SenderID
		}
		nameStyle := styles.SenderName
		if msg.Own {
			nameStyle = styles.OwnSender
		}
		b.WriteString(nameStyle.Render(name) + " " + styles.Meta.Render(msg.CreatedAt.Local().Format("15:04")) + "\n")
	}
	body := msg.Content
	bodyStyle := styles.Body
	if msg.Deleted() {
		body = "message deleted"
		bodyStyle = styles.DeletedBody
	}
	b.WriteString(bodyStyle.Render(WrapText(body, width)) + "\n")
	for _, att := range msg.Attachments {
		b.WriteString(styles.Meta.Render("⎘ "+att.Name) + "\n")
	}
	if line := Reactions(msg.Reactions); line != "" && msg.Reactable(threadType) {
		b.WriteString(styles.Meta.Render(line) + "\n")
	}
	var meta []string
	if msg.EditedAt != nil && !msg.Deleted() {
		meta = append(meta, "edited")
	}
	if msg.Own {
		meta = append(meta, StatusIcon(msg.Status))
	}
	if len(meta) > 0 {
		metaStyle := styles.Meta
		if msg.Status == domain.StatusFailed {
			metaStyle = styles.FailedMeta
			meta = append(meta, "press r to retry")
		}
		b.WriteString(metaStyle.Render(strings.Join(meta, " · ")) + "\n")
	}
	return b.String()
}

// WrapText word-wraps text to the given width, preserving explicit
// newlines.
func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	wrapped := make([]string, 0, len(lines))
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			wrapped = append(wrapped, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if len(current)+1+len(word) <= width {
				current += " " + word
				continue
			}
			wrapped = append(wrapped, current)
			current = word
		}
		wrapped = append(wrapped, current)
	}
	return strings.Join(wrapped, "\n")
}
