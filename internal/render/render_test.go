package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unichat/internal/domain"
)

func at(day, hour int) time.Time {
	return time.Date(2026, time.March, day, hour, 0, 0, 0, time.Local)
}

func TestGroupByDateOneHeaderPerDistinctDate(t *testing.T) {
	now := at(12, 18)
	messages := []domain.Message{
		{ID: "1", SenderID: "a", CreatedAt: at(10, 9)},
		{ID: "2", SenderID: "a", CreatedAt: at(10, 11)},
		{ID: "3", SenderID: "b", CreatedAt: at(11, 8)},
		{ID: "4", SenderID: "a", CreatedAt: at(12, 7)},
		{ID: "5", SenderID: "a", CreatedAt: at(12, 9)},
	}
	groups := GroupByDate(messages, now)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0].Messages, 2)
	assert.Len(t, groups[1].Messages, 1)
	assert.Len(t, groups[2].Messages, 2)
	assert.Equal(t, "Yesterday", groups[1].Label)
	assert.Equal(t, "Today", groups[2].Label)
	assert.Equal(t, "Mar 10, 2026", groups[0].Label)
}

func TestGroupByDateOutOfOrderSequenceStillOneGroupPerDate(t *testing.T) {
	// A sequence that revisits an earlier date must not open a second group
	// for it.
	messages := []domain.Message{
		{ID: "1", CreatedAt: at(10, 9)},
		{ID: "2", CreatedAt: at(11, 9)},
		{ID: "3", CreatedAt: at(10, 15)},
		{ID: "4", CreatedAt: at(11, 16)},
	}
	groups := GroupByDate(messages, at(12, 18))
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"1", "3"}, []string{groups[0].Messages[0].ID, groups[0].Messages[1].ID})
	assert.Equal(t, []string{"2", "4"}, []string{groups[1].Messages[0].ID, groups[1].Messages[1].ID})

	out := Timeline(messages, domain.ThreadTeamChannel, -1, 60, at(12, 18), DefaultStyles())
	assert.Equal(t, 2, strings.Count(out, "── "), "one separator per distinct date")
}

func TestGroupByDatePreservesOrder(t *testing.T) {
	messages := []domain.Message{
		{ID: "1", CreatedAt: at(10, 9)},
		{ID: "2", CreatedAt: at(10, 8)}, // out of timestamp order on purpose
	}
	groups := GroupByDate(messages, at(10, 12))
	require.Len(t, groups, 1)
	assert.Equal(t, "1", groups[0].Messages[0].ID)
	assert.Equal(t, "2", groups[0].Messages[1].ID)
}

func TestShowAvatarSuppressedForSameSenderRuns(t *testing.T) {
	group := []domain.Message{
		{SenderID: "a"},
		{SenderID: "a"},
		{SenderID: "b"},
		{SenderID: "a"},
	}
	assert.True(t, ShowAvatar(group, 0))
	assert.False(t, ShowAvatar(group, 1))
	assert.True(t, ShowAvatar(group, 2))
	assert.True(t, ShowAvatar(group, 3))
	assert.False(t, ShowAvatar(group, 7))
	assert.False(t, ShowAvatar(group, -1))
}

func TestUnreadDividerIndex(t *testing.T) {
	assert.Equal(t, -1, UnreadDividerIndex(10, 0))
	assert.Equal(t, -1, UnreadDividerIndex(0, 3))
	assert.Equal(t, 7, UnreadDividerIndex(10, 3))
	assert.Equal(t, 0, UnreadDividerIndex(10, 10))
	assert.Equal(t, 0, UnreadDividerIndex(5, 99))
}

func TestStatusIconPrecedence(t *testing.T) {
	// The flag collapse lives in domain.StatusFromFlags; here each resolved
	// status maps to exactly one icon.
	assert.Equal(t, "!", StatusIcon(domain.StatusFailed))
	assert.Equal(t, "…", StatusIcon(domain.StatusSending))
	assert.Equal(t, "✓✓", StatusIcon(domain.StatusRead))
	assert.Equal(t, "✓·", StatusIcon(domain.StatusDelivered))
	assert.Equal(t, "✓", StatusIcon(domain.StatusSent))

	// Contradictory flags still resolve deterministically end to end.
	assert.Equal(t, "…", StatusIcon(domain.StatusFromFlags(false, true, true, false)))
	assert.Equal(t, "!", StatusIcon(domain.StatusFromFlags(true, true, true, true)))
}

func TestTypingLine(t *testing.T) {
	assert.Equal(t, "", TypingLine(nil))
	assert.Equal(t, "", TypingLine([]string{"  "}))
	assert.Equal(t, "Dana is typing…", TypingLine([]string{"Dana"}))
	assert.Equal(t, "Dana and Lee are typing…", TypingLine([]string{"Dana", "Lee"}))
	assert.Equal(t, "Dana and 2 others are typing…", TypingLine([]string{"Dana", "Lee", "Kim"}))
}

func TestTimelineContent(t *testing.T) {
	now := at(12, 18)
	messages := []domain.Message{
		{ID: "1", SenderID: "a", SenderName: "Ana", Content: "hi", CreatedAt: at(11, 9), Status: domain.StatusRead},
		{ID: "2", SenderID: "a", SenderName: "Ana", Content: "again", CreatedAt: at(11, 10), Status: domain.StatusRead},
		{ID: "3", SenderID: "me", SenderName: "Me", Content: "yo", CreatedAt: at(12, 9), Own: true, Status: domain.StatusSent},
	}
	out := Timeline(messages, domain.ThreadTeamDM, 2, 60, now, DefaultStyles())

	assert.Equal(t, 1, strings.Count(out, "Yesterday"))
	assert.Equal(t, 1, strings.Count(out, "Today"))
	assert.Equal(t, 1, strings.Count(out, "new messages"))
	// Avatar suppression: Ana's name appears once for her two-message run.
	assert.Equal(t, 1, strings.Count(out, "Ana"))
	assert.Contains(t, out, "✓")
	assert.NotContains(t, out, "!")
}

func TestTimelineDeletedAndEdited(t *testing.T) {
	now := at(12, 18)
	edited := at(12, 10)
	deleted := at(12, 11)
	messages := []domain.Message{
		{ID: "1", SenderID: "a", SenderName: "Ana", Content: "v2", CreatedAt: at(12, 9), EditedAt: &edited},
		{ID: "2", SenderID: "a", SenderName: "Ana", Content: "gone", CreatedAt: at(12, 10), DeletedAt: &deleted},
	}
	out := Timeline(messages, domain.ThreadTeamChannel, -1, 60, now, DefaultStyles())
	assert.Contains(t, out, "edited")
	assert.Contains(t, out, "message deleted")
	assert.NotContains(t, out, "gone")
}

func TestTimelineEmpty(t *testing.T) {
	assert.Equal(t, "No messages yet.", Timeline(nil, domain.ThreadEcho, -1, 40, time.Now(), DefaultStyles()))
}

func TestReactions(t *testing.T) {
	assert.Equal(t, "", Reactions(nil))
	line := Reactions(map[string][]string{"👍": {"u1", "u2"}, "🎉": {"u1"}})
	assert.Contains(t, line, "👍 2")
	assert.Contains(t, line, "🎉 1")
}
