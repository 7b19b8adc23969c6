package aggregate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unichat/internal/domain"
)

func mkThread(id, title string, t domain.ThreadType, age time.Duration) domain.Thread {
	return domain.Thread{
		ID:             id,
		Title:          title,
		Type:           t,
		LastActivityAt: time.Now().Add(-age),
	}
}

func TestFilterMatchesTitleAndRecipient(t *testing.T) {
	threads := []domain.Thread{
		mkThread("t1", "General", domain.ThreadTeamChannel, time.Hour),
		{ID: "t2", Type: domain.ThreadTeamDM, Recipient: &domain.Recipient{Name: "Dana Reyes", Email: "dana@example.com"}},
		{ID: "t3", Type: domain.ThreadTeamDM, Recipient: &domain.Recipient{Email: "ops@example.com"}},
	}

	assert.Len(t, Filter(threads, "gener"), 1)
	assert.Len(t, Filter(threads, "DANA"), 1)
	assert.Len(t, Filter(threads, "example.com"), 2)
	assert.Empty(t, Filter(threads, "zzz"))
}

func TestFilterEmptyQueryReturnsInputUnchanged(t *testing.T) {
	threads := []domain.Thread{mkThread("t1", "a", domain.ThreadEcho, 0)}
	got := Filter(threads, "   ")
	require.Len(t, got, 1)
	assert.Equal(t, threads[0].ID, got[0].ID)
}

func TestSortByActivityRecentFirstWithoutMutation(t *testing.T) {
	threads := []domain.Thread{
		mkThread("old", "old", domain.ThreadEcho, 3*time.Hour),
		mkThread("new", "new", domain.ThreadEcho, time.Minute),
		mkThread("mid", "mid", domain.ThreadEcho, time.Hour),
	}
	sorted := SortByActivity(threads)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{sorted[0].ID, sorted[1].ID, sorted[2].ID})
	assert.Equal(t, "old", threads[0].ID, "input must not be mutated")
}

func TestPartitionTeamSeparatesChannelsFromDMs(t *testing.T) {
	threads := []domain.Thread{
		mkThread("c1", "general", domain.ThreadTeamChannel, time.Hour),
		mkThread("d1", "", domain.ThreadTeamDM, time.Minute),
		mkThread("c2", "random", domain.ThreadTeamChannel, time.Minute),
		mkThread("x1", "stray", domain.ThreadEcho, time.Minute),
	}
	lists := PartitionTeam(threads)
	require.Len(t, lists.Channels, 2)
	require.Len(t, lists.DirectMessages, 1)
	assert.Equal(t, "c1", lists.Channels[0].ID)
	assert.Equal(t, "d1", lists.DirectMessages[0].ID)
}

func TestPinnedFirstKeepsRelativeOrder(t *testing.T) {
	threads := []domain.Thread{
		{ID: "a"},
		{ID: "b", Pinned: true},
		{ID: "c"},
		{ID: "d", Pinned: true},
	}
	got := PinnedFirst(threads)
	assert.Equal(t, []string{"b", "d", "a", "c"}, []string{got[0].ID, got[1].ID, got[2].ID, got[3].ID})
}

func TestQuickSwitchCap(t *testing.T) {
	threads := make([]domain.Thread, 0, 40)
	for i := 0; i < 40; i++ {
		threads = append(threads, mkThread(fmt.Sprintf("t%02d", i), fmt.Sprintf("thread %02d", i), domain.ThreadTeamChannel, time.Duration(i)*time.Minute))
	}
	got := ForQuickSwitch(threads, "thread")
	assert.Len(t, got, QuickSwitchLimit)
	// Most recent activity first.
	assert.Equal(t, "t00", got[0].ID)
}

func TestForSidebarUncapped(t *testing.T) {
	threads := make([]domain.Thread, 0, 40)
	for i := 0; i < 40; i++ {
		threads = append(threads, mkThread(fmt.Sprintf("t%02d", i), "x", domain.ThreadTeamChannel, time.Duration(i)*time.Minute))
	}
	assert.Len(t, ForSidebar(threads, ""), 40)
}
