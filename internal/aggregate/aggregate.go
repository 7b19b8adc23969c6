// Package aggregate holds the pure thread-list transforms: free-text
// filtering, activity sorting, and the team-domain channel/DM partition.
// Nothing here has side effects; callers pass collections in and render what
// comes out.
package aggregate

import (
	"sort"
	"strings"

	"unichat/internal/domain"
)

// QuickSwitchLimit caps result pages inside the quick-switch overlay. The
// main sidebar is uncapped.
const QuickSwitchLimit = 15

// Filter returns the threads whose title, recipient name, or recipient email
// contains the query, case-insensitively. An empty query returns the input
// unchanged.
func Filter(threads []domain.Thread, query string) []domain.Thread {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return threads
	}
	out := make([]domain.Thread, 0, len(threads))
	for _, thread := range threads {
		if matches(thread, needle) {
			out = append(out, thread)
		}
	}
	return out
}

func matches(thread domain.Thread, needle string) bool {
	if strings.Contains(strings.ToLower(thread.DisplayTitle()), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(thread.Title), needle) {
		return true
	}
	if thread.Recipient != nil {
		if strings.Contains(strings.ToLower(thread.Recipient.Name), needle) {
			return true
		}
		if strings.Contains(strings.ToLower(thread.Recipient.Email), needle) {
			return true
		}
	}
	return false
}

// SortByActivity orders threads most-recent-activity-first. The input is not
// mutated; ties keep their incoming order.
func SortByActivity(threads []domain.Thread) []domain.Thread {
	out := make([]domain.Thread, len(threads))
	copy(out, threads)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out
}

// PinnedFirst lifts pinned threads above the rest, preserving relative order
// within each group. The aggregator itself carries pin state through without
// reordering; this is the presentation-side ordering the sidebar applies.
func PinnedFirst(threads []domain.Thread) []domain.Thread {
	out := make([]domain.Thread, 0, len(threads))
	for _, thread := range threads {
		if thread.Pinned {
			out = append(out, thread)
		}
	}
	for _, thread := range threads {
		if !thread.Pinned {
			out = append(out, thread)
		}
	}
	return out
}

// Cap truncates to the first limit threads; limit <= 0 means uncapped.
func Cap(threads []domain.Thread, limit int) []domain.Thread {
	if limit <= 0 || len(threads) <= limit {
		return threads
	}
	return threads[:limit]
}

// TeamLists is the partitioned team sidebar: channels rendered above the
// "Direct messages" header, never interleaved.
type TeamLists struct {
	Channels       []domain.Thread
	DirectMessages []domain.Thread
}

// PartitionTeam splits a team thread collection into channels and DMs.
// Threads of other domains are dropped rather than misfiled.
func PartitionTeam(threads []domain.Thread) TeamLists {
	var lists TeamLists
	for _, thread := range threads {
		switch thread.Type {
		case domain.ThreadTeamChannel:
			lists.Channels = append(lists.Channels, thread)
		case domain.ThreadTeamDM:
			lists.DirectMessages = append(lists.DirectMessages, thread)
		}
	}
	return lists
}

// ForSidebar is the main-sidebar pipeline: filter by query, sort by
// activity, pinned lifted first. Uncapped.
func ForSidebar(threads []domain.Thread, query string) []domain.Thread {
	return PinnedFirst(SortByActivity(Filter(threads, query)))
}

// ForQuickSwitch is the overlay pipeline: filter, sort, cap at the page
// limit. Pin state is carried through without reordering here.
func ForQuickSwitch(threads []domain.Thread, query string) []domain.Thread {
	return Cap(SortByActivity(Filter(threads, query)), QuickSwitchLimit)
}
