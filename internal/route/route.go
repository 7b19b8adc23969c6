// Package route owns the active tab/thread selection and its shareable
// link form. The link is an ordinary query string (?tab=user&thread=t2):
// parsed once at startup, replaced on every selection change, never stacked
// into any history.
package route

import (
	"net/url"
	"strings"

	"unichat/internal/domain"
)

const (
	paramTab    = "tab"
	paramThread = "thread"
)

// Selection is the ephemeral, link-backed active state of the shell.
type Selection struct {
	Tab      domain.Tab
	ThreadID string
}

// EncodeLink serializes a selection into its shareable query-string form.
// The thread parameter is omitted when no thread is selected.
func EncodeLink(sel Selection) string {
	values := url.Values{}
	values.Set(paramTab, string(sel.Tab))
	if strings.TrimSpace(sel.ThreadID) != "" {
		values.Set(paramThread, sel.ThreadID)
	}
	return "?" + values.Encode()
}

// ParseLink is the inverse of EncodeLink. Malformed input, an unknown tab
// value, or an empty string all degrade silently to the fallback tab with no
// thread selected; parsing never fails.
func ParseLink(raw string, fallback domain.Tab) Selection {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "?")
	if trimmed == "" {
		return Selection{Tab: fallback}
	}
	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return Selection{Tab: fallback}
	}
	tabValue := values.Get(paramTab)
	if !domain.ValidTab(tabValue) {
		return Selection{Tab: fallback}
	}
	return Selection{
		Tab:      domain.Tab(tabValue),
		ThreadID: strings.TrimSpace(values.Get(paramThread)),
	}
}

// Router tracks the active tab and the per-tab selected thread. Selecting a
// thread on one tab never touches another tab's selection.
type Router struct {
	active   domain.Tab
	fallback domain.Tab
	selected map[domain.Tab]string
}

// NewRouter builds a router on the configured default tab.
func NewRouter(defaultTab domain.Tab) *Router {
	if !domain.ValidTab(string(defaultTab)) {
		defaultTab = domain.TabEcho
	}
	return &Router{
		active:   defaultTab,
		fallback: defaultTab,
		selected: map[domain.Tab]string{},
	}
}

// Seed applies a startup link. Invalid links leave the router on its
// defaults, matching ParseLink semantics.
func (r *Router) Seed(link string) Selection {
	sel := ParseLink(link, r.fallback)
	r.active = sel.Tab
	if sel.ThreadID != "" {
		r.selected[sel.Tab] = sel.ThreadID
	}
	return r.Selection()
}

// ActiveTab returns the tab currently in the foreground.
func (r *Router) ActiveTab() domain.Tab {
	return r.active
}

// SelectTab activates a tab. If the tab has no previously selected thread
// the selection is empty (list view). Unknown tabs are ignored.
func (r *Router) SelectTab(tab domain.Tab) Selection {
	if domain.ValidTab(string(tab)) {
		r.active = tab
	}
	return r.Selection()
}

// SelectThread records the selected thread for a tab and activates that tab.
func (r *Router) SelectThread(tab domain.Tab, threadID string) Selection {
	if !domain.ValidTab(string(tab)) {
		return r.Selection()
	}
	r.active = tab
	r.selected[tab] = strings.TrimSpace(threadID)
	return r.Selection()
}

// ClearThread drops the selection for a tab, returning it to list view.
func (r *Router) ClearThread(tab domain.Tab) Selection {
	delete(r.selected, tab)
	return r.Selection()
}

// Selected returns the remembered thread id for a tab, empty when none.
func (r *Router) Selected(tab domain.Tab) string {
	return r.selected[tab]
}

// Selection is the current (tab, thread) pair.
func (r *Router) Selection() Selection {
	return Selection{Tab: r.active, ThreadID: r.selected[r.active]}
}

// Link is the shareable form of the current selection.
func (r *Router) Link() string {
	return EncodeLink(r.Selection())
}
