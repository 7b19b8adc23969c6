package shell

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"unichat/internal/adapter"
	"unichat/internal/aggregate"
	"unichat/internal/api"
	"unichat/internal/domain"
)

// switchItem is one selectable row in the quick-switch or compose overlays.
type switchItem struct {
	label    string
	thread   *domain.Thread
	contact  *domain.Contact
	joinable *domain.Thread
}

func (m *Model) openOverlay(kind overlayKind) {
	m.overlay = kind
	m.overlayIndex = 0
	m.overlayErr = ""
	m.overlayBusy = false
	m.searchResults = api.SearchResults{}
	m.searchDone = false
	m.overlayInput.SetValue("")
	switch kind {
	case overlayCreateChannel:
		m.overlayInput.Prompt = "channel name ❯ "
		m.overlayInput.Placeholder = "lowercase, no spaces"
	case overlayHelp:
		m.overlayInput.Blur()
		m.input.Blur()
		return
	default:
		m.overlayInput.Prompt = "search ❯ "
		m.overlayInput.Placeholder = ""
	}
	m.overlayInput.Focus()
	m.input.Blur()
}

func (m *Model) closeOverlay() {
	m.overlay = overlayNone
	m.overlayInput.Blur()
	m.overlayInput.SetValue("")
	m.overlayErr = ""
	m.overlayBusy = false
	m.searchSeq++
	m.input.Focus()
}

func (m Model) handleOverlayKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeOverlay()
		return m, tea.Batch(cmds...)
	case "up":
		if n := len(m.overlayItems()); n > 0 {
			m.overlayIndex = (m.overlayIndex + n - 1) % n
		}
		return m, tea.Batch(cmds...)
	case "down":
		if n := len(m.overlayItems()); n > 0 {
			m.overlayIndex = (m.overlayIndex + 1) % n
		}
		return m, tea.Batch(cmds...)
	case "enter":
		return m.confirmOverlay(cmds)
	}

	if m.overlay == overlayHelp {
		return m, tea.Batch(cmds...)
	}

	before := m.overlayInput.Value()
	var cmd tea.Cmd
	m.overlayInput, cmd = m.overlayInput.Update(msg)
	cmds = append(cmds, cmd)
	if m.overlayInput.Value() != before {
		m.overlayIndex = 0
		m.overlayErr = ""
		if m.overlay == overlayQuickSwitch {
			// Server search waits for the debounce window; edits within the
			// window supersede the older timer via the sequence number.
			m.searchSeq++
			m.searchDone = false
			if strings.TrimSpace(m.overlayInput.Value()) != "" {
				cmds = append(cmds, searchDebounce(m.cfg.UI.SearchDebounce, m.searchSeq))
			} else {
				m.searchResults = api.SearchResults{}
			}
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) confirmOverlay(cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	switch m.overlay {
	case overlayHelp:
		m.closeOverlay()
		return m, tea.Batch(cmds...)

	case overlayCreateChannel:
		name := strings.ToLower(strings.TrimSpace(m.overlayInput.Value()))
		if name == "" {
			m.overlayErr = "channel name required"
			return m, tea.Batch(cmds...)
		}
		if strings.ContainsAny(name, " \t") {
			m.overlayErr = "channel names cannot contain spaces"
			return m, tea.Batch(cmds...)
		}
		m.overlayBusy = true
		cmds = append(cmds, m.createThreadCmd(domain.TabUser, adapter.ThreadConfig{ChannelName: name}))
		return m, tea.Batch(cmds...)

	default:
		items := m.overlayItems()
		if m.overlay == overlayJoinChannel && (len(items) == 0 || m.overlayIndex >= len(items)) {
			// No candidate highlighted: the typed value is taken as a raw
			// thread id.
			raw := strings.TrimSpace(m.overlayInput.Value())
			if raw == "" {
				m.overlayErr = "channel id required"
				return m, tea.Batch(cmds...)
			}
			m.overlayBusy = true
			cmds = append(cmds, m.createThreadCmd(domain.TabUser, adapter.ThreadConfig{JoinThreadID: raw}))
			return m, tea.Batch(cmds...)
		}
		if len(items) == 0 || m.overlayIndex >= len(items) {
			return m, tea.Batch(cmds...)
		}
		item := items[m.overlayIndex]
		switch {
		case item.thread != nil:
			m.closeOverlay()
			cmds = append(cmds, m.selectThread(*item.thread)...)
		case item.contact != nil:
			m.overlayBusy = true
			cmds = append(cmds, m.createThreadCmd(domain.TabUser, adapter.ThreadConfig{RecipientID: item.contact.ID}))
		case item.joinable != nil:
			m.overlayBusy = true
			cmds = append(cmds, m.createThreadCmd(domain.TabUser, adapter.ThreadConfig{JoinThreadID: item.joinable.ID}))
		}
		return m, tea.Batch(cmds...)
	}
}

// overlayItems builds the current overlay's selectable rows.
func (m Model) overlayItems() []switchItem {
	query := strings.TrimSpace(m.overlayInput.Value())
	switch m.overlay {
	case overlayQuickSwitch:
		return m.quickSwitchItems(query)
	case overlayNewDM:
		return m.dmCandidates(query)
	case overlayJoinChannel:
		return m.joinCandidates(query)
	default:
		return nil
	}
}

// quickSwitchItems merges every domain's threads; with a query the
// server-side results are preferred once they arrive, local filtering
// bridging the debounce gap. Thread rows are capped at the quick-switch
// limit; contact and message hits follow below them.
func (m Model) quickSwitchItems(query string) []switchItem {
	var all []domain.Thread
	for _, tab := range tabOrder {
		all = append(all, m.threads[tab]...)
	}
	threads := aggregate.ForQuickSwitch(all, query)
	serverSide := query != "" && m.searchDone
	if serverSide {
		threads = aggregate.Cap(aggregate.SortByActivity(m.searchResults.Threads), aggregate.QuickSwitchLimit)
	}
	items := make([]switchItem, 0, len(threads))
	for i := range threads {
		thread := threads[i]
		items = append(items, switchItem{
			label:  quickSwitchLabel(thread),
			thread: &thread,
		})
	}
	if !serverSide {
		return items
	}
	// A contact hit with no existing thread starts the new-DM flow.
	for i := range m.searchResults.Contacts {
		contact := m.searchResults.Contacts[i]
		if contact.IsAI || contact.ID == m.cfg.User.ID {
			continue
		}
		items = append(items, switchItem{
			label:   "[new dm] " + contact.DisplayName(),
			contact: &contact,
		})
	}
	// A message hit jumps to its containing team thread.
	for _, hit := range m.searchResults.Messages {
		if hit.ThreadID == "" {
			continue
		}
		thread := domain.Thread{ID: hit.ThreadID, Type: domain.ThreadTeamChannel, Title: compactSingleLine(hit.Content, 48)}
		items = append(items, switchItem{
			label:  "[message] " + thread.Title,
			thread: &thread,
		})
	}
	return items
}

func quickSwitchLabel(thread domain.Thread) string {
	prefix := map[domain.Tab]string{
		domain.TabEcho:    "echo",
		domain.TabUser:    "team",
		domain.TabVisitor: "visitor",
	}[thread.Type.Tab()]
	label := "[" + prefix + "] " + thread.DisplayTitle()
	if thread.UnreadCount > 0 {
		label += " ●"
	}
	return label
}

// dmCandidates filters the directory for the new-DM overlay: the current
// user and AI-managed contacts are never offered.
func (m Model) dmCandidates(query string) []switchItem {
	needle := strings.ToLower(query)
	var items []switchItem
	for i := range m.contacts {
		contact := m.contacts[i]
		if contact.IsAI || contact.ID == m.cfg.User.ID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(contact.DisplayName()), needle) &&
			!strings.Contains(strings.ToLower(contact.Email), needle) {
			continue
		}
		label := contact.DisplayName()
		if contact.Email != "" {
			label += " · " + contact.Email
		}
		items = append(items, switchItem{label: label, contact: &contact})
	}
	return items
}

// joinCandidates lists channels not already in the sidebar.
func (m Model) joinCandidates(query string) []switchItem {
	member := map[string]struct{}{}
	for _, thread := range m.threads[domain.TabUser] {
		member[thread.ID] = struct{}{}
	}
	needle := strings.ToLower(query)
	var items []switchItem
	for i := range m.joinable {
		thread := m.joinable[i]
		if _, joined := member[thread.ID]; joined {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(thread.DisplayTitle()), needle) {
			continue
		}
		items = append(items, switchItem{label: "#" + thread.DisplayTitle(), joinable: &thread})
	}
	return items
}
