package shell

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"unichat/internal/domain"
	"unichat/internal/render"
	"unichat/internal/route"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case threadsLoadedMsg:
		if msg.err != nil {
			m.log.Warn("thread list refresh failed", zap.String("tab", string(msg.tab)), zap.Error(msg.err))
			m.statusLine = string(msg.tab) + " threads unavailable"
			break
		}
		m.threads[msg.tab] = msg.threads
		if msg.tab == m.router.ActiveTab() {
			m.clampSidebarIndex()
		}
		if msg.tab == domain.TabUser {
			if ids := dmRecipientIDs(msg.threads); len(ids) > 0 {
				team := m.team
				cmds = append(cmds, m.actionCmd(func(ctx context.Context) error {
					return team.RefreshPresence(ctx, ids)
				}, "", false, false))
			}
		}
		m.renderPanes()

	case threadOpenedMsg:
		m.inflight = false
		if msg.err != nil {
			m.log.Warn("thread open failed", zap.String("thread", msg.threadID), zap.Error(msg.err))
			m.statusLine = "could not open thread: " + compactSingleLine(msg.err.Error(), 120)
			break
		}
		// Ignore results for a selection the user already left.
		if msg.tab != m.router.ActiveTab() || m.router.Selected(msg.tab) != msg.threadID {
			break
		}
		conv := m.conversation(msg.tab)
		m.unreadIndex = render.UnreadDividerIndex(len(conv.Messages()), msg.unread)
		m.lastFailed = ""
		m.statusLine = "opened " + threadLabel(conv.Thread())
		m.renderPanes()
		if m.unreadIndex >= 0 {
			m.timeline.GotoTop()
		} else {
			m.timeline.GotoBottom()
		}

	case deliverDoneMsg:
		m.inflight = false
		if msg.err != nil {
			m.lastFailed = msg.messageID
			m.statusLine = "send failed · press r to retry"
			m.log.Warn("deliver failed", zap.String("message", msg.messageID), zap.Error(msg.err))
		} else {
			if m.lastFailed == msg.messageID {
				m.lastFailed = ""
			}
			m.statusLine = "sent"
		}
		if msg.tab == m.router.ActiveTab() {
			m.renderPanes()
			m.timeline.GotoBottom()
		}
		cmds = append(cmds, m.loadThreadsCmd(msg.tab))

	case contactsMsg:
		if msg.err != nil {
			m.log.Warn("contact directory unavailable", zap.Error(msg.err))
			break
		}
		m.contacts = msg.contacts

	case channelsMsg:
		if msg.err != nil {
			if m.overlay == overlayJoinChannel {
				m.overlayErr = "channel list unavailable: " + compactSingleLine(msg.err.Error(), 100)
			}
			break
		}
		m.joinable = msg.channels

	case searchTickMsg:
		// Only the newest debounce window may trigger a call.
		if msg.seq != m.searchSeq || m.overlay != overlayQuickSwitch {
			break
		}
		query := strings.TrimSpace(m.overlayInput.Value())
		if query == "" {
			break
		}
		cmds = append(cmds, m.searchCmd(msg.seq, query))

	case searchDoneMsg:
		if msg.seq != m.searchSeq {
			break
		}
		if msg.err != nil {
			m.overlayErr = "search failed: " + compactSingleLine(msg.err.Error(), 100)
			break
		}
		m.overlayErr = ""
		m.searchResults = msg.results
		m.searchDone = true
		m.overlayIndex = 0

	case createThreadMsg:
		m.overlayBusy = false
		if msg.err != nil {
			// The overlay stays open with the error inline so the input can
			// be corrected.
			m.overlayErr = compactSingleLine(msg.err.Error(), 120)
			break
		}
		m.closeOverlay()
		cmds = append(cmds, m.switchTabEffects(msg.tab)...)
		sel := m.router.SelectThread(msg.tab, msg.threadID)
		m.statusLine = "opening thread · " + route.EncodeLink(sel)
		cmds = append(cmds, m.loadThreadsCmd(msg.tab), m.openThreadCmd(msg.tab, msg.threadID, 0))

	case handoffTickMsg:
		if msg.seq != m.handoffSeq || m.router.ActiveTab() != domain.TabVisitor {
			break
		}
		cmds = append(cmds, m.handoffPollCmd(msg.seq), handoffTick(m.cfg.UI.HandoffPoll, msg.seq))

	case handoffDoneMsg:
		if msg.err != nil {
			m.log.Warn("handoff poll failed", zap.Error(msg.err))
			break
		}
		if msg.seq == m.handoffSeq && m.router.ActiveTab() == domain.TabVisitor {
			m.renderPanes()
		}

	case echoEventMsg:
		if m.router.ActiveTab() == domain.TabEcho {
			if msg.Err != nil {
				m.statusLine = "assistant error: " + compactSingleLine(msg.Err.Error(), 120)
			}
			m.renderPanes()
			m.timeline.GotoBottom()
		}
		cmds = append(cmds, waitEchoEvent(m.echo.Events()))

	case tickMsg:
		for _, tab := range tabOrder {
			cmds = append(cmds, m.loadThreadsCmd(tab))
		}
		cmds = append(cmds, m.refreshActiveCmd(), tickEvery(m.cfg.UI.ThreadPoll))

	case actionDoneMsg:
		m.inflight = false
		if msg.err != nil {
			m.statusLine = compactSingleLine(msg.err.Error(), 140)
			m.log.Warn("action failed", zap.Error(msg.err))
			break
		}
		if msg.status != "" {
			m.statusLine = msg.status
		}
		if msg.reloadThreads {
			cmds = append(cmds, m.loadThreadsCmd(m.router.ActiveTab()))
		}
		if msg.reloadActive {
			if sel := m.router.Selection(); sel.ThreadID != "" {
				cmds = append(cmds, m.openThreadCmd(sel.Tab, sel.ThreadID, 0))
			}
		}
		m.renderPanes()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes()

	case tea.MouseMsg:
		if m.overlay == overlayNone && !m.quitConfirm {
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		return m.handleKey(msg, cmds)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.quitConfirm {
		switch msg.String() {
		case "y", "Y", "enter":
			return m, tea.Quit
		case "n", "N", "esc":
			m.quitConfirm = false
			m.statusLine = "quit canceled"
		}
		return m, tea.Batch(cmds...)
	}

	if m.overlay != overlayNone {
		return m.handleOverlayKey(msg, cmds)
	}

	if m.filtering {
		return m.handleFilterKey(msg, cmds)
	}

	switch msg.String() {
	case "tab":
		cmds = append(cmds, m.cycleTab(1)...)
		return m, tea.Batch(cmds...)
	case "shift+tab":
		cmds = append(cmds, m.cycleTab(-1)...)
		return m, tea.Batch(cmds...)
	case "alt+1":
		cmds = append(cmds, m.activateTab(domain.TabEcho)...)
		return m, tea.Batch(cmds...)
	case "alt+2":
		cmds = append(cmds, m.activateTab(domain.TabUser)...)
		return m, tea.Batch(cmds...)
	case "alt+3":
		cmds = append(cmds, m.activateTab(domain.TabVisitor)...)
		return m, tea.Batch(cmds...)
	case "ctrl+k":
		m.openOverlay(overlayQuickSwitch)
		return m, tea.Batch(cmds...)
	case "ctrl+f":
		m.filtering = true
		m.filter.Focus()
		m.input.Blur()
		m.sidebarIndex = 0
		return m, tea.Batch(cmds...)
	case "ctrl+n":
		m.openOverlay(overlayNewDM)
		return m, tea.Batch(cmds...)
	case "ctrl+g":
		m.openOverlay(overlayCreateChannel)
		return m, tea.Batch(cmds...)
	case "ctrl+j":
		m.openOverlay(overlayJoinChannel)
		cmds = append(cmds, m.loadChannelsCmd())
		return m, tea.Batch(cmds...)
	case "esc":
		if m.router.Selection().ThreadID != "" {
			m.router.ClearThread(m.router.ActiveTab())
			m.unreadIndex = -1
			m.statusLine = "thread closed"
			m.renderPanes()
			return m, tea.Batch(cmds...)
		}
		m.quitConfirm = true
		return m, tea.Batch(cmds...)
	case "enter":
		return m.handleEnter(cmds)
	case "pgup":
		m.timeline.LineUp(8)
		return m, tea.Batch(cmds...)
	case "pgdown":
		m.timeline.LineDown(8)
		return m, tea.Batch(cmds...)
	case "up":
		if strings.TrimSpace(m.input.Value()) == "" {
			m.moveSidebar(-1)
			return m, tea.Batch(cmds...)
		}
	case "down":
		if strings.TrimSpace(m.input.Value()) == "" {
			m.moveSidebar(1)
			return m, tea.Batch(cmds...)
		}
	case "r":
		if strings.TrimSpace(m.input.Value()) == "" && m.lastFailed != "" {
			m.inflight = true
			m.statusLine = "retrying..."
			cmds = append(cmds, m.retryCmd(m.router.ActiveTab(), m.lastFailed))
			return m, tea.Batch(cmds...)
		}
	}

	wasEmpty := strings.TrimSpace(m.input.Value()) == ""
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	nowEmpty := strings.TrimSpace(m.input.Value()) == ""
	switch {
	case wasEmpty && !nowEmpty && !m.typingSent:
		m.typingSent = true
		cmds = append(cmds, m.typingCmd(true))
	case !wasEmpty && nowEmpty && m.typingSent:
		// Clearing the draft without sending must retract the remote
		// typing state.
		m.typingSent = false
		cmds = append(cmds, m.typingCmd(false))
	}
	return m, tea.Batch(cmds...)
}

// handleFilterKey routes keys while the sidebar filter is focused.
func (m Model) handleFilterKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.exitFilter()
		m.clampSidebarIndex()
		return m, tea.Batch(cmds...)
	case "enter":
		if thread, ok := m.highlightedThread(); ok {
			m.exitFilter()
			cmds = append(cmds, m.selectThread(thread)...)
		}
		return m, tea.Batch(cmds...)
	case "up":
		m.moveSidebar(-1)
		return m, tea.Batch(cmds...)
	case "down":
		m.moveSidebar(1)
		return m, tea.Batch(cmds...)
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	cmds = append(cmds, cmd)
	m.sidebarIndex = 0
	return m, tea.Batch(cmds...)
}

func (m *Model) exitFilter() {
	m.filtering = false
	m.filter.SetValue("")
	m.filter.Blur()
	m.input.Focus()
}

func (m *Model) handleEnter(cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.input.Value())

	// Empty input + a highlighted sidebar row opens that thread.
	if raw == "" {
		if thread, ok := m.highlightedThread(); ok {
			cmds = append(cmds, m.selectThread(thread)...)
		}
		return *m, tea.Batch(cmds...)
	}

	m.input.SetValue("")
	if m.typingSent {
		m.typingSent = false
		cmds = append(cmds, m.typingCmd(false))
	}

	if strings.HasPrefix(raw, "/") {
		cmd := m.handleSlash(raw)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		return *m, tea.Batch(cmds...)
	}

	tab := m.router.ActiveTab()
	if m.router.Selected(tab) == "" && tab != domain.TabEcho {
		m.statusLine = "select a thread first (enter on the list, or ctrl+k)"
		return *m, tea.Batch(cmds...)
	}

	pending := m.conversation(tab).SendMessage(raw, nil)
	m.inflight = true
	m.statusLine = "sending..."
	if tab == domain.TabEcho && m.router.Selected(tab) == "" {
		// First echo message creates the conversation implicitly.
		if t := m.echo.Thread(); t != nil {
			m.router.SelectThread(tab, t.ID)
			cmds = append(cmds, m.loadThreadsCmd(tab))
		}
	}
	m.renderPanes()
	m.timeline.GotoBottom()
	cmds = append(cmds, m.deliverCmd(tab, pending.ID))
	return *m, tea.Batch(cmds...)
}

// selectThread routes to a thread's home tab, records the selection, and
// loads it. The link in the footer follows automatically.
func (m *Model) selectThread(thread domain.Thread) []tea.Cmd {
	tab := thread.Type.Tab()
	var cmds []tea.Cmd
	if tab != m.router.ActiveTab() {
		cmds = append(cmds, m.switchTabEffects(tab)...)
	}
	m.router.SelectThread(tab, thread.ID)
	m.unreadIndex = -1
	m.inflight = true
	m.statusLine = "opening " + thread.DisplayTitle()
	cmds = append(cmds, m.openThreadCmd(tab, thread.ID, thread.UnreadCount))
	return cmds
}

func (m *Model) cycleTab(step int) []tea.Cmd {
	current := 0
	for i, tab := range tabOrder {
		if tab == m.router.ActiveTab() {
			current = i
		}
	}
	next := tabOrder[(current+len(tabOrder)+step)%len(tabOrder)]
	return m.activateTab(next)
}

func (m *Model) activateTab(tab domain.Tab) []tea.Cmd {
	if tab == m.router.ActiveTab() {
		return nil
	}
	cmds := m.switchTabEffects(tab)
	m.router.SelectTab(tab)
	m.unreadIndex = -1
	m.lastFailed = ""
	m.sidebarIndex = 0
	m.statusLine = string(tab) + " tab"
	m.renderPanes()
	// Re-open the tab's remembered thread so its timeline is current.
	if id := m.router.Selected(tab); id != "" {
		cmds = append(cmds, m.openThreadCmd(tab, id, 0))
	}
	return cmds
}

// switchTabEffects handles domain-scoped setup and teardown around a tab
// change: stale pollers are invalidated by sequence bump, per-domain caches
// cleared.
func (m *Model) switchTabEffects(next domain.Tab) []tea.Cmd {
	var cmds []tea.Cmd
	prev := m.router.ActiveTab()
	if prev == next {
		return nil
	}
	if prev == domain.TabUser {
		m.team.ClearCaches()
	}
	m.handoffSeq++
	if next == domain.TabVisitor {
		cmds = append(cmds, m.handoffPollCmd(m.handoffSeq), handoffTick(m.cfg.UI.HandoffPoll, m.handoffSeq))
	}
	return cmds
}

func (m *Model) moveSidebar(step int) {
	threads := m.sidebarThreads()
	if len(threads) == 0 {
		return
	}
	m.sidebarIndex = clampInt(m.sidebarIndex+step, 0, len(threads)-1)
	m.renderPanes()
}

func (m *Model) clampSidebarIndex() {
	threads := m.sidebarThreads()
	if len(threads) == 0 {
		m.sidebarIndex = 0
		return
	}
	m.sidebarIndex = clampInt(m.sidebarIndex, 0, len(threads)-1)
}

func (m Model) highlightedThread() (domain.Thread, bool) {
	threads := m.sidebarThreads()
	if len(threads) == 0 || m.sidebarIndex < 0 || m.sidebarIndex >= len(threads) {
		return domain.Thread{}, false
	}
	return threads[m.sidebarIndex], true
}

func (m Model) typingCmd(typing bool) tea.Cmd {
	switch m.router.ActiveTab() {
	case domain.TabUser:
		if m.router.Selection().ThreadID == "" {
			return nil
		}
		team := m.team
		return m.actionCmd(func(ctx context.Context) error {
			if typing {
				return team.StartTyping(ctx)
			}
			return team.StopTyping(ctx)
		}, "", false, false)
	case domain.TabVisitor:
		if m.router.Selection().ThreadID == "" {
			return nil
		}
		visitor := m.visitor
		return m.actionCmd(func(ctx context.Context) error {
			return visitor.SetAgentTyping(ctx, typing)
		}, "", false, false)
	default:
		return nil
	}
}

func (m Model) refreshActiveCmd() tea.Cmd {
	sel := m.router.Selection()
	if sel.ThreadID == "" {
		return nil
	}
	switch sel.Tab {
	case domain.TabUser:
		team := m.team
		return m.actionCmd(func(ctx context.Context) error {
			if err := team.RefreshMessages(ctx); err != nil {
				return err
			}
			// The thread is on screen, so whatever just arrived is read.
			return team.MarkAsRead(ctx)
		}, "", false, false)
	case domain.TabVisitor:
		visitor := m.visitor
		return m.actionCmd(func(ctx context.Context) error {
			return visitor.RefreshMessages(ctx)
		}, "", false, false)
	default:
		return nil
	}
}

// dmRecipientIDs collects the counterpart ids of the DM threads, the set the
// presence cache tracks.
func dmRecipientIDs(threads []domain.Thread) []string {
	var ids []string
	for _, thread := range threads {
		if thread.Type == domain.ThreadTeamDM && thread.Recipient != nil && thread.Recipient.ID != "" {
			ids = append(ids, thread.Recipient.ID)
		}
	}
	return ids
}

func threadLabel(thread *domain.Thread) string {
	if thread == nil {
		return "thread"
	}
	return thread.DisplayTitle()
}
