package shell

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"unichat/internal/aggregate"
	"unichat/internal/domain"
	"unichat/internal/render"
)

func (m Model) View() string {
	header := m.renderHeader()
	content := m.renderContent()
	input := m.renderInput()
	footer := m.renderFooter()
	out := lipgloss.JoinVertical(lipgloss.Left, header, content, input, footer)
	if m.overlay != overlayNone {
		out = m.renderOverlay()
	}
	if m.quitConfirm {
		out = m.renderQuitModal()
	}
	return m.theme.root.Render(out)
}

func (m Model) renderHeader() string {
	contentWidth := maxInt(40, m.width-4)
	labels := map[domain.Tab]string{
		domain.TabEcho:    "1 Echo",
		domain.TabUser:    "2 Team",
		domain.TabVisitor: "3 Visitors",
	}
	var tabs []string
	for _, tab := range tabOrder {
		label := labels[tab]
		if unread := m.tabUnread(tab); unread > 0 {
			label = fmt.Sprintf("%s (%d)", label, unread)
		}
		style := m.theme.tabInactive
		if tab == m.router.ActiveTab() {
			style = m.theme.tabActive
		} else if m.tabUnread(tab) > 0 {
			style = m.theme.tabUnread
		}
		tabs = append(tabs, style.Render(label))
	}
	row := strings.Join(tabs, " ")
	if m.inflight {
		row += "  " + m.spinner.View()
	}
	return m.theme.header.Width(contentWidth).Render(row)
}

func (m Model) tabUnread(tab domain.Tab) int {
	total := 0
	for _, thread := range m.threads[tab] {
		if !thread.Muted {
			total += thread.UnreadCount
		}
	}
	return total
}

func (m Model) renderContent() string {
	contentWidth := maxInt(40, m.width-4)
	contentHeight := maxInt(8, m.height-10)
	leftWidth := clampInt(int(float64(contentWidth)*0.3), 24, 44)
	rightWidth := contentWidth - leftWidth - 1

	sidebar := m.theme.panel.Width(leftWidth).Height(contentHeight).Render(m.renderSidebar(leftWidth - 4))
	main := m.theme.panel.Width(rightWidth).Height(contentHeight).Render(m.renderMain())
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", main)
}

func (m Model) renderSidebar(width int) string {
	tab := m.router.ActiveTab()
	threads := m.sidebarThreads()
	var b strings.Builder

	// An active filter collapses the sectioned lists into one unified
	// result list.
	if m.filterActive() {
		b.WriteString(m.filter.View() + "\n")
		b.WriteString(m.theme.panelTitle.Render("Results") + "\n")
		m.writeThreadRows(&b, threads, threads, width)
		if len(threads) == 0 {
			b.WriteString(m.theme.sidebarDim.Render("(no matches)") + "\n")
		}
		return strings.TrimRight(b.String(), "\n")
	}

	switch tab {
	case domain.TabUser:
		lists := aggregate.PartitionTeam(threads)
		b.WriteString(m.theme.panelTitle.Render("Channels") + "\n")
		m.writeThreadRows(&b, lists.Channels, threads, width)
		b.WriteString("\n" + m.theme.panelTitle.Render("Direct messages") + "\n")
		m.writeThreadRows(&b, lists.DirectMessages, threads, width)
	case domain.TabVisitor:
		b.WriteString(m.theme.panelTitle.Render("Active visitors") + "\n")
		m.writeThreadRows(&b, threads, threads, width)
		if queue := m.visitor.HandoffQueue(); len(queue) > 0 {
			b.WriteString("\n" + m.theme.panelTitle.Render(fmt.Sprintf("Waiting (%d)", len(queue))) + "\n")
			for _, handoff := range queue {
				line := truncate(handoff.VisitorName+" · "+handoff.Reason, width)
				b.WriteString(m.theme.sidebarDim.Render(line) + "\n")
			}
		}
	default:
		b.WriteString(m.theme.panelTitle.Render("Conversations") + "\n")
		m.writeThreadRows(&b, threads, threads, width)
	}

	if len(threads) == 0 {
		b.WriteString(m.theme.sidebarDim.Render("(empty)") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// writeThreadRows renders one section of the sidebar; highlight position is
// tracked against the full ordered list so up/down moves across sections.
func (m Model) writeThreadRows(b *strings.Builder, section, all []domain.Thread, width int) {
	selected := m.router.Selected(m.router.ActiveTab())
	for _, thread := range section {
		label := thread.DisplayTitle()
		if thread.Type == domain.ThreadTeamChannel {
			label = "#" + label
		}
		if thread.Type == domain.ThreadTeamDM && thread.Recipient != nil {
			if presence, ok := m.team.PresenceFor(thread.Recipient.ID); ok {
				label = presenceGlyph(presence) + " " + label
			}
		}
		if thread.UnreadCount > 0 {
			label = fmt.Sprintf("%s (%d)", label, thread.UnreadCount)
		}
		var marks []string
		if thread.Pinned {
			marks = append(marks, "📌")
		}
		if thread.Muted {
			marks = append(marks, "🔇")
		}
		if len(marks) > 0 {
			label += " " + strings.Join(marks, "")
		}
		label = truncate(label, width)

		style := m.theme.sidebarItem
		if indexOfThread(all, thread.ID) == m.sidebarIndex {
			style = m.theme.sidebarPick
		} else if thread.ID == selected {
			style = m.theme.panelTitle
		} else if thread.Muted {
			style = m.theme.sidebarDim
		}
		b.WriteString(style.Render(label) + "\n")
	}
}

func presenceGlyph(p domain.Presence) string {
	switch {
	case p.DND || p.Status == domain.PresenceDND:
		return "⛔"
	case p.Status == domain.PresenceOnline:
		return "●"
	case p.Status == domain.PresenceAway:
		return "◐"
	default:
		return "○"
	}
}

func indexOfThread(threads []domain.Thread, id string) int {
	for i, thread := range threads {
		if thread.ID == id {
			return i
		}
	}
	return -1
}

func (m Model) renderMain() string {
	sel := m.router.Selection()
	if sel.ThreadID == "" {
		hint := "Pick a conversation (up/down + enter), or ctrl+k to search."
		if sel.Tab == domain.TabEcho {
			hint = "Type to start a new conversation with Echo."
		}
		return m.theme.helpText.Render(hint)
	}
	var b strings.Builder
	if sel.Tab == domain.TabVisitor {
		if session := m.visitor.Session(); session != nil && session.PageURL != "" {
			b.WriteString(m.theme.helpText.Render(truncate("viewing "+session.PageURL, m.timeline.Width)) + "\n")
		}
	}
	b.WriteString(m.timeline.View())
	return b.String()
}

func (m *Model) renderPanes() {
	atBottom := m.timeline.AtBottom()
	offset := m.timeline.YOffset
	m.timeline.SetContent(m.timelineContent())
	if atBottom {
		m.timeline.GotoBottom()
	} else {
		m.timeline.SetYOffset(offset)
	}
}

func (m Model) timelineContent() string {
	sel := m.router.Selection()
	if sel.ThreadID == "" {
		return ""
	}
	conv := m.conversation(sel.Tab)
	thread := conv.Thread()
	threadType := domain.ThreadEcho
	if thread != nil {
		threadType = thread.Type
	}
	width := maxInt(24, m.timeline.Width-2)
	out := render.Timeline(conv.Messages(), threadType, m.unreadIndex, width, time.Now(), m.styles)

	switch sel.Tab {
	case domain.TabEcho:
		if m.echo.IsStreaming() {
			partial := m.echo.StreamingContent()
			if partial == "" {
				partial = "…"
			}
			out += "\n" + m.styles.SenderName.Render("Echo") + "\n" + render.WrapText(partial, width)
		}
	case domain.TabUser:
		if line := render.TypingLine(m.team.TypingUsers(time.Now())); line != "" {
			out += "\n" + m.styles.Typing.Render(line)
		}
	case domain.TabVisitor:
		if line := render.TypingLine(m.visitor.TypingUsers(time.Now())); line != "" {
			out += "\n" + m.styles.Typing.Render(line)
		}
	}
	return out
}

func (m Model) renderInput() string {
	contentWidth := maxInt(40, m.width-4)
	view := m.input.View()
	if m.inflight {
		view = m.spinner.View() + " " + view
	}
	return m.theme.inputPanel.Width(contentWidth).Render(view)
}

func (m Model) renderFooter() string {
	contentWidth := maxInt(40, m.width-4)
	statusStyle := m.theme.status
	lowered := strings.ToLower(m.statusLine)
	if strings.Contains(lowered, "fail") || strings.Contains(lowered, "error") || strings.Contains(lowered, "unavailable") {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, 140)) +
		"  " + m.theme.link.Render(m.router.Link())
	hints := m.theme.helpText.Render("Tab/Shift+Tab or alt+1..3 tabs · ctrl+k switch · ctrl+f filter · ctrl+n dm · ctrl+g channel · ctrl+j join · /help · ctrl+c quit")
	return m.theme.footer.Width(contentWidth).Render(line + "\n" + hints)
}

func (m Model) renderOverlay() string {
	canvasWidth := maxInt(40, m.width-4)
	canvasHeight := maxInt(12, m.height-4)
	overlayWidth := clampInt(int(float64(canvasWidth)*0.6), 44, 90)

	titles := map[overlayKind]string{
		overlayQuickSwitch:   "Jump to conversation",
		overlayNewDM:         "New direct message",
		overlayCreateChannel: "Create channel",
		overlayJoinChannel:   "Join channel",
		overlayHelp:          "Commands",
	}
	var b strings.Builder
	b.WriteString(m.theme.panelTitle.Render(titles[m.overlay]) + "\n\n")

	if m.overlay == overlayHelp {
		b.WriteString(helpBody())
		b.WriteString("\n\n" + m.theme.helpText.Render("esc or enter to close"))
		return m.placeModal(canvasWidth, canvasHeight, overlayWidth, b.String())
	}

	b.WriteString(m.overlayInput.View() + "\n")
	if m.overlayErr != "" {
		b.WriteString(m.theme.errorStatus.Render(m.overlayErr) + "\n")
	}
	if m.overlayBusy {
		b.WriteString(m.spinner.View() + " working...\n")
	}
	if m.overlay != overlayCreateChannel {
		b.WriteString("\n")
		items := m.overlayItems()
		if len(items) == 0 {
			b.WriteString(m.theme.helpText.Render("no matches") + "\n")
		}
		for i, item := range items {
			style := m.theme.sidebarItem
			prefix := "  "
			if i == m.overlayIndex {
				style = m.theme.overlayPick
				prefix = "> "
			}
			b.WriteString(style.Render(prefix+truncate(item.label, overlayWidth-6)) + "\n")
		}
	}
	b.WriteString("\n" + m.theme.helpText.Render("up/down choose · enter confirm · esc cancel"))
	return m.placeModal(canvasWidth, canvasHeight, overlayWidth, b.String())
}

func helpBody() string {
	return strings.Join([]string{
		"tab / shift+tab  cycle tabs (alt+1/2/3 jump straight to one)",
		"ctrl+k           quick-switch across every conversation",
		"ctrl+f           filter the sidebar list",
		"",
		"/open <link>     jump to ?tab=...&thread=...",
		"/pin /unpin      pin the selected team thread",
		"/mute /unmute    mute the selected team thread",
		"/delete          delete the selected team thread",
		"/edit <text>     rewrite your last team message",
		"/del             delete your last team message",
		"/react <emoji>   react to the latest message (/unreact removes)",
		"/replies         reply count on the latest message",
		"/dnd             toggle do-not-disturb",
		"/feedback up|down  rate the last assistant reply",
		"/canned [name]   visitor canned responses",
		"/retry           resend the last failed message",
		"/new             new conversation / direct message",
		"/quit            exit",
	}, "\n")
}

func (m Model) renderQuitModal() string {
	canvasWidth := maxInt(40, m.width-4)
	canvasHeight := maxInt(12, m.height-4)
	modalWidth := clampInt(int(float64(canvasWidth)*0.5), 36, 64)
	rule := m.theme.link.Render(strings.Repeat("─", clampInt(modalWidth-6, 10, 60)))
	body := strings.Join([]string{
		m.theme.errorStatus.Render("Quit unichat?"),
		"",
		rule,
		m.theme.helpText.Render("Conversations stay on the server."),
		rule,
		"",
		m.theme.panelTitle.Render("[Y / Enter] Quit") + "    " + m.theme.helpText.Render("[N / Esc] Stay"),
	}, "\n")
	return m.placeModal(canvasWidth, canvasHeight, modalWidth, body)
}

func (m Model) placeModal(canvasWidth, canvasHeight, width int, body string) string {
	panel := m.theme.overlay.Width(width).Render(body)
	return lipgloss.Place(
		canvasWidth,
		canvasHeight,
		lipgloss.Center,
		lipgloss.Center,
		panel,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("#120924")),
	)
}

func (m *Model) resize() {
	contentWidth := maxInt(40, m.width-4)
	leftWidth := clampInt(int(float64(contentWidth)*0.3), 24, 44)
	rightWidth := contentWidth - leftWidth - 1
	m.input.Width = maxInt(20, contentWidth-6)
	m.timeline.Width = maxInt(20, rightWidth-4)
	m.timeline.Height = maxInt(5, m.height-13)
}
