package shell

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"unichat/internal/adapter"
	"unichat/internal/domain"
	"unichat/internal/route"
)

func (m *Model) handleSlash(raw string) tea.Cmd {
	parts := strings.Fields(strings.TrimSpace(raw))
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	tail := parts[1:]
	switch cmd {
	case "/help":
		m.openOverlay(overlayHelp)
		return nil

	case "/quit", "/exit":
		m.quitConfirm = true
		return nil

	case "/open":
		if len(tail) == 0 {
			m.statusLine = "usage: /open ?tab=user&thread=t2"
			return nil
		}
		sel := route.ParseLink(tail[0], m.router.ActiveTab())
		var cmds []tea.Cmd
		cmds = append(cmds, m.switchTabEffects(sel.Tab)...)
		if sel.ThreadID != "" {
			m.router.SelectThread(sel.Tab, sel.ThreadID)
			m.inflight = true
			cmds = append(cmds, m.openThreadCmd(sel.Tab, sel.ThreadID, 0))
		} else {
			m.router.SelectTab(sel.Tab)
		}
		m.unreadIndex = -1
		m.statusLine = "opened " + m.router.Link()
		m.renderPanes()
		return tea.Batch(cmds...)

	case "/pin", "/unpin":
		thread := m.activeTeamThread()
		if thread == nil {
			m.statusLine = "pin applies to a selected team thread"
			return nil
		}
		pinned := cmd == "/pin"
		client := m.client
		id := thread.ID
		return m.actionCmd(func(ctx context.Context) error {
			return client.PinThread(ctx, id, pinned)
		}, ternary(pinned, "pinned", "unpinned"), true, false)

	case "/mute", "/unmute":
		thread := m.activeTeamThread()
		if thread == nil {
			m.statusLine = "mute applies to a selected team thread"
			return nil
		}
		muted := cmd == "/mute"
		client := m.client
		id := thread.ID
		return m.actionCmd(func(ctx context.Context) error {
			return client.MuteThread(ctx, id, muted)
		}, ternary(muted, "muted", "unmuted"), true, false)

	case "/delete":
		thread := m.activeTeamThread()
		if thread == nil {
			m.statusLine = "delete applies to a selected team thread"
			return nil
		}
		client := m.client
		id := thread.ID
		m.router.ClearThread(domain.TabUser)
		m.renderPanes()
		return m.actionCmd(func(ctx context.Context) error {
			return client.DeleteThread(ctx, id)
		}, "thread deleted", true, false)

	case "/edit":
		thread := m.activeTeamThread()
		if thread == nil {
			m.statusLine = "edit applies to a selected team thread"
			return nil
		}
		content := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), parts[0]))
		if content == "" {
			m.statusLine = "usage: /edit <new text> (rewrites your last message)"
			return nil
		}
		target := lastOwnEditable(m.team.Messages(), thread.Type)
		if target == "" {
			m.statusLine = "no message of yours to edit"
			return nil
		}
		team := m.team
		return m.actionCmd(func(ctx context.Context) error {
			return team.EditMessage(ctx, target, content)
		}, "message edited", false, false)

	case "/del":
		thread := m.activeTeamThread()
		if thread == nil {
			m.statusLine = "del applies to a selected team thread"
			return nil
		}
		target := lastOwnEditable(m.team.Messages(), thread.Type)
		if target == "" {
			m.statusLine = "no message of yours to delete"
			return nil
		}
		team := m.team
		return m.actionCmd(func(ctx context.Context) error {
			return team.DeleteMessage(ctx, target)
		}, "message deleted", false, false)

	case "/react", "/unreact":
		thread := m.activeTeamThread()
		if thread == nil {
			m.statusLine = "reactions apply to a selected team thread"
			return nil
		}
		if len(tail) == 0 {
			m.statusLine = "usage: " + cmd + " <emoji>"
			return nil
		}
		target := lastReactable(m.team.Messages(), thread.Type)
		if target == "" {
			m.statusLine = "no message to react to"
			return nil
		}
		emoji := tail[0]
		adding := cmd == "/react"
		team := m.team
		return m.actionCmd(func(ctx context.Context) error {
			if adding {
				return team.AddReaction(ctx, target, emoji)
			}
			return team.RemoveReaction(ctx, target, emoji)
		}, ternary(adding, "reacted "+emoji, "reaction removed"), false, false)

	case "/replies":
		thread := m.activeTeamThread()
		if thread == nil {
			m.statusLine = "replies apply to a selected team thread"
			return nil
		}
		target := lastReactable(m.team.Messages(), thread.Type)
		if target == "" {
			m.statusLine = "no message to inspect"
			return nil
		}
		return m.repliesCmd(target)

	case "/dnd":
		team := m.team
		next := !team.DND()
		return m.actionCmd(func(ctx context.Context) error {
			return team.SetPresenceDND(ctx, next)
		}, ternary(next, "do not disturb on", "do not disturb off"), false, false)

	case "/feedback":
		if m.router.ActiveTab() != domain.TabEcho {
			m.statusLine = "feedback applies to assistant replies"
			return nil
		}
		if len(tail) == 0 || (tail[0] != "up" && tail[0] != "down") {
			m.statusLine = "usage: /feedback up|down"
			return nil
		}
		target := lastAssistantMessage(m.echo.Messages())
		if target == "" {
			m.statusLine = "no assistant reply to rate"
			return nil
		}
		positive := tail[0] == "up"
		echo := m.echo
		return m.actionCmd(func(ctx context.Context) error {
			return echo.SendFeedback(ctx, target, positive)
		}, "feedback recorded", false, false)

	case "/retry":
		if m.lastFailed == "" {
			m.statusLine = "nothing to retry"
			return nil
		}
		m.inflight = true
		m.statusLine = "retrying..."
		return m.retryCmd(m.router.ActiveTab(), m.lastFailed)

	case "/canned":
		if m.router.ActiveTab() != domain.TabVisitor {
			m.statusLine = "canned responses are for visitor chats"
			return nil
		}
		if len(tail) == 0 {
			m.statusLine = cannedSummary(m.visitor.CannedResponses())
			visitor := m.visitor
			return m.actionCmd(func(ctx context.Context) error {
				return visitor.RefreshCannedResponses(ctx)
			}, "", false, false)
		}
		response, ok := m.visitor.CannedByShortcut(tail[0])
		if !ok {
			m.statusLine = "no canned response: " + tail[0]
			return nil
		}
		m.input.SetValue(response.Body)
		m.statusLine = "canned response loaded · enter to send"
		return nil

	case "/new":
		if m.router.ActiveTab() != domain.TabEcho {
			m.openOverlay(overlayNewDM)
			return nil
		}
		m.inflight = true
		return m.createThreadCmd(domain.TabEcho, adapter.ThreadConfig{})

	default:
		m.statusLine = "unknown command: " + cmd
		return nil
	}
}

// activeTeamThread returns the selected team thread, nil when the user tab
// has no selection.
func (m Model) activeTeamThread() *domain.Thread {
	if m.router.ActiveTab() != domain.TabUser {
		return nil
	}
	if m.router.Selected(domain.TabUser) == "" {
		return nil
	}
	return m.team.Thread()
}

// lastOwnEditable finds the newest own, still-editable message: the target
// of /edit and /del.
func lastOwnEditable(messages []domain.Message, threadType domain.ThreadType) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Editable(threadType) {
			return messages[i].ID
		}
	}
	return ""
}

// lastReactable finds the newest message reactions and reply threads apply
// to, own or not.
func lastReactable(messages []domain.Message, threadType domain.ThreadType) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Reactable(threadType) {
			return messages[i].ID
		}
	}
	return ""
}

func lastAssistantMessage(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].Own && messages[i].Status != domain.StatusFailed {
			return messages[i].ID
		}
	}
	return ""
}

func cannedSummary(responses []domain.CannedResponse) string {
	if len(responses) == 0 {
		return "no canned responses loaded yet"
	}
	shortcuts := make([]string, 0, len(responses))
	for _, response := range responses {
		shortcuts = append(shortcuts, response.Shortcut)
	}
	return fmt.Sprintf("canned: %s (use /canned <shortcut>)", strings.Join(shortcuts, ", "))
}
