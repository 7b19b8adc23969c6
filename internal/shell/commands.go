package shell

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"unichat/internal/adapter"
	"unichat/internal/api"
	"unichat/internal/domain"
)

func (m Model) loadThreadsCmd(tab domain.Tab) tea.Cmd {
	conv := m.conversation(tab)
	timeout := m.cfg.API.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		threads, err := conv.Threads(ctx)
		return threadsLoadedMsg{tab: tab, threads: threads, err: err}
	}
}

func (m Model) openThreadCmd(tab domain.Tab, threadID string, unread int) tea.Cmd {
	conv := m.conversation(tab)
	timeout := m.cfg.API.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := conv.LoadThread(ctx, threadID)
		return threadOpenedMsg{tab: tab, threadID: threadID, unread: unread, err: err}
	}
}

func (m Model) deliverCmd(tab domain.Tab, messageID string) tea.Cmd {
	conv := m.conversation(tab)
	timeout := m.cfg.API.RequestTimeout
	return func() tea.Msg {
		// Streaming replies can outlive the request timeout.
		ctx := context.Background()
		if tab != domain.TabEcho {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		err := conv.DeliverMessage(ctx, messageID)
		return deliverDoneMsg{tab: tab, messageID: messageID, err: err}
	}
}

func (m Model) retryCmd(tab domain.Tab, messageID string) tea.Cmd {
	conv := m.conversation(tab)
	return func() tea.Msg {
		err := conv.RetryMessage(context.Background(), messageID)
		return deliverDoneMsg{tab: tab, messageID: messageID, err: err}
	}
}

func (m Model) loadContactsCmd() tea.Cmd {
	client := m.client
	timeout := m.cfg.API.RequestTimeout
	return func() tea.Msg {
		if client == nil {
			return contactsMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		contacts, err := client.FetchContacts(ctx)
		return contactsMsg{contacts: contacts, err: err}
	}
}

func (m Model) loadChannelsCmd() tea.Cmd {
	client := m.client
	timeout := m.cfg.API.RequestTimeout
	return func() tea.Msg {
		if client == nil {
			return channelsMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		channels, err := client.FetchChannels(ctx)
		return channelsMsg{channels: channels, err: err}
	}
}

func searchDebounce(delay time.Duration, seq int) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return searchTickMsg{seq: seq}
	})
}

func (m Model) searchCmd(seq int, query string) tea.Cmd {
	client := m.client
	timeout := m.cfg.API.RequestTimeout
	return func() tea.Msg {
		if client == nil {
			return searchDoneMsg{seq: seq}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		results, err := client.Search(ctx, query,
			[]api.SearchScope{api.ScopeThreads, api.ScopeContacts, api.ScopeMessages}, m.cfg.UI.PageSize)
		return searchDoneMsg{seq: seq, results: results, err: err}
	}
}

func (m Model) createThreadCmd(tab domain.Tab, cfg adapter.ThreadConfig) tea.Cmd {
	conv := m.conversation(tab)
	timeout := m.cfg.API.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		id, err := conv.CreateThread(ctx, cfg)
		return createThreadMsg{tab: tab, threadID: id, err: err}
	}
}

func (m Model) repliesCmd(messageID string) tea.Cmd {
	team := m.team
	timeout := m.cfg.API.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		replies, err := team.LoadReplies(ctx, messageID)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		label := fmt.Sprintf("%d replies", len(replies))
		if len(replies) == 1 {
			label = "1 reply"
		}
		return actionDoneMsg{status: label + " on the latest message"}
	}
}

func handoffTick(interval time.Duration, seq int) tea.Cmd {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return handoffTickMsg{seq: seq}
	})
}

func (m Model) handoffPollCmd(seq int) tea.Cmd {
	visitor := m.visitor
	timeout := m.cfg.API.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := visitor.RefreshHandoffQueue(ctx)
		return handoffDoneMsg{seq: seq, err: err}
	}
}

func waitEchoEvent(ch <-chan adapter.StreamEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return echoEventMsg(event)
	}
}

func (m Model) actionCmd(run func(ctx context.Context) error, okStatus string, reloadThreads, reloadActive bool) tea.Cmd {
	timeout := m.cfg.API.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := run(ctx); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: okStatus, reloadThreads: reloadThreads, reloadActive: reloadActive}
	}
}
