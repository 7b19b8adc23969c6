package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"unichat/internal/adapter"
	"unichat/internal/api"
	"unichat/internal/config"
	"unichat/internal/domain"
)

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{RequestTimeout: time.Second},
		User: config.UserConfig{
			ID:   "u1",
			Name: "Mira",
		},
		UI: config.UIConfig{
			DefaultTab:     "echo",
			ThreadPoll:     30 * time.Second,
			HandoffPoll:    60 * time.Second,
			SearchDebounce: 300 * time.Millisecond,
			PageSize:       50,
		},
	}
}

func testModel(t *testing.T, startLink string) Model {
	t.Helper()
	echo := adapter.NewEcho(nil, "test-model", nil, "u1", "Mira", nil)
	team := adapter.NewTeam(nil, "u1", "Mira", nil)
	visitor := adapter.NewVisitor(nil, "agent1", "Mira", nil)
	return New(testConfig(), nil, echo, team, visitor, startLink, nil)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func asModel(t *testing.T, updated tea.Model) Model {
	t.Helper()
	m, ok := updated.(Model)
	require.True(t, ok)
	return m
}

func TestTabSwitchingLeavesOtherSelectionsAlone(t *testing.T) {
	m := testModel(t, "")
	m.threads[domain.TabUser] = []domain.Thread{{ID: "t1", Type: domain.ThreadTeamChannel, Title: "general"}}

	m.router.SelectThread(domain.TabUser, "t1")
	require.Equal(t, "t1", m.router.Selected(domain.TabUser))

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = asModel(t, updated)
	require.Equal(t, domain.TabVisitor, m.router.ActiveTab())
	require.Empty(t, m.router.Selection().ThreadID)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = asModel(t, updated)
	require.Equal(t, domain.TabUser, m.router.ActiveTab())
	require.Equal(t, "t1", m.router.Selection().ThreadID)
	require.Equal(t, "?tab=user&thread=t1", m.Link())
}

func TestQuickSwitchDebounceSingleCall(t *testing.T) {
	m := testModel(t, "")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlK})
	m = asModel(t, updated)
	require.Equal(t, overlayQuickSwitch, m.overlay)

	// Three rapid edits: each supersedes the previous debounce window.
	staleSeqs := []int{}
	for _, r := range []string{"a", "b", "c"} {
		staleSeqs = append(staleSeqs, m.searchSeq)
		updated, _ = m.Update(keyRunes(r))
		m = asModel(t, updated)
	}
	require.Equal(t, "abc", m.overlayInput.Value())

	// Only the latest window may produce a search call.
	for _, seq := range staleSeqs {
		updated, cmd := m.Update(searchTickMsg{seq: seq})
		m = asModel(t, updated)
		require.Nil(t, cmd, "stale debounce window seq=%d must not search", seq)
	}
	updated, cmd := m.Update(searchTickMsg{seq: m.searchSeq})
	m = asModel(t, updated)
	require.NotNil(t, cmd)
}

func TestDeepLinkRendersOnlyTeamContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/threads", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == string(domain.ThreadTeamChannel) {
			fmt.Fprint(w, `[{"id":"t2","type":"channel","title":"launch-room"}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/threads/t2/messages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"m1","sender_id":"u2","sender_name":"Noa","content":"team only content"}]`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := api.New(server.URL, "", time.Second, nil)
	echo := adapter.NewEcho(nil, "test-model", nil, "u1", "Mira", nil)
	echo.SendMessage("echo secret prompt", nil)
	team := adapter.NewTeam(client, "u1", "Mira", nil)
	visitor := adapter.NewVisitor(client, "agent1", "Mira", nil)

	m := New(testConfig(), client, echo, team, visitor, "?tab=user&thread=t2", nil)
	require.Equal(t, domain.TabUser, m.router.ActiveTab())
	require.Equal(t, "t2", m.router.Selection().ThreadID)

	require.NoError(t, team.LoadThread(context.Background(), "t2"))
	updated, _ := m.Update(threadOpenedMsg{tab: domain.TabUser, threadID: "t2"})
	m = asModel(t, updated)

	content := m.timelineContent()
	require.Contains(t, content, "team only content")
	require.NotContains(t, content, "echo secret prompt")
}

func TestMalformedStartLinkFallsBackToDefault(t *testing.T) {
	m := testModel(t, "?tab=payments&thread=%zz")
	require.Equal(t, domain.TabEcho, m.router.ActiveTab())
	require.Empty(t, m.router.Selection().ThreadID)
}

func TestCreateChannelSelectsUnderUserTab(t *testing.T) {
	m := testModel(t, "")
	require.Equal(t, domain.TabEcho, m.router.ActiveTab())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlG})
	m = asModel(t, updated)
	require.Equal(t, overlayCreateChannel, m.overlay)

	updated, _ = m.Update(createThreadMsg{tab: domain.TabUser, threadID: "general-id"})
	m = asModel(t, updated)

	require.Equal(t, overlayNone, m.overlay)
	require.Equal(t, domain.TabUser, m.router.ActiveTab())
	require.Equal(t, "general-id", m.router.Selection().ThreadID)
	require.Equal(t, "?tab=user&thread=general-id", m.Link())
}

func TestCreateChannelErrorKeepsOverlayOpen(t *testing.T) {
	m := testModel(t, "")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlG})
	m = asModel(t, updated)

	updated, _ = m.Update(createThreadMsg{tab: domain.TabUser, err: fmt.Errorf("name already taken")})
	m = asModel(t, updated)

	require.Equal(t, overlayCreateChannel, m.overlay)
	require.Contains(t, m.overlayErr, "name already taken")
	require.Equal(t, domain.TabEcho, m.router.ActiveTab())
}

func TestCreateChannelRejectsSpacesInline(t *testing.T) {
	m := testModel(t, "")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlG})
	m = asModel(t, updated)

	updated, _ = m.Update(keyRunes("two words"))
	m = asModel(t, updated)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = asModel(t, updated)

	require.Equal(t, overlayCreateChannel, m.overlay)
	require.Contains(t, m.overlayErr, "spaces")
}

func TestDMOverlayExcludesSelfAndAIContacts(t *testing.T) {
	m := testModel(t, "")
	m.contacts = []domain.Contact{
		{ID: "u1", Name: "Mira"},
		{ID: "u2", Name: "Noa"},
		{ID: "bot", Name: "Echo", IsAI: true},
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	m = asModel(t, updated)
	items := m.overlayItems()
	require.Len(t, items, 1)
	require.Contains(t, items[0].label, "Noa")
}

func TestHandoffPollGuardDropsStaleTicks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	client := api.New(server.URL, "", time.Second, nil)

	echo := adapter.NewEcho(nil, "test-model", nil, "u1", "Mira", nil)
	team := adapter.NewTeam(client, "u1", "Mira", nil)
	visitor := adapter.NewVisitor(client, "agent1", "Mira", nil)
	m := New(testConfig(), client, echo, team, visitor, "?tab=visitor", nil)

	seq := m.handoffSeq
	updated, cmd := m.Update(handoffTickMsg{seq: seq})
	m = asModel(t, updated)
	require.NotNil(t, cmd, "current window polls")

	// Leaving the visitor tab invalidates the running poll chain.
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = asModel(t, updated)
	require.NotEqual(t, domain.TabVisitor, m.router.ActiveTab())

	updated, cmd = m.Update(handoffTickMsg{seq: seq})
	_ = asModel(t, updated)
	require.Nil(t, cmd, "stale poll tick must die silently")
}

func TestEscClosesThreadThenAsksToQuit(t *testing.T) {
	m := testModel(t, "?tab=user&thread=t1")
	require.Equal(t, "t1", m.router.Selection().ThreadID)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = asModel(t, updated)
	require.Empty(t, m.router.Selection().ThreadID)
	require.False(t, m.quitConfirm)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = asModel(t, updated)
	require.True(t, m.quitConfirm)
}

func TestSendOnEchoCreatesConversationAndLink(t *testing.T) {
	m := testModel(t, "")
	updated, cmd := m.Update(keyRunes("hello echo"))
	m = asModel(t, updated)
	_ = cmd
	require.Equal(t, "hello echo", m.input.Value())

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = asModel(t, updated)

	require.Empty(t, m.input.Value())
	require.NotEmpty(t, m.router.Selection().ThreadID)
	require.True(t, strings.HasPrefix(m.Link(), "?tab=echo&thread="))
	require.Len(t, m.echo.Messages(), 1)
	require.Equal(t, domain.StatusSending, m.echo.Messages()[0].Status)
}

func TestSlashOpenFollowsLink(t *testing.T) {
	m := testModel(t, "")
	m.input.SetValue("/open ?tab=visitor&thread=v9")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = asModel(t, updated)

	require.Equal(t, domain.TabVisitor, m.router.ActiveTab())
	require.Equal(t, "v9", m.router.Selection().ThreadID)
	require.Equal(t, "?tab=visitor&thread=v9", m.Link())
}

func TestUnknownSlashCommandReportsInStatus(t *testing.T) {
	m := testModel(t, "")
	m.input.SetValue("/frobnicate")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = asModel(t, updated)
	require.Contains(t, m.statusLine, "unknown command")
}

// slashServer records team message mutations for the slash-command tests.
type slashServer struct {
	editedBody string
	hits       map[string]int
}

func (s *slashServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/threads", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == string(domain.ThreadTeamChannel) {
			fmt.Fprint(w, `[{"id":"ch1","type":"channel","title":"general"}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/threads/ch1/messages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":"m1","sender_id":"u2","sender_name":"Noa","content":"yours first"},
			{"id":"m2","sender_id":"u1","sender_name":"Mira","content":"mine last"}
		]`)
	})
	mux.HandleFunc("/threads/ch1/messages/", func(w http.ResponseWriter, r *http.Request) {
		s.hits[r.URL.Path]++
		if strings.HasSuffix(r.URL.Path, "/m2/edit") {
			var body struct {
				Content string `json:"content"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			s.editedBody = body.Content
		}
		if strings.HasSuffix(r.URL.Path, "/replies") {
			fmt.Fprint(w, `[{"id":"r1","content":"one"},{"id":"r2","content":"two"}]`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newSlashModel(t *testing.T) (Model, *slashServer) {
	t.Helper()
	stub := &slashServer{hits: map[string]int{}}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	client := api.New(server.URL, "", time.Second, nil)
	echo := adapter.NewEcho(nil, "test-model", nil, "u1", "Mira", nil)
	team := adapter.NewTeam(client, "u1", "Mira", nil)
	visitor := adapter.NewVisitor(client, "agent1", "Mira", nil)

	m := New(testConfig(), client, echo, team, visitor, "?tab=user&thread=ch1", nil)
	require.NoError(t, team.LoadThread(context.Background(), "ch1"))
	return m, stub
}

func runAction(t *testing.T, cmd tea.Cmd) actionDoneMsg {
	t.Helper()
	require.NotNil(t, cmd)
	done, ok := cmd().(actionDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	return done
}

func TestSlashEditRewritesLastOwnMessage(t *testing.T) {
	m, stub := newSlashModel(t)

	cmd := m.handleSlash("/edit better wording")
	runAction(t, cmd)

	require.Equal(t, 1, stub.hits["/threads/ch1/messages/m2/edit"])
	require.Equal(t, "better wording", stub.editedBody)
	messages := m.team.Messages()
	require.Equal(t, "better wording", messages[1].Content)
	require.NotNil(t, messages[1].EditedAt)
	require.Equal(t, "yours first", messages[0].Content, "only own messages are edit targets")
}

func TestSlashDelTombstonesLastOwnMessage(t *testing.T) {
	m, stub := newSlashModel(t)

	runAction(t, m.handleSlash("/del"))

	require.Equal(t, 1, stub.hits["/threads/ch1/messages/m2/delete"])
	require.NotNil(t, m.team.Messages()[1].DeletedAt)
}

func TestSlashReactAndUnreactMirrorLocally(t *testing.T) {
	m, stub := newSlashModel(t)

	runAction(t, m.handleSlash("/react 👍"))
	require.Equal(t, 1, stub.hits["/threads/ch1/messages/m2/reactions"])
	require.Equal(t, []string{"u1"}, m.team.Messages()[1].Reactions["👍"])

	runAction(t, m.handleSlash("/unreact 👍"))
	require.Equal(t, 1, stub.hits["/threads/ch1/messages/m2/reactions/remove"])
	_, present := m.team.Messages()[1].Reactions["👍"]
	require.False(t, present)
}

func TestSlashRepliesReportsCount(t *testing.T) {
	m, stub := newSlashModel(t)

	done := runAction(t, m.handleSlash("/replies"))
	require.Contains(t, done.status, "2 replies")
	require.Equal(t, 1, stub.hits["/threads/ch1/messages/m2/replies"])
}

func TestSlashEditOutsideTeamThreadRefused(t *testing.T) {
	m := testModel(t, "")
	require.Nil(t, m.handleSlash("/edit whatever"))
	require.Contains(t, m.statusLine, "team thread")
}

func TestTeamSidebarShowsPresenceGlyph(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/presence", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"user_id":"u2","status":"online"}]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := api.New(server.URL, "", time.Second, nil)
	echo := adapter.NewEcho(nil, "test-model", nil, "u1", "Mira", nil)
	team := adapter.NewTeam(client, "u1", "Mira", nil)
	visitor := adapter.NewVisitor(client, "agent1", "Mira", nil)
	m := New(testConfig(), client, echo, team, visitor, "?tab=user", nil)

	dm := domain.Thread{ID: "dm1", Type: domain.ThreadTeamDM, Recipient: &domain.Recipient{ID: "u2", Name: "Noa"}}
	updated, cmd := m.Update(threadsLoadedMsg{tab: domain.TabUser, threads: []domain.Thread{dm}})
	m = asModel(t, updated)
	runAction(t, cmd)

	presence, ok := m.team.PresenceFor("u2")
	require.True(t, ok)
	require.Equal(t, domain.PresenceOnline, presence.Status)
	require.Contains(t, m.renderSidebar(30), "●")
}

func TestJoinChannelAcceptsRawThreadID(t *testing.T) {
	m := testModel(t, "")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlJ})
	m = asModel(t, updated)
	require.Equal(t, overlayJoinChannel, m.overlay)

	// Empty input with no candidate highlighted is rejected inline.
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = asModel(t, updated)
	require.Equal(t, "channel id required", m.overlayErr)

	// A typed id not present in the candidate list is submitted as-is.
	updated, _ = m.Update(keyRunes("ch-777"))
	m = asModel(t, updated)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = asModel(t, updated)
	require.True(t, m.overlayBusy)
	require.NotNil(t, cmd)
}

func TestSidebarFilterSuppressesTeamPartition(t *testing.T) {
	m := testModel(t, "?tab=user")
	m.threads[domain.TabUser] = []domain.Thread{
		{ID: "c1", Type: domain.ThreadTeamChannel, Title: "general"},
		{ID: "c2", Type: domain.ThreadTeamChannel, Title: "random"},
		{ID: "d1", Type: domain.ThreadTeamDM, Recipient: &domain.Recipient{ID: "u2", Name: "Noa"}},
	}
	require.Contains(t, m.renderSidebar(40), "Direct messages")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	m = asModel(t, updated)
	updated, _ = m.Update(keyRunes("gen"))
	m = asModel(t, updated)

	threads := m.sidebarThreads()
	require.Len(t, threads, 1)
	require.Equal(t, "c1", threads[0].ID)

	sidebar := m.renderSidebar(40)
	require.Contains(t, sidebar, "Results")
	require.NotContains(t, sidebar, "Direct messages")

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = asModel(t, updated)
	require.False(t, m.filtering)
	require.Len(t, m.sidebarThreads(), 3)
}

func TestTypingRetractedWhenDraftCleared(t *testing.T) {
	m := testModel(t, "")

	updated, _ := m.Update(keyRunes("a"))
	m = asModel(t, updated)
	require.True(t, m.typingSent)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m = asModel(t, updated)
	require.False(t, m.typingSent, "erasing the draft must retract typing state")
}

func TestHelpAndFooterDocumentKeyBindings(t *testing.T) {
	m := testModel(t, "")
	require.Contains(t, helpBody(), "alt+1/2/3")
	require.Contains(t, helpBody(), "ctrl+f")
	require.Contains(t, m.renderFooter(), "alt+1..3")
}

func TestQuickSwitchListCapped(t *testing.T) {
	m := testModel(t, "")
	var many []domain.Thread
	for i := 0; i < 40; i++ {
		many = append(many, domain.Thread{
			ID:             fmt.Sprintf("t%d", i),
			Type:           domain.ThreadTeamChannel,
			Title:          fmt.Sprintf("room-%d", i),
			LastActivityAt: time.Now().Add(-time.Duration(i) * time.Minute),
		})
	}
	m.threads[domain.TabUser] = many

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlK})
	m = asModel(t, updated)
	items := m.overlayItems()
	require.Len(t, items, 15)
	require.Contains(t, items[0].label, "room-0")
}
