// Package shell is the terminal UI: one surface multiplexing the echo,
// user, and visitor conversation domains behind a tab row, with the active
// selection mirrored into a shareable query-string link.
package shell

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"unichat/internal/adapter"
	"unichat/internal/aggregate"
	"unichat/internal/api"
	"unichat/internal/config"
	"unichat/internal/domain"
	"unichat/internal/render"
	"unichat/internal/route"
)

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayQuickSwitch
	overlayNewDM
	overlayCreateChannel
	overlayJoinChannel
	overlayHelp
)

var tabOrder = []domain.Tab{domain.TabEcho, domain.TabUser, domain.TabVisitor}

type Model struct {
	cfg    *config.Config
	log    *zap.Logger
	router *route.Router
	client *api.Client

	echo    *adapter.Echo
	team    *adapter.Team
	visitor *adapter.Visitor

	threads  map[domain.Tab][]domain.Thread
	contacts []domain.Contact
	joinable []domain.Thread

	// per-open-thread view state
	unreadIndex int
	lastFailed  string

	overlay       overlayKind
	overlayInput  textinput.Model
	overlayIndex  int
	overlayErr    string
	overlayBusy   bool
	searchSeq     int
	searchResults api.SearchResults
	searchDone    bool

	handoffSeq int

	sidebarIndex int
	filter       textinput.Model
	filtering    bool
	statusLine   string
	inflight     bool
	typingSent   bool
	quitConfirm  bool

	width  int
	height int

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model

	theme  uiTheme
	styles render.Styles
}

// New wires the shell over its three adapters. startLink seeds the router;
// malformed links fall back to the configured default tab.
func New(cfg *config.Config, client *api.Client, echo *adapter.Echo, team *adapter.Team, visitor *adapter.Visitor, startLink string, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Message · /help for commands"
	input.Focus()

	overlayInput := textinput.New()
	overlayInput.Prompt = "search ❯ "
	overlayInput.CharLimit = 200

	filter := textinput.New()
	filter.Prompt = "filter ❯ "
	filter.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	router := route.NewRouter(cfg.UI.DefaultTabOrEcho())
	router.Seed(startLink)

	return Model{
		cfg:          cfg,
		log:          log.Named("shell"),
		router:       router,
		client:       client,
		echo:         echo,
		team:         team,
		visitor:      visitor,
		threads:      map[domain.Tab][]domain.Thread{},
		unreadIndex:  -1,
		statusLine:   "starting...",
		input:        input,
		overlayInput: overlayInput,
		filter:       filter,
		timeline:     timeline,
		spinner:      sp,
		theme:        newTheme(),
		styles:       render.DefaultStyles(),
	}
}

// Link is the shareable form of the current selection, shown in the footer.
func (m Model) Link() string {
	return m.router.Link()
}

func (m Model) conversation(tab domain.Tab) adapter.Conversation {
	switch tab {
	case domain.TabUser:
		return m.team
	case domain.TabVisitor:
		return m.visitor
	default:
		return m.echo
	}
}

func (m Model) active() adapter.Conversation {
	return m.conversation(m.router.ActiveTab())
}

func (m Model) sidebarThreads() []domain.Thread {
	return aggregate.ForSidebar(m.threads[m.router.ActiveTab()], m.filter.Value())
}

func (m Model) filterActive() bool {
	return m.filtering || strings.TrimSpace(m.filter.Value()) != ""
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		tickEvery(m.cfg.UI.ThreadPoll),
		waitEchoEvent(m.echo.Events()),
		m.loadContactsCmd(),
	}
	for _, tab := range tabOrder {
		cmds = append(cmds, m.loadThreadsCmd(tab))
	}
	if sel := m.router.Selection(); sel.ThreadID != "" {
		cmds = append(cmds, m.openThreadCmd(sel.Tab, sel.ThreadID, 0))
	}
	if m.router.ActiveTab() == domain.TabVisitor {
		cmds = append(cmds, m.handoffPollCmd(m.handoffSeq), handoffTick(m.cfg.UI.HandoffPoll, m.handoffSeq))
	}
	return tea.Batch(cmds...)
}

func tickEvery(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
