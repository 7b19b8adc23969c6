package shell

import (
	"time"

	"unichat/internal/adapter"
	"unichat/internal/api"
	"unichat/internal/domain"
)

type tickMsg time.Time

type threadsLoadedMsg struct {
	tab     domain.Tab
	threads []domain.Thread
	err     error
}

type threadOpenedMsg struct {
	tab      domain.Tab
	threadID string
	unread   int
	err      error
}

type deliverDoneMsg struct {
	tab       domain.Tab
	messageID string
	err       error
}

type contactsMsg struct {
	contacts []domain.Contact
	err      error
}

type channelsMsg struct {
	channels []domain.Thread
	err      error
}

// searchTickMsg fires when a debounce window closes; stale sequence numbers
// are dropped in Update.
type searchTickMsg struct {
	seq int
}

type searchDoneMsg struct {
	seq     int
	results api.SearchResults
	err     error
}

type createThreadMsg struct {
	tab      domain.Tab
	threadID string
	err      error
}

type handoffTickMsg struct {
	seq int
}

type handoffDoneMsg struct {
	seq int
	err error
}

type echoEventMsg adapter.StreamEvent

type actionDoneMsg struct {
	status        string
	err           error
	reloadThreads bool
	reloadActive  bool
}
