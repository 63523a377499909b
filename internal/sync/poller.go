package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gologme/log"

	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
)

// SyncState represents the current state of the inbox poll.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the state of the last inbox poll.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// UnreadMsg is a tea.Msg sent when an inbox poll completes.
type UnreadMsg struct {
	Count int
	Error error
	Auth  bool
}

// fetchTimeout is the maximum time allowed for a single poll.
const fetchTimeout = 30 * time.Second

// Poller counts unread inbox messages in the background. It only reads
// from the mail store and never touches view state.
type Poller struct {
	client    mailapi.Client
	interval  time.Duration
	log       *log.Logger
	status    SyncStatus
	resultCh  chan UnreadMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a Poller that polls every interval. A non-positive interval
// disables polling.
func New(client mailapi.Client, interval time.Duration, logger *log.Logger) *Poller {
	return &Poller{
		client:    client,
		interval:  interval,
		log:       logger,
		resultCh:  make(chan UnreadMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Enabled reports whether the poller has a positive interval.
func (p *Poller) Enabled() bool {
	return p.interval > 0
}

// Start returns a tea.Cmd that starts the polling goroutine and
// subscribes to its results.
func (p *Poller) Start() tea.Cmd {
	if !p.Enabled() {
		return nil
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate poll.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A poll is already queued.
	}
}

// Status returns the state of the last poll.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// WaitForNextResult returns a tea.Cmd that waits for the next poll result.
// Call it after handling an UnreadMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.poll()
		case <-p.triggerCh:
			p.poll()
		}
	}
}

// poll lists the inbox once and publishes the unread count.
func (p *Poller) poll() {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	msgs, err := p.client.ListMailbox(ctx, model.MailboxInbox)
	if err != nil {
		p.setStatus(SyncError, err)
		p.log.Warnf("unread poll failed: %v", err)
		p.sendResult(UnreadMsg{Error: err, Auth: mailapi.IsAuthError(err)})
		return
	}

	p.setStatus(SyncIdle, nil)
	p.sendResult(UnreadMsg{Count: CountUnread(msgs)})
}

// CountUnread returns the number of messages not yet read.
func CountUnread(msgs []model.Message) int {
	n := 0
	for _, m := range msgs {
		if !m.Read {
			n++
		}
	}
	return n
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle {
		p.status.LastSync = time.Now()
	}
}

// sendResult publishes a result without blocking the poll loop.
func (p *Poller) sendResult(msg UnreadMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-p.resultCh:
			return result
		case <-p.stopCh:
			return nil
		}
	}
}
