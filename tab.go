package cdpcore

import (
	"context"
	"sync"
	"time"
)

// Tab is the minimal caller-facing contract named in §2's scope: "the
// public command-execution surface exposed to a caller... only as a
// contract, not its convenience methods." It wires one Dispatcher and one
// FrameManager to a single Connection/session and drives the navigation
// poll loop; PDF export, selector queries, and similar helpers are
// deliberately absent — they belong to an external collaborator layered
// on top of Execute.
type Tab struct {
	sessionID SessionID

	dispatcher *Dispatcher
	frames     *FrameManager
	handler    *Handler

	logf    LogFunc
	errf    LogFunc
	metrics *Metrics

	requestTimeout    time.Duration
	navigationTimeout time.Duration

	pollInterval time.Duration

	mu      sync.Mutex
	waiters map[NavigationID]chan *NavigationResult
}

// NewTab constructs a Tab over conn for the given session, applying opts.
// The returned Tab's background machinery (Handler.Run and the navigation
// poll loop) is not started until Run is called.
func NewTab(conn Connection, sessionID SessionID, opts ...TabOption) *Tab {
	t := &Tab{
		sessionID:         sessionID,
		logf:              newDefaultLogf(),
		errf:              newDefaultErrf(),
		requestTimeout:    DefaultRequestTimeout,
		navigationTimeout: DefaultRequestTimeout,
		pollInterval:      20 * time.Millisecond,
		waiters:           make(map[NavigationID]chan *NavigationResult),
	}
	for _, o := range opts {
		o.applyTab(t)
	}

	t.dispatcher = NewDispatcher(conn,
		WithRequestTimeout(t.requestTimeout),
		WithDispatcherLogf(t.logf),
		WithDispatcherErrorf(t.errf),
		WithDispatcherMetrics(t.metrics),
	)
	t.frames = NewFrameManager(
		WithNavigationTimeout(t.navigationTimeout),
		WithFrameManagerLogf(t.logf),
		WithFrameManagerErrorf(t.errf),
		WithFrameManagerMetrics(t.metrics),
	)
	t.handler = NewHandler(conn, t.dispatcher, t.frames, t.metrics)
	return t
}

// Run starts the Handler's read loop and the navigation poll loop, both
// on the calling goroutine's behalf (each spawned internally), and blocks
// until ctx is cancelled or the connection fails.
func (t *Tab) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- t.handler.Run(ctx) }()
	go t.pollLoop(ctx)
	return <-errCh
}

func (t *Tab) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.tick(ctx, now)
		}
	}
}

func (t *Tab) tick(ctx context.Context, now time.Time) {
	req, result := t.frames.Poll(now)
	if req != nil {
		go func() {
			if err := t.dispatcher.Execute(ctx, req.Cmd, t.sessionID, nil); err != nil {
				t.errf("tab: navigate request %d failed to send: %v", req.ID, err)
			}
		}()
	}
	if result != nil {
		t.deliver(result)
	}
}

func (t *Tab) deliver(result *NavigationResult) {
	t.mu.Lock()
	ch, ok := t.waiters[result.ID]
	if ok {
		delete(t.waiters, result.ID)
	}
	t.mu.Unlock()
	if ok {
		ch <- result
	}
}

// Execute is the core command-execution surface: it submits cmd over the
// Tab's session and decodes the response into res.
func (t *Tab) Execute(ctx context.Context, cmd Command, res interface{}) error {
	return t.dispatcher.Execute(ctx, cmd, t.sessionID, res)
}

// Goto enqueues a navigation and returns its id immediately; completion
// arrives asynchronously and is observed via Wait, per §6's contract that
// goto's completion is not a direct response to the navigate request. If no
// main frame has been established yet, the underlying FrameManager drops
// the request and Goto returns the zero NavigationID; Wait on that id
// reports ErrNoActiveNavigation.
func (t *Tab) Goto(cmd NavigateCommand) NavigationID {
	id := t.frames.Goto(cmd)
	if id == 0 {
		return id
	}
	t.mu.Lock()
	t.waiters[id] = make(chan *NavigationResult, 1)
	t.mu.Unlock()
	return id
}

// Wait blocks until the navigation identified by id resolves, or ctx is
// cancelled.
func (t *Tab) Wait(ctx context.Context, id NavigationID) (*NavigationResult, error) {
	t.mu.Lock()
	ch, ok := t.waiters[id]
	t.mu.Unlock()
	if !ok {
		return nil, ErrNoActiveNavigation
	}
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GotoAndWait is a convenience composing Goto and Wait for the common
// case of a caller that wants a single blocking navigation call.
func (t *Tab) GotoAndWait(ctx context.Context, cmd NavigateCommand) (*NavigationResult, error) {
	id := t.Goto(cmd)
	return t.Wait(ctx, id)
}

// MainFrame returns the id of the Tab's current main frame.
func (t *Tab) MainFrame() FrameID { return t.frames.MainFrame() }

// RunChain drives a CommandChain to completion over this Tab's session,
// used for ordered initialization handshakes (e.g. enabling the Page and
// Runtime domains before the first navigation). The chain is advanced by
// the Handler's background task, which must already be running (via Run)
// for steps to be transmitted and acknowledged.
func (t *Tab) RunChain(ctx context.Context, steps []ChainStep) error {
	chain := NewCommandChain(steps)
	return t.handler.RunChain(ctx, chain, t.sessionID)
}
