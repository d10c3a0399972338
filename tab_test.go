package cdpcore

import (
	"context"
	"testing"
	"time"

	"github.com/mailru/easyjson"
	"github.com/stretchr/testify/require"
)

func TestTabExecute(t *testing.T) {
	conn := newFakeConn()
	tab := NewTab(conn, "session-1")

	done := make(chan error, 1)
	var res pingResult
	go func() { done <- tab.Execute(context.Background(), pingCommand{}, &res) }()

	req := <-conn.sent
	require.Equal(t, SessionID("session-1"), req.SessionID)
	tab.dispatcher.HandleResponse(&Message{ID: req.ID, Result: easyjson.RawMessage(`{"ok":true}`)})

	require.NoError(t, <-done)
	require.True(t, res.OK)
}

// TestTabGotoAndWait drives the Tab's poll tick manually (rather than via
// its internal ticker) so the navigation lifecycle is deterministic.
func TestTabGotoAndWait(t *testing.T) {
	conn := newFakeConn()
	tab := NewTab(conn, "session-1")
	ctx := context.Background()

	tab.frames.ApplyFrameTree(FrameTreeEvent{Tree: &FrameTreeNode{Frame: &FrameInfo{ID: "F", LoaderID: "L0"}}})
	tab.frames.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L0", Name: "load"})

	navID := tab.Goto(navigateCmd{url: "https://example.com"})

	waitDone := make(chan *NavigationResult, 1)
	go func() {
		res, err := tab.Wait(ctx, navID)
		require.NoError(t, err)
		waitDone <- res
	}()

	now := time.Now()
	tab.tick(ctx, now)
	req := <-conn.sent
	require.Equal(t, "Page.navigate", string(req.Method))
	tab.dispatcher.HandleResponse(&Message{ID: req.ID, Result: easyjson.RawMessage(`{}`)})

	tab.frames.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L1", Name: "init"})
	tab.frames.ApplyFrameNavigated(FrameNavigatedEvent{Frame: &FrameInfo{ID: "F", LoaderID: "L1"}})
	tab.frames.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L1", Name: "load"})

	tab.tick(ctx, now)

	result := <-waitDone
	require.Equal(t, navID, result.ID)
	require.Equal(t, NewDocumentNavigation, result.Outcome)
}

func TestTabRunChain(t *testing.T) {
	conn := newFakeConn()
	tab := NewTab(conn, "")

	done := make(chan error, 1)
	go func() {
		done <- tab.RunChain(context.Background(), []ChainStep{
			{Command: enableStep{"Page"}},
			{Command: enableStep{"Runtime"}},
		})
	}()

	for i := 0; i < 2; i++ {
		req := <-conn.sent
		tab.handler.route(&Message{ID: req.ID, Result: easyjson.RawMessage(`{}`)})
	}
	require.NoError(t, <-done)
}
