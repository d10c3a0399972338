package cdpcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type navigateCmd struct{ url string }

func (n navigateCmd) Method() string      { return "Page.navigate" }
func (n navigateCmd) NavigateURL() string { return n.url }

func setupMainFrame(t *testing.T) *FrameManager {
	t.Helper()
	fm := NewFrameManager()
	fm.ApplyFrameTree(FrameTreeEvent{Tree: &FrameTreeNode{Frame: &FrameInfo{ID: "F", LoaderID: "L0"}}})
	// Bulk tree ingestion leaves LoaderID unset; only an "init" lifecycle
	// event assigns it.
	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L0", Name: "init"})
	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L0", Name: "load"})
	return fm
}

// TestNewDocumentNavigation is scenario S3.
func TestNewDocumentNavigation(t *testing.T) {
	fm := setupMainFrame(t)
	navID := fm.Goto(navigateCmd{url: "https://example.com"})

	now := time.Now()
	req, result := fm.Poll(now)
	require.NotNil(t, req)
	require.Nil(t, result)
	require.Equal(t, navID, req.ID)

	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L1", Name: "init"})
	fm.ApplyFrameNavigated(FrameNavigatedEvent{Frame: &FrameInfo{ID: "F", LoaderID: "L1"}})
	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L1", Name: "DOMContentLoaded"})

	_, result = fm.Poll(now)
	require.Nil(t, result, "must remain pending before load fires")

	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L1", Name: "load"})

	_, result = fm.Poll(now)
	require.NotNil(t, result)
	require.Equal(t, navID, result.ID)
	require.Nil(t, result.Err)
	require.Equal(t, NewDocumentNavigation, result.Outcome)
}

// TestSameDocumentNavigation is scenario S4.
func TestSameDocumentNavigation(t *testing.T) {
	fm := setupMainFrame(t)
	navID := fm.Goto(navigateCmd{url: "https://example.com/#x"})

	now := time.Now()
	_, _ = fm.Poll(now)

	fm.ApplyNavigatedWithinDocument(NavigatedWithinDocumentEvent{FrameID: "F", URL: "https://example.com/#x"})

	_, result := fm.Poll(now)
	require.NotNil(t, result)
	require.Equal(t, navID, result.ID)
	require.Equal(t, SameDocumentNavigation, result.Outcome)

	f, _ := fm.Frame("F")
	require.Equal(t, LoaderID("L0"), f.LoaderID, "same-document navigation must not change loader id")
}

// TestNavigatedWithinDocumentAfterLoadStillResolvesSameDocument is a §8
// boundary property.
func TestNavigatedWithinDocumentAfterLoadStillResolvesSameDocument(t *testing.T) {
	fm := setupMainFrame(t)
	navID := fm.Goto(navigateCmd{url: "https://example.com/#y"})
	now := time.Now()
	_, _ = fm.Poll(now)

	// Lifecycle "load" is already satisfied from setupMainFrame; feeding
	// NavigatedWithinDocument after that must still resolve same-document.
	fm.ApplyNavigatedWithinDocument(NavigatedWithinDocumentEvent{FrameID: "F", URL: "https://example.com/#y"})

	_, result := fm.Poll(now)
	require.NotNil(t, result)
	require.Equal(t, navID, result.ID)
	require.Equal(t, SameDocumentNavigation, result.Outcome)
}

// TestNavigationTimeout is scenario S5.
func TestNavigationTimeout(t *testing.T) {
	fm := NewFrameManager(WithNavigationTimeout(5 * time.Millisecond))
	fm.ApplyFrameTree(FrameTreeEvent{Tree: &FrameTreeNode{Frame: &FrameInfo{ID: "F", LoaderID: "L0"}}})
	navID := fm.Goto(navigateCmd{url: "https://example.com"})

	now := time.Now()
	_, _ = fm.Poll(now)

	_, result := fm.Poll(now.Add(6 * time.Millisecond))
	require.NotNil(t, result)
	require.Equal(t, navID, result.ID)
	var derr *DeadlineExceededError
	require.ErrorAs(t, result.Err, &derr)
}

// TestNavigationFrameNotFound is the third §8 boundary: a frame
// detachment arriving before any lifecycle event completes the watcher
// with FrameNotFound.
func TestNavigationFrameNotFound(t *testing.T) {
	fm := NewFrameManager()
	fm.ApplyFrameTree(FrameTreeEvent{Tree: &FrameTreeNode{Frame: &FrameInfo{ID: "F", LoaderID: "L0"}}})
	navID := fm.Goto(navigateCmd{url: "https://example.com"})

	now := time.Now()
	_, _ = fm.Poll(now)

	fm.ApplyFrameDetached(FrameDetachedEvent{FrameID: "F"})

	_, result := fm.Poll(now)
	require.NotNil(t, result)
	require.Equal(t, navID, result.ID)
	var ferr *FrameNotFoundError
	require.ErrorAs(t, result.Err, &ferr)
}

// TestPendingNavigationsFIFO verifies §3/§5's ordering guarantee: queued
// navigations resume in FIFO order once the active one resolves.
func TestPendingNavigationsFIFO(t *testing.T) {
	fm := setupMainFrame(t)
	id1 := fm.Goto(navigateCmd{url: "https://one"})
	id2 := fm.Goto(navigateCmd{url: "https://two"})

	now := time.Now()
	req, _ := fm.Poll(now)
	require.Equal(t, id1, req.ID)

	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L1", Name: "init"})
	fm.ApplyFrameNavigated(FrameNavigatedEvent{Frame: &FrameInfo{ID: "F", LoaderID: "L1"}})
	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L1", Name: "load"})

	_, result := fm.Poll(now)
	require.Equal(t, id1, result.ID)

	req, result = fm.Poll(now)
	require.NotNil(t, req)
	require.Nil(t, result)
	require.Equal(t, id2, req.ID)
}
