package cdpcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameAttachedRequiresKnownParent(t *testing.T) {
	fm := NewFrameManager()
	fm.ApplyFrameTree(FrameTreeEvent{Tree: &FrameTreeNode{Frame: &FrameInfo{ID: "F", LoaderID: "L0"}}})

	fm.ApplyFrameAttached(FrameAttachedEvent{FrameID: "orphan", ParentID: "missing"})

	_, ok := fm.Frame("orphan")
	require.False(t, ok, "attach with unresolved parent must be silently dropped")
}

func TestFrameAttachedIdempotent(t *testing.T) {
	fm := NewFrameManager()
	fm.ApplyFrameTree(FrameTreeEvent{Tree: &FrameTreeNode{Frame: &FrameInfo{ID: "F", LoaderID: "L0"}}})

	fm.ApplyFrameAttached(FrameAttachedEvent{FrameID: "C", ParentID: "F"})
	fm.ApplyFrameAttached(FrameAttachedEvent{FrameID: "C", ParentID: "F"})

	f, _ := fm.Frame("F")
	require.Len(t, f.Children(), 1, "second attach of the same frame id must be a no-op")
}

// TestFrameTreeRoundTrip is the round-trip property: applying a FrameTree
// equals applying the equivalent FrameAttached+FrameNavigated sequence in
// pre-order.
func TestFrameTreeRoundTrip(t *testing.T) {
	tree := &FrameTreeNode{
		Frame: &FrameInfo{ID: "F", LoaderID: "L0", URL: "https://root"},
		ChildFrames: []*FrameTreeNode{
			{Frame: &FrameInfo{ID: "C1", ParentID: "F", LoaderID: "L0", URL: "https://c1"}},
		},
	}

	viaTree := NewFrameManager()
	viaTree.ApplyFrameTree(FrameTreeEvent{Tree: tree})

	viaEvents := NewFrameManager()
	viaEvents.ApplyFrameNavigated(FrameNavigatedEvent{Frame: &FrameInfo{ID: "F", LoaderID: "L0", URL: "https://root"}})
	viaEvents.ApplyFrameAttached(FrameAttachedEvent{FrameID: "C1", ParentID: "F"})
	viaEvents.ApplyFrameNavigated(FrameNavigatedEvent{Frame: &FrameInfo{ID: "C1", ParentID: "F", LoaderID: "L0", URL: "https://c1"}})

	require.Equal(t, viaTree.MainFrame(), viaEvents.MainFrame())
	ft, _ := viaTree.Frame("C1")
	fe, _ := viaEvents.Frame("C1")
	require.Equal(t, ft.URL, fe.URL)
	require.Equal(t, ft.ParentID, fe.ParentID)
}

func TestFrameDetachedThenReplayRestoresTree(t *testing.T) {
	tree := &FrameTreeNode{
		Frame: &FrameInfo{ID: "F", LoaderID: "L0", URL: "https://root"},
		ChildFrames: []*FrameTreeNode{
			{Frame: &FrameInfo{ID: "C1", ParentID: "F", LoaderID: "L0", URL: "https://c1"}},
		},
	}

	fm := NewFrameManager()
	fm.ApplyFrameTree(FrameTreeEvent{Tree: tree})

	fm.ApplyFrameDetached(FrameDetachedEvent{FrameID: "F"})
	_, ok := fm.Frame("F")
	require.False(t, ok)
	_, ok = fm.Frame("C1")
	require.False(t, ok, "detaching the root must remove descendants too")

	fm.ApplyFrameTree(FrameTreeEvent{Tree: tree})
	f, ok := fm.Frame("F")
	require.True(t, ok)
	require.Equal(t, FrameID("F"), fm.MainFrame())
	require.Len(t, f.Children(), 1)
}

// TestSubtreeInvalidation is scenario S6: a top-level FrameNavigated must
// drop the existing child, even though the Navigated transition itself
// never touches loader_id (only an "init" lifecycle event does, per the
// source's Frame::navigated/on_page_lifecycle_event split).
func TestSubtreeInvalidation(t *testing.T) {
	fm := NewFrameManager()
	fm.ApplyFrameTree(FrameTreeEvent{Tree: &FrameTreeNode{
		Frame: &FrameInfo{ID: "F"},
		ChildFrames: []*FrameTreeNode{
			{Frame: &FrameInfo{ID: "C", ParentID: "F"}},
		},
	}})
	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L0", Name: "init"})
	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L0", Name: "load"})
	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "C", LoaderID: "L0", Name: "load"})

	fm.ApplyFrameNavigated(FrameNavigatedEvent{Frame: &FrameInfo{ID: "F", LoaderID: "L1"}})

	_, ok := fm.Frame("C")
	require.False(t, ok, "child frame must be removed on parent's cross-document navigation")
	f, ok := fm.Frame("F")
	require.True(t, ok)
	require.Empty(t, f.Children())
	require.Equal(t, LoaderID("L0"), f.LoaderID, "Navigated never touches loader_id; only an init lifecycle event does")

	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L1", Name: "init"})
	f, _ = fm.Frame("F")
	require.Equal(t, LoaderID("L1"), f.LoaderID)
	require.False(t, f.HasLifecycle("load"), "init must clear the prior lifecycle set")
}

func TestLifecycleInitClearsState(t *testing.T) {
	fm := NewFrameManager()
	fm.ApplyFrameTree(FrameTreeEvent{Tree: &FrameTreeNode{Frame: &FrameInfo{ID: "F", LoaderID: "L0"}}})
	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L0", Name: "load"})

	fm.ApplyLifecycleEvent(LifecycleEventEvent{FrameID: "F", LoaderID: "L1", Name: "init"})

	f, _ := fm.Frame("F")
	require.Equal(t, LoaderID("L1"), f.LoaderID)
	require.False(t, f.HasLifecycle("load"), "init must clear the prior lifecycle set")
}

func TestFrameStoppedLoadingInjectsSyntheticLifecycle(t *testing.T) {
	fm := NewFrameManager()
	fm.ApplyFrameTree(FrameTreeEvent{Tree: &FrameTreeNode{Frame: &FrameInfo{ID: "F", LoaderID: "L0"}}})

	fm.ApplyFrameStoppedLoading(FrameStoppedLoadingEvent{FrameID: "F"})

	f, _ := fm.Frame("F")
	require.True(t, f.HasLifecycle("DOMContentLoaded"))
	require.True(t, f.HasLifecycle("load"))
}

func TestNoCyclesAcyclicInvariant(t *testing.T) {
	fm := NewFrameManager()
	fm.ApplyFrameTree(FrameTreeEvent{Tree: &FrameTreeNode{
		Frame: &FrameInfo{ID: "F", LoaderID: "L0"},
		ChildFrames: []*FrameTreeNode{
			{Frame: &FrameInfo{ID: "C", ParentID: "F", LoaderID: "L0"}},
		},
	}})

	f, _ := fm.Frame("F")
	c, _ := fm.Frame("C")
	require.Contains(t, f.Children(), c.ID)
	require.Equal(t, f.ID, c.ParentID)
}
