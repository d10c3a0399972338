package cdpcore

// Event method identifiers the Handler dispatches to a FrameManager.
const (
	MethodFrameAttached         MethodType = "Page.frameAttached"
	MethodFrameNavigated        MethodType = "Page.frameNavigated"
	MethodFrameDetached         MethodType = "Page.frameDetached"
	MethodNavigatedWithinDoc    MethodType = "Page.navigatedWithinDocument"
	MethodFrameStoppedLoading   MethodType = "Page.frameStoppedLoading"
	MethodLifecycleEvent        MethodType = "Page.lifecycleEvent"
	MethodFrameAttachedToTarget MethodType = "Target.attachedToTarget"
)

// FrameAttachedEvent reports a new frame joining the tree under parentID.
type FrameAttachedEvent struct {
	FrameID  FrameID
	ParentID FrameID
}

// FrameNavigatedEvent carries the full post-navigation frame payload.
type FrameNavigatedEvent struct {
	Frame *FrameInfo
}

// FrameDetachedEvent reports a frame (and implicitly its subtree) leaving
// the tree.
type FrameDetachedEvent struct {
	FrameID FrameID
}

// NavigatedWithinDocumentEvent reports a same-document navigation (e.g. a
// history.pushState or URL fragment change) on an existing frame.
type NavigatedWithinDocumentEvent struct {
	FrameID FrameID
	URL     string
}

// FrameStoppedLoadingEvent signals load termination independent of
// whatever lifecycle events have (or haven't) arrived.
type FrameStoppedLoadingEvent struct {
	FrameID FrameID
}

// LifecycleEventEvent is a single named milestone in a document's load
// progression, scoped to the loader that produced it.
type LifecycleEventEvent struct {
	FrameID  FrameID
	LoaderID LoaderID
	Name     string
}

// FrameTreeEvent is a bulk snapshot, applied recursively in pre-order.
type FrameTreeEvent struct {
	Tree *FrameTreeNode
}

// AttachedToTargetEvent is the cross-target frame-movement notification.
// Per the design notes' open question, the core treats this as a no-op
// extension point: the completion predicate never depends on it. It is
// modeled here only so a caller wiring a hook (see Handler.OnAttachedToTarget)
// has a typed payload to act on.
type AttachedToTargetEvent struct {
	SessionID SessionID
	TargetID  string
}
