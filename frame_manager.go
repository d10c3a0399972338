package cdpcore

import (
	"sync"
	"time"
)

// defaultExpectedLifecycle is the milestone set every navigation watches
// for, per §4.3: "a new NavigationWatcher is built with
// expected_lifecycle = {\"load\"}".
var defaultExpectedLifecycle = []string{"load"}

// pendingNavigation pairs a not-yet-active watcher with the command a
// caller must still transmit once it becomes active.
type pendingNavigation struct {
	watcher *navigationWatcher
	cmd     NavigateCommand
}

// FrameManager is a stateful observer of page events: it maintains the
// frame tree, tracks per-frame lifecycle milestones, accepts navigation
// requests, and reports completion (or failure) once the conditions in
// §4.3 are met. One FrameManager exists per attached target/session.
type FrameManager struct {
	metrics *Metrics
	logf    LogFunc
	errf    LogFunc
	timeout time.Duration

	mu              sync.Mutex
	mainFrame       FrameID
	frames          map[FrameID]*Frame
	pendingNav      []pendingNavigation
	active          *navigationWatcher
	activeStartedAt time.Time
	nextNavID       int64
}

// NewFrameManager constructs an empty FrameManager.
func NewFrameManager(opts ...FrameManagerOption) *FrameManager {
	fm := &FrameManager{
		logf:    newDefaultLogf(),
		errf:    newDefaultErrf(),
		timeout: DefaultRequestTimeout,
		frames:  make(map[FrameID]*Frame),
	}
	for _, o := range opts {
		o.applyFrameManager(fm)
	}
	return fm
}

// MainFrame returns the id of the current main frame, or EmptyFrameID if
// none has been established yet.
func (fm *FrameManager) MainFrame() FrameID {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.mainFrame
}

// Frame returns the frame with id, if known. The returned *Frame is not a
// copy: it is shared with the FrameManager's internal state and must not
// be mutated by callers.
func (fm *FrameManager) Frame(id FrameID) (*Frame, bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	f, ok := fm.frames[id]
	return f, ok
}

// ApplyFrameAttached handles §4.3's Attach transition: ignored if
// frame_id already present; otherwise inserted under parent_id if that
// parent is known, else silently dropped (and logged), per the source's
// documented tolerance for out-of-order attach/detach delivery.
func (fm *FrameManager) ApplyFrameAttached(ev FrameAttachedEvent) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.applyFrameAttachedLocked(ev.FrameID, ev.ParentID)
}

func (fm *FrameManager) applyFrameAttachedLocked(id, parentID FrameID) {
	if _, ok := fm.frames[id]; ok {
		return
	}
	parent, ok := fm.frames[parentID]
	if !ok {
		fm.logf("frame manager: dropping attach of frame %s: parent %s unresolved", id, parentID)
		return
	}
	f := newFrame(id, parentID)
	fm.frames[id] = f
	parent.addChild(id)
}

// ApplyFrameNavigated handles §4.3's Navigated transition, branching on
// whether the payload carries a parent_id (child frame) or not (top-level).
func (fm *FrameManager) ApplyFrameNavigated(ev FrameNavigatedEvent) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	info := ev.Frame
	url := info.URL
	if info.URLFragment != "" {
		url += info.URLFragment
	}

	if info.ParentID != EmptyFrameID {
		fm.navigateChildFrameLocked(info, url)
		return
	}
	fm.navigateTopLevelLocked(info, url)
}

// navigateChildFrameLocked only proceeds if info.ID already names a known
// frame: the not-found case is a no-op, never a synthesized attach, matching
// the source's remove-then-reinsert shape (a navigated event for a frame the
// tree has no record of carries nothing to reinsert).
func (fm *FrameManager) navigateChildFrameLocked(info *FrameInfo, url string) {
	existing, ok := fm.frames[info.ID]
	if !ok {
		return
	}
	fm.detachDescendantsLocked(existing)
	existing.children = make(map[FrameID]struct{})
	existing.Name = info.Name
	existing.URL = url
}

func (fm *FrameManager) navigateTopLevelLocked(info *FrameInfo, url string) {
	var f *Frame
	if fm.mainFrame != EmptyFrameID {
		f = fm.frames[fm.mainFrame]
		fm.detachDescendantsLocked(f)
		f.children = make(map[FrameID]struct{})
		delete(fm.frames, f.ID)
		f.ID = info.ID
		f.ParentID = EmptyFrameID
	} else {
		f = newFrame(info.ID, EmptyFrameID)
	}
	f.Name = info.Name
	f.URL = url
	fm.frames[info.ID] = f
	fm.mainFrame = info.ID
}

// detachDescendantsLocked recursively removes every child (and their
// descendants) of f from the frame map, per the cross-document subtree
// invalidation rule in §4.3.
func (fm *FrameManager) detachDescendantsLocked(f *Frame) {
	for childID := range f.children {
		if child, ok := fm.frames[childID]; ok {
			fm.detachDescendantsLocked(child)
			delete(fm.frames, childID)
		}
	}
}

// ApplyFrameDetached handles §4.3's Detach transition: removes the frame
// and, recursively, all descendants, and unlinks from the parent's
// child set.
func (fm *FrameManager) ApplyFrameDetached(ev FrameDetachedEvent) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	f, ok := fm.frames[ev.FrameID]
	if !ok {
		return
	}
	fm.detachDescendantsLocked(f)
	delete(fm.frames, ev.FrameID)
	if parent, ok := fm.frames[f.ParentID]; ok {
		parent.removeChild(f.ID)
	}
	if fm.mainFrame == ev.FrameID {
		fm.mainFrame = EmptyFrameID
	}
}

// ApplyNavigatedWithinDocument handles §4.3's NavigatedWithinDocument
// transition: updates the frame's URL and, if an active watcher targets
// this frame, marks it same_document so the next Poll resolves it.
func (fm *FrameManager) ApplyNavigatedWithinDocument(ev NavigatedWithinDocumentEvent) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if f, ok := fm.frames[ev.FrameID]; ok {
		f.URL = ev.URL
	}
	if fm.active != nil && fm.active.frameID == ev.FrameID {
		fm.active.sameDocument = true
	}
}

// ApplyFrameStoppedLoading injects the synthetic DOMContentLoaded/load
// lifecycle pair, per §4.3's note that load termination is signalled via a
// distinct event even with lifecycle events enabled.
func (fm *FrameManager) ApplyFrameStoppedLoading(ev FrameStoppedLoadingEvent) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	f, ok := fm.frames[ev.FrameID]
	if !ok {
		return
	}
	f.addLifecycle("DOMContentLoaded")
	f.addLifecycle("load")
}

// ApplyLifecycleEvent handles §4.3's LifecycleEvent transition: an "init"
// milestone starts a new document load (loader id replaced, lifecycle set
// cleared); every milestone name is then recorded.
func (fm *FrameManager) ApplyLifecycleEvent(ev LifecycleEventEvent) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	f, ok := fm.frames[ev.FrameID]
	if !ok {
		return
	}
	if ev.Name == "init" {
		f.LoaderID = ev.LoaderID
		f.resetLifecycle()
	}
	f.addLifecycle(ev.Name)
}

// ApplyFrameTree applies a bulk snapshot recursively in pre-order: each node
// is attached (root: a no-op, since a root node has no resolvable parent;
// non-root: linked under its already-visited parent) and then navigated —
// literally the same two transitions a live Attach+Navigated event pair
// would produce — before its children are visited. Because Navigated never
// touches loader_id, a frame's loader_id is populated only by a later
// lifecycle "init" event, not by bulk tree ingestion; the source has no
// other writer for it either.
func (fm *FrameManager) ApplyFrameTree(ev FrameTreeEvent) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.applyFrameTreeNodeLocked(ev.Tree, true)
}

func (fm *FrameManager) applyFrameTreeNodeLocked(node *FrameTreeNode, isRoot bool) {
	if node == nil || node.Frame == nil {
		return
	}
	info := node.Frame
	url := info.URL
	if info.URLFragment != "" {
		url += info.URLFragment
	}

	if isRoot {
		fm.navigateTopLevelLocked(info, url)
	} else {
		fm.applyFrameAttachedLocked(info.ID, info.ParentID)
		fm.navigateChildFrameLocked(info, url)
	}

	for _, child := range node.ChildFrames {
		fm.applyFrameTreeNodeLocked(child, false)
	}
}

// Goto enqueues a navigation request targeting the current main frame. If
// no main frame has been established yet, it is a no-op and returns the
// zero NavigationID, matching the source's goto(): navigating before a
// main frame exists has nothing to target. Otherwise the navigation does
// not become active (and is not handed back to the caller for
// transmission) until a subsequent Poll call pops it from the queue, per
// §4.3's two-phase request/poll protocol.
func (fm *FrameManager) Goto(cmd NavigateCommand) NavigationID {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.mainFrame == EmptyFrameID {
		return 0
	}

	fm.nextNavID++
	id := NavigationID(fm.nextNavID)

	var loaderID LoaderID
	if f, ok := fm.frames[fm.mainFrame]; ok {
		loaderID = f.LoaderID
	}

	w := &navigationWatcher{
		id:                id,
		frameID:           fm.mainFrame,
		issuedLoaderID:    loaderID,
		expectedLifecycle: defaultExpectedLifecycle,
	}
	fm.pendingNav = append(fm.pendingNav, pendingNavigation{watcher: w, cmd: cmd})
	return id
}

// Poll drives the navigation state machine for one tick, implementing
// §4.3's three-step poll procedure. It returns at most one of req or
// result being non-nil (the third case, nothing ready, is both nil).
func (fm *FrameManager) Poll(now time.Time) (req *NavigationRequest, result *NavigationResult) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.active == nil && len(fm.pendingNav) > 0 {
		next := fm.pendingNav[0]
		fm.pendingNav = fm.pendingNav[1:]
		fm.active = next.watcher
		fm.active.deadline = now.Add(fm.timeout)
		fm.activeStartedAt = now
		return &NavigationRequest{ID: next.watcher.id, Cmd: next.cmd}, nil
	}

	if fm.active == nil {
		return nil, nil
	}

	w := fm.active
	if now.After(w.deadline) {
		fm.active = nil
		fm.metrics.observeNavigation(now.Sub(fm.activeStartedAt), "timeout")
		return nil, &NavigationResult{ID: w.id, Err: &DeadlineExceededError{IssuedAt: fm.activeStartedAt, Deadline: w.deadline}}
	}

	f, ok := fm.frames[w.frameID]
	if !ok {
		fm.active = nil
		fm.metrics.observeNavigation(now.Sub(fm.activeStartedAt), "frame_not_found")
		return nil, &NavigationResult{ID: w.id, Err: &FrameNotFoundError{FrameID: w.frameID}}
	}

	outcome, done := w.evaluate(fm.frames, f)
	if !done {
		return nil, nil
	}
	fm.active = nil
	fm.metrics.observeNavigation(now.Sub(fm.activeStartedAt), "ok")
	return nil, &NavigationResult{ID: w.id, Outcome: outcome}
}
