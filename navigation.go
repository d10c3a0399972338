package cdpcore

import "time"

// NavigateCommand is the minimal shape goto() needs from a caller-supplied
// Page.navigate-equivalent command: a URL and a Method() for dispatch. The
// concrete command type (from the generated CDP catalogue, out of scope
// here) is expected to satisfy this alongside Command.
type NavigateCommand interface {
	Command
	NavigateURL() string
}

// NavigationOutcome classifies how a navigation resolved.
type NavigationOutcome int

const (
	// NewDocumentNavigation indicates the frame swapped loader ids and
	// reached the expected lifecycle milestones.
	NewDocumentNavigation NavigationOutcome = iota
	// SameDocumentNavigation indicates a NavigatedWithinDocument event
	// resolved the watcher without a loader change.
	SameDocumentNavigation
)

func (o NavigationOutcome) String() string {
	switch o {
	case NewDocumentNavigation:
		return "new_document_navigation"
	case SameDocumentNavigation:
		return "same_document_navigation"
	default:
		return "unknown"
	}
}

// NavigationResult is what FrameManager.Poll emits once a watcher resolves,
// successfully or otherwise.
type NavigationResult struct {
	ID      NavigationID
	Outcome NavigationOutcome
	Err     error
}

// NavigationRequest is what FrameManager.Poll emits when a queued
// navigation becomes active: the caller is expected to transmit req via
// the Dispatcher.
type NavigationRequest struct {
	ID  NavigationID
	Cmd NavigateCommand
}

// navigationWatcher is the completion predicate object for one in-flight
// navigation. It is evaluated at every Poll, never awaited as a future.
type navigationWatcher struct {
	id                NavigationID
	frameID           FrameID
	issuedLoaderID    LoaderID
	expectedLifecycle []string
	sameDocument      bool
	deadline          time.Time
}

// lifecycleSatisfied reports whether f and its descendants (looked up via frames)
// cover every expected lifecycle milestone. A descendant absent from
// frames is treated as covered (no unmet expectations), per §4.3.
func (w *navigationWatcher) lifecycleSatisfied(frames map[FrameID]*Frame, f *Frame) bool {
	for _, name := range w.expectedLifecycle {
		if !f.HasLifecycle(name) {
			return false
		}
	}
	for childID := range f.children {
		child, ok := frames[childID]
		if !ok {
			continue
		}
		if !w.lifecycleSatisfied(frames, child) {
			return false
		}
	}
	return true
}

// evaluate implements the §4.3 completion predicate for watcher w against
// its current frame state. ok reports whether the watcher is resolved;
// outcome is meaningful only when ok is true.
func (w *navigationWatcher) evaluate(frames map[FrameID]*Frame, f *Frame) (outcome NavigationOutcome, ok bool) {
	if !w.lifecycleSatisfied(frames, f) {
		return 0, false
	}
	switch {
	case w.sameDocument:
		return SameDocumentNavigation, true
	case f.LoaderID != w.issuedLoaderID:
		return NewDocumentNavigation, true
	default:
		return 0, false
	}
}
