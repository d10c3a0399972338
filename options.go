package cdpcore

import "time"

// DispatcherOption configures a Dispatcher at construction time, following
// the teacher's BrowserOption closure-over-struct shape.
type DispatcherOption interface {
	applyDispatcher(*Dispatcher)
}

type dispatcherOptionFunc func(*Dispatcher)

func (f dispatcherOptionFunc) applyDispatcher(d *Dispatcher) { f(d) }

// WithRequestTimeout sets the per-command deadline. Default DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) DispatcherOption {
	return dispatcherOptionFunc(func(disp *Dispatcher) { disp.timeout = d })
}

// WithDispatcherLogf sets the general logging sink.
func WithDispatcherLogf(f LogFunc) DispatcherOption {
	return dispatcherOptionFunc(func(d *Dispatcher) { d.logf = f })
}

// WithDispatcherErrorf sets the error logging sink.
func WithDispatcherErrorf(f LogFunc) DispatcherOption {
	return dispatcherOptionFunc(func(d *Dispatcher) { d.errf = f })
}

// WithDispatcherMetrics attaches a Metrics handle; nil (the default)
// disables observation.
func WithDispatcherMetrics(m *Metrics) DispatcherOption {
	return dispatcherOptionFunc(func(d *Dispatcher) { d.metrics = m })
}

// FrameManagerOption configures a FrameManager at construction time.
type FrameManagerOption interface {
	applyFrameManager(*FrameManager)
}

type frameManagerOptionFunc func(*FrameManager)

func (f frameManagerOptionFunc) applyFrameManager(fm *FrameManager) { f(fm) }

// WithNavigationTimeout sets the deadline bounding time to navigation
// completion (independent of a Dispatcher's per-request timeout).
func WithNavigationTimeout(d time.Duration) FrameManagerOption {
	return frameManagerOptionFunc(func(fm *FrameManager) { fm.timeout = d })
}

// WithFrameManagerLogf sets the general logging sink.
func WithFrameManagerLogf(f LogFunc) FrameManagerOption {
	return frameManagerOptionFunc(func(fm *FrameManager) { fm.logf = f })
}

// WithFrameManagerErrorf sets the error logging sink.
func WithFrameManagerErrorf(f LogFunc) FrameManagerOption {
	return frameManagerOptionFunc(func(fm *FrameManager) { fm.errf = f })
}

// WithFrameManagerMetrics attaches a Metrics handle; nil (the default)
// disables observation.
func WithFrameManagerMetrics(m *Metrics) FrameManagerOption {
	return frameManagerOptionFunc(func(fm *FrameManager) { fm.metrics = m })
}

// TabOption configures a Tab at construction time.
type TabOption interface {
	applyTab(*Tab)
}

type tabOptionFunc func(*Tab)

func (f tabOptionFunc) applyTab(t *Tab) { f(t) }

// WithTabLogf sets the general logging sink shared by the Tab's Dispatcher
// and FrameManager.
func WithTabLogf(f LogFunc) TabOption {
	return tabOptionFunc(func(t *Tab) { t.logf = f })
}

// WithTabErrorf sets the error logging sink shared by the Tab's Dispatcher
// and FrameManager.
func WithTabErrorf(f LogFunc) TabOption {
	return tabOptionFunc(func(t *Tab) { t.errf = f })
}

// WithTabMetrics attaches a Metrics handle shared by the Tab's Dispatcher
// and FrameManager.
func WithTabMetrics(m *Metrics) TabOption {
	return tabOptionFunc(func(t *Tab) { t.metrics = m })
}

// WithTabRequestTimeout sets the Dispatcher's per-command deadline.
func WithTabRequestTimeout(d time.Duration) TabOption {
	return tabOptionFunc(func(t *Tab) { t.requestTimeout = d })
}

// WithTabNavigationTimeout sets the FrameManager's navigation deadline.
func WithTabNavigationTimeout(d time.Duration) TabOption {
	return tabOptionFunc(func(t *Tab) { t.navigationTimeout = d })
}
