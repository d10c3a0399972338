package cdpcore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Handler is the single background task that owns a Connection, per §4.4
// and §5: it alternates between reading inbound frames, classifying each
// as a response (routed to the Dispatcher) or an event (decoded and
// routed to the FrameManager), and periodically sweeping deadlines. There
// is exactly one Handler per Connection. It also drives at most one active
// CommandChain, feeding it acknowledgments observed on the response stream
// — the architecture the source's cmd.rs/frame.rs split implies: a chain's
// poll/push_back/received_response state machine has no transport of its
// own, so something reading the connection (here, the Handler) must
// transmit the steps it yields and report back the responses it observes.
type Handler struct {
	conn       Connection
	dispatcher *Dispatcher
	frames     *FrameManager
	logf       LogFunc
	errf       LogFunc
	metrics    *Metrics

	sweepInterval time.Duration

	// OnAttachedToTarget is the no-op extension point named in the design
	// notes' open questions: cross-target frame movement never affects
	// the completion predicate, so the default is nil (ignored).
	OnAttachedToTarget func(AttachedToTargetEvent)

	chainMu        sync.Mutex
	chain          *CommandChain
	chainSessionID SessionID
	chainResult    chan error
}

// NewHandler builds a Handler wiring conn's inbound stream to dispatcher
// and frames.
func NewHandler(conn Connection, dispatcher *Dispatcher, frames *FrameManager, metrics *Metrics) *Handler {
	return &Handler{
		conn:          conn,
		dispatcher:    dispatcher,
		frames:        frames,
		metrics:       metrics,
		logf:          newDefaultLogf(),
		errf:          newDefaultErrf(),
		sweepInterval: 1 * time.Second,
	}
}

// Run reads from conn until ctx is cancelled or a transport error occurs,
// classifying and routing every inbound message, and sweeping expired
// Dispatcher slots on sweepInterval. It is meant to run on its own
// goroutine for the lifetime of the connection.
func (h *Handler) Run(ctx context.Context) error {
	msgCh := make(chan *Message, 64)
	readErrCh := make(chan error, 1)

	go func() {
		for {
			msg, err := h.conn.Read()
			if err != nil {
				readErrCh <- err
				return
			}
			select {
			case msgCh <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.dispatcher.Close(ctx.Err())
			return ctx.Err()

		case err := <-readErrCh:
			h.dispatcher.Close(err)
			return &TransportError{Cause: err}

		case msg := <-msgCh:
			h.route(msg)

		case t := <-ticker.C:
			h.dispatcher.SweepDeadlines(t)
			h.pollChain(t)
		}
	}
}

// route classifies an inbound message and dispatches it to the Dispatcher
// (responses) or decodes and applies it to the FrameManager (events),
// per §4.4's ordering guarantee: events are delivered to subscribers in
// wire order, with no ordering guarantee relative to unrelated responses.
func (h *Handler) route(msg *Message) {
	if msg.IsResponse() {
		method, ok := h.dispatcher.HandleResponse(msg)
		if ok && h.chainAcknowledge(method) {
			h.pollChain(time.Now())
		}
		return
	}
	if !msg.IsEvent() {
		h.logf("handler: dropping message with neither id nor method")
		return
	}
	h.routeEvent(msg)
}

// RunChain registers chain as the Handler's single active CommandChain,
// transmits its first step immediately, and blocks until the chain
// completes, times out, or ctx is cancelled. Subsequent steps are
// transmitted as route observes their predecessor's response and the
// periodic sweep tick detects a stalled step. At most one chain may be
// active at a time; a second concurrent call fails with ErrChainBusy.
func (h *Handler) RunChain(ctx context.Context, chain *CommandChain, sessionID SessionID) error {
	h.chainMu.Lock()
	if h.chain != nil {
		h.chainMu.Unlock()
		return ErrChainBusy
	}
	result := make(chan error, 1)
	h.chain = chain
	h.chainSessionID = sessionID
	h.chainResult = result
	h.chainMu.Unlock()

	h.pollChain(time.Now())

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		h.chainMu.Lock()
		if h.chain == chain {
			h.chain = nil
			h.chainResult = nil
		}
		h.chainMu.Unlock()
		return ctx.Err()
	}
}

// chainAcknowledge feeds method to the active chain's ReceivedResponse, if
// any, reporting whether it cleared an in-flight step (in which case the
// chain is worth polling again immediately rather than waiting for the
// next sweep tick).
func (h *Handler) chainAcknowledge(method string) bool {
	h.chainMu.Lock()
	chain := h.chain
	h.chainMu.Unlock()
	if chain == nil {
		return false
	}
	return chain.ReceivedResponse(method)
}

// pollChain advances the active chain, if any: transmitting the step Poll
// hands back, or reporting completion/timeout to whoever is blocked in
// RunChain.
func (h *Handler) pollChain(now time.Time) {
	h.chainMu.Lock()
	chain := h.chain
	sessionID := h.chainSessionID
	h.chainMu.Unlock()
	if chain == nil {
		return
	}

	res := chain.Poll(now)
	switch res.State {
	case ChainStepReady:
		if err := h.dispatcher.Send(res.Step.Command, sessionID); err != nil {
			h.metrics.observeChainStep("failed")
			h.finishChain(chain, err)
			return
		}
		h.metrics.observeChainStep("sent")
	case ChainTimeout:
		h.metrics.observeChainStep("timeout")
		h.finishChain(chain, res.Err)
	case ChainDone:
		h.finishChain(chain, nil)
	case ChainPending:
	}
}

// finishChain clears the active chain (if it is still the one passed in —
// ctx cancellation in RunChain may have already done so) and delivers err
// to whoever is blocked waiting for it.
func (h *Handler) finishChain(chain *CommandChain, err error) {
	h.chainMu.Lock()
	var result chan error
	if h.chain == chain {
		result = h.chainResult
		h.chain = nil
		h.chainResult = nil
	}
	h.chainMu.Unlock()
	if result != nil {
		result <- err
	}
}

func (h *Handler) routeEvent(msg *Message) {
	switch msg.Method {
	case MethodFrameAttached:
		var ev FrameAttachedEvent
		if h.decode(msg, &ev) {
			h.frames.ApplyFrameAttached(ev)
		}
	case MethodFrameNavigated:
		var payload struct {
			Frame FrameInfo `json:"frame"`
		}
		if h.decode(msg, &payload) {
			h.frames.ApplyFrameNavigated(FrameNavigatedEvent{Frame: &payload.Frame})
		}
	case MethodFrameDetached:
		var ev FrameDetachedEvent
		if h.decode(msg, &ev) {
			h.frames.ApplyFrameDetached(ev)
		}
	case MethodNavigatedWithinDoc:
		var ev NavigatedWithinDocumentEvent
		if h.decode(msg, &ev) {
			h.frames.ApplyNavigatedWithinDocument(ev)
		}
	case MethodFrameStoppedLoading:
		var ev FrameStoppedLoadingEvent
		if h.decode(msg, &ev) {
			h.frames.ApplyFrameStoppedLoading(ev)
		}
	case MethodLifecycleEvent:
		var ev LifecycleEventEvent
		if h.decode(msg, &ev) {
			h.frames.ApplyLifecycleEvent(ev)
		}
	case MethodFrameAttachedToTarget:
		var ev AttachedToTargetEvent
		if h.decode(msg, &ev) && h.OnAttachedToTarget != nil {
			h.OnAttachedToTarget(ev)
		}
	default:
		h.logf("handler: ignoring unhandled event method %s", msg.Method)
	}
}

func (h *Handler) decode(msg *Message, v interface{}) bool {
	if err := json.Unmarshal(msg.Params, v); err != nil {
		h.errf("handler: could not decode event %s: %v", msg.Method, err)
		return false
	}
	return true
}
