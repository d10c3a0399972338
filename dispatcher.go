package cdpcore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultRequestTimeout is the default deadline for a dispatched command,
// matching the teacher's approximate 20s default.
const DefaultRequestTimeout = 20 * time.Second

// dispatchResult is what a pending slot's reply channel actually carries:
// either the matching wire Message or a terminal err (deadline exceeded,
// or the dispatcher tearing down). Exactly one of the two is set.
type dispatchResult struct {
	msg *Message
	err error
}

// pendingRequest is a one-shot reply slot installed in the Dispatcher's
// pending table, keyed by request id.
type pendingRequest struct {
	method   string
	issuedAt time.Time
	deadline time.Time
	reply    chan dispatchResult
}

// Dispatcher turns typed Commands into wire Requests, holds the table of
// pending reply slots keyed by request id, and resolves each slot when the
// matching Response arrives or the request deadline elapses. It is the
// only component that assigns request ids and owns the pending table; per
// §5 there is exactly one Dispatcher-equivalent owner per Connection.
type Dispatcher struct {
	id      uuid.UUID
	conn    Connection
	timeout time.Duration
	metrics *Metrics
	logf    LogFunc
	errf    LogFunc

	next int64

	mu       sync.Mutex
	pending  map[int64]*pendingRequest
	closed   bool
	closeErr error
}

// NewDispatcher creates a Dispatcher that submits outbound requests onto
// conn. Write is assumed safe to call concurrently from multiple Execute
// callers; serializing writes is the Connection implementation's
// responsibility (WSConnection guards gorilla/websocket's single-writer
// contract with its own mutex).
func NewDispatcher(conn Connection, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		id:      uuid.New(),
		conn:    conn,
		timeout: DefaultRequestTimeout,
		logf:    newDefaultLogf(),
		errf:    newDefaultErrf(),
		pending: make(map[int64]*pendingRequest),
	}
	for _, o := range opts {
		o.applyDispatcher(d)
	}
	return d
}

// submit serializes cmd, allocates a fresh monotonically increasing
// request id, installs a reply slot in the pending table, and hands the
// request to the Connection for transmission. It does not wait for a
// reply; Execute and Send differ only in what they do after submit
// returns.
func (d *Dispatcher) submit(cmd Command, sessionID SessionID) (id int64, slot *pendingRequest, err error) {
	params, err := marshalParams(cmd)
	if err != nil {
		return 0, nil, err
	}

	id = atomic.AddInt64(&d.next, 1)
	issuedAt := time.Now()
	slot = &pendingRequest{
		method:   cmd.Method(),
		issuedAt: issuedAt,
		deadline: issuedAt.Add(d.timeout),
		reply:    make(chan dispatchResult, 1),
	}

	d.mu.Lock()
	if d.closed {
		closeErr := d.closeErr
		d.mu.Unlock()
		return 0, nil, &TransportError{Cause: closeErr}
	}
	d.pending[id] = slot
	d.mu.Unlock()

	req := &Request{ID: id, SessionID: sessionID, Method: MethodType(cmd.Method()), Params: params}
	if err := d.conn.Write(req.message()); err != nil {
		d.removeSlot(id)
		d.recordOutcome(slot.method, issuedAt, "transport_error")
		return 0, nil, &TransportError{Cause: err}
	}
	return id, slot, nil
}

// Execute serializes cmd, transmits it, and suspends until a matching
// Response arrives, the request deadline elapses, the context is
// cancelled, or the dispatcher has been closed following a transport
// failure.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command, sessionID SessionID, res interface{}) error {
	id, slot, err := d.submit(cmd, sessionID)
	if err != nil {
		return err
	}

	select {
	case dr := <-slot.reply:
		return d.resolve(slot, dr, res)
	case <-ctx.Done():
		d.removeSlot(id)
		d.recordOutcome(slot.method, slot.issuedAt, "cancelled")
		return ctx.Err()
	}
}

// Send serializes cmd and transmits it without waiting for a reply: the
// eventual Response is still correlated by id through the ordinary pending
// table, and its method is reported to whoever observes HandleResponse.
// It exists for callers — a CommandChain driver, specifically — that learn
// of acknowledgment through a separate, decoupled path instead of blocking
// on this call.
func (d *Dispatcher) Send(cmd Command, sessionID SessionID) error {
	_, _, err := d.submit(cmd, sessionID)
	return err
}

func (d *Dispatcher) resolve(slot *pendingRequest, dr dispatchResult, res interface{}) error {
	if dr.err != nil {
		d.recordOutcome(slot.method, slot.issuedAt, outcomeFor(dr.err))
		return dr.err
	}
	msg := dr.msg
	switch {
	case msg.Error != nil:
		d.recordOutcome(slot.method, slot.issuedAt, "protocol_error")
		return msg.Error
	case msg.Result == nil:
		d.recordOutcome(slot.method, slot.issuedAt, "empty_response")
		return &EmptyResponseError{ID: msg.ID}
	default:
		if err := decodeResult(msg.Result, res); err != nil {
			d.recordOutcome(slot.method, slot.issuedAt, "serialization_error")
			return err
		}
		d.recordOutcome(slot.method, slot.issuedAt, "ok")
		return nil
	}
}

func outcomeFor(err error) string {
	switch err.(type) {
	case *DeadlineExceededError:
		return "deadline_exceeded"
	default:
		return "transport_error"
	}
}

func (d *Dispatcher) recordOutcome(method string, issuedAt time.Time, outcome string) {
	d.metrics.observeRequest(method, time.Since(issuedAt), outcome)
}

func (d *Dispatcher) removeSlot(id int64) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// HandleResponse routes an inbound Response to its matching reply slot and
// reports the method that request was issued with (so a caller can feed it
// to a CommandChain's ReceivedResponse). It is called by the background
// task that owns the Connection's read side (Handler.run); responses with
// no matching pending request are logged and dropped, per §4.1 step 4, and
// ok is false.
func (d *Dispatcher) HandleResponse(msg *Message) (method string, ok bool) {
	d.mu.Lock()
	slot, ok := d.pending[msg.ID]
	if ok {
		delete(d.pending, msg.ID)
	}
	d.mu.Unlock()

	if !ok {
		d.logf("dispatcher %s: dropping response for unknown request id %d", d.id, msg.ID)
		return "", false
	}
	slot.reply <- dispatchResult{msg: msg}
	return slot.method, true
}

// SweepDeadlines fails every pending slot whose deadline has passed as of
// now, using a strict after-comparison so a response arriving at exactly
// the deadline instant still resolves successfully (§8 boundary property).
func (d *Dispatcher) SweepDeadlines(now time.Time) {
	var expired []*pendingRequest
	d.mu.Lock()
	for id, slot := range d.pending {
		if now.After(slot.deadline) {
			expired = append(expired, slot)
			delete(d.pending, id)
		}
	}
	d.mu.Unlock()

	for _, slot := range expired {
		slot.reply <- dispatchResult{err: &DeadlineExceededError{IssuedAt: slot.issuedAt, Deadline: slot.deadline}}
	}
}

// Close fails every pending slot with a TransportError wrapping err and
// marks the dispatcher closed, so subsequent Execute calls fail fast
// instead of installing a slot nothing will ever resolve.
func (d *Dispatcher) Close(err error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.closeErr = err
	pending := d.pending
	d.pending = make(map[int64]*pendingRequest)
	d.mu.Unlock()

	for _, slot := range pending {
		slot.reply <- dispatchResult{err: &TransportError{Cause: err}}
	}
}
