package cdpcore

import "time"

// ChainStep is one step of a CommandChain: the command Poll hands back to
// the caller for transmission once it becomes the chain's current step.
type ChainStep struct {
	Command Command
}

// ChainPollState is the tag of a ChainPollResult, mirroring spec §4.2's
// poll(now) -> Pending | Ready(None) | Ready(Ok(step)) | Ready(Err(...)).
type ChainPollState int

const (
	// ChainPending means a step is in flight and its deadline has not
	// passed; nothing to do until the next Poll.
	ChainPending ChainPollState = iota
	// ChainDone means the queue is empty and nothing is in flight: the
	// chain has completed every step successfully.
	ChainDone
	// ChainStepReady means Step is the next step to transmit; the chain
	// now considers it in flight.
	ChainStepReady
	// ChainTimeout means the in-flight step's deadline passed before
	// ReceivedResponse acknowledged it. Err holds the
	// DeadlineExceededError. Terminal: a caller that sees this stops
	// polling the chain.
	ChainTimeout
)

// ChainPollResult is the value Poll returns.
type ChainPollResult struct {
	State ChainPollState
	Step  ChainStep
	Err   error
}

// chainWaiting is the chain's in_flight slot: the method of the step
// currently outstanding and when it was issued/is due.
type chainWaiting struct {
	method   string
	issuedAt time.Time
	deadline time.Time
}

// CommandChain is an ordered sequencer with at most one step in flight,
// implementing spec §4.2's operation contract exactly: push_back,
// received_response, poll(now). It holds no reference to a Dispatcher or
// Connection — transmitting the step Poll returns and observing its
// acknowledgment are both the caller's responsibility. This decoupling
// matters: the chain is advanced by whoever calls ReceivedResponse once a
// response is observed on the wire, not by whoever happened to transmit.
type CommandChain struct {
	cmds    []ChainStep
	waiting *chainWaiting
	timeout time.Duration
}

// NewCommandChain builds a CommandChain over steps with the default step
// timeout.
func NewCommandChain(steps []ChainStep) *CommandChain {
	cmds := make([]ChainStep, len(steps))
	copy(cmds, steps)
	return &CommandChain{cmds: cmds, timeout: DefaultRequestTimeout}
}

// PushBack appends a step to the queue. Allowed at any time, including
// while a different step is in flight.
func (c *CommandChain) PushBack(step ChainStep) {
	c.cmds = append(c.cmds, step)
}

// ReceivedResponse reports an acknowledgment for method. If a step with
// that exact method is in flight, it is cleared and true is returned.
// Otherwise state is left completely untouched and false is returned —
// matching by method-identifier string is sufficient because a chain never
// has more than one outstanding command, so ambiguity is impossible.
func (c *CommandChain) ReceivedResponse(method string) bool {
	if c.waiting != nil && c.waiting.method == method {
		c.waiting = nil
		return true
	}
	return false
}

// Poll drives the chain for one tick.
func (c *CommandChain) Poll(now time.Time) ChainPollResult {
	if c.waiting != nil {
		if now.After(c.waiting.deadline) {
			return ChainPollResult{State: ChainTimeout, Err: &DeadlineExceededError{
				IssuedAt: c.waiting.issuedAt,
				Deadline: c.waiting.deadline,
			}}
		}
		return ChainPollResult{State: ChainPending}
	}
	if len(c.cmds) == 0 {
		return ChainPollResult{State: ChainDone}
	}
	step := c.cmds[0]
	c.cmds = c.cmds[1:]
	c.waiting = &chainWaiting{method: step.Command.Method(), issuedAt: now, deadline: now.Add(c.timeout)}
	return ChainPollResult{State: ChainStepReady, Step: step}
}
