package notify

import "time"

// Messages consumed by the agent loop. Delivery is one-way and in send order
// for a given sender, which is what keeps per-identifier schedule/cancel
// sequencing correct without locks.
type agentMsg interface{ isAgentMsg() }

type showMsg struct {
	title string
	opts  Options
}

type scheduleMsg struct {
	id     string
	title  string
	opts   Options
	fireAt time.Time
}

type cancelMsg struct {
	id string
}

// firedMsg is posted by an elapsed timer back into the mailbox so that the
// registry is only ever touched by the loop goroutine.
type firedMsg struct {
	id string
}

type actionMsg struct {
	id     string
	action string
}

// inspectMsg is a synchronous registry probe used by callers that need to
// observe pending state (lifecycle binder, tests).
type inspectMsg struct {
	id    string
	reply chan inspectReply
}

type inspectReply struct {
	pending bool
	fireAt  time.Time
	count   int
}

func (showMsg) isAgentMsg()     {}
func (scheduleMsg) isAgentMsg() {}
func (cancelMsg) isAgentMsg()   {}
func (firedMsg) isAgentMsg()    {}
func (actionMsg) isAgentMsg()   {}
func (inspectMsg) isAgentMsg()  {}
