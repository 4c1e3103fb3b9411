package submit

// State tracks one submission through its lifecycle. Resolved, Accepted,
// Failed and Canceled are terminal; a terminal transition fully releases the
// submission slot before a new Submit may acquire it.
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StatePolling   State = "polling"
	StateResolved  State = "resolved"
	StateAccepted  State = "accepted"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Terminal reports whether no further network activity can occur in s.
func (s State) Terminal() bool {
	switch s {
	case StateResolved, StateAccepted, StateFailed, StateCanceled:
		return true
	}
	return false
}

// StatusKind classifies a status message for display. The empty kind is
// neutral: neither success nor error. Canceled is neutral on purpose — a
// self-inflicted stop is not a failure requiring remediation.
type StatusKind string

const (
	KindNone  StatusKind = ""
	KindOK    StatusKind = "ok"
	KindError StatusKind = "err"
)

// Status is one user-visible snapshot of the current submission.
type Status struct {
	State   State      `json:"state"`
	Message string     `json:"message"`
	Kind    StatusKind `json:"kind"`
	Busy    bool       `json:"busy"`
}
