package draw

// State is the lifecycle of one draw transaction.
//
//	PENDING -> VALIDATING -> RESERVED -> PRIZE_SELECTED -> COMMITTED
//	any state before COMMITTED -> FAILED
type State int

const (
	StatePending State = iota
	StateValidating
	StateReserved
	StatePrizeSelected
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateValidating:
		return "VALIDATING"
	case StateReserved:
		return "RESERVED"
	case StatePrizeSelected:
		return "PRIZE_SELECTED"
	case StateCommitted:
		return "COMMITTED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

// StateObserver is told about every transition of every draw.
type StateObserver func(txID string, from, to State)

type txn struct {
	id    string
	state State
	obs   StateObserver
}

func (t *txn) to(next State) {
	prev := t.state
	t.state = next
	if t.obs != nil {
		t.obs(t.id, prev, next)
	}
}
