package orders

// TransitionTable decides which status changes an authorized Update may
// apply. The permissive table reproduces the historical behavior (any
// status reachable from any other); the strict table makes DELIVERED,
// REJECTED and CANCELLED terminal.
type TransitionTable struct {
	allowed map[Status]map[Status]bool
}

// PermissiveTransitions allows any valid status from any state.
func PermissiveTransitions() TransitionTable {
	return TransitionTable{}
}

// StrictTransitions enforces the natural purchase flow:
// PENDING -> APPROVED | REJECTED | CANCELLED,
// APPROVED -> PURCHASED | CANCELLED,
// PURCHASED -> DELIVERED | CANCELLED.
// DELIVERED, REJECTED and CANCELLED accept no further transitions.
func StrictTransitions() TransitionTable {
	return TransitionTable{allowed: map[Status]map[Status]bool{
		StatusPending: {
			StatusApproved:  true,
			StatusRejected:  true,
			StatusCancelled: true,
		},
		StatusApproved: {
			StatusPurchased: true,
			StatusCancelled: true,
		},
		StatusPurchased: {
			StatusDelivered: true,
			StatusCancelled: true,
		},
	}}
}

// Allowed reports whether from -> to is a legal transition. Setting the
// current status again is always a no-op and allowed.
func (t TransitionTable) Allowed(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if t.allowed == nil {
		return true
	}
	return t.allowed[from][to]
}
