package sharedbooking

// Status is the negotiation state of a shared booking.
type Status string

const (
	StatusProposed        Status = "proposed"
	StatusCounterProposed Status = "counter_proposed"
	StatusAccepted        Status = "accepted"
	StatusConfirmed       Status = "confirmed"
	StatusCancelled       Status = "cancelled"
	StatusExpired         Status = "expired"
)

// transitions lists every legal move. Statuses without an entry are terminal.
var transitions = map[Status][]Status{
	StatusProposed:        {StatusAccepted, StatusCounterProposed, StatusCancelled, StatusExpired},
	StatusCounterProposed: {StatusAccepted, StatusCancelled, StatusExpired},
	StatusAccepted:        {StatusConfirmed, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsPending reports whether the proposal is waiting on a response and can
// therefore expire.
func (s Status) IsPending() bool {
	return s == StatusProposed || s == StatusCounterProposed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusProposed, StatusCounterProposed, StatusAccepted,
		StatusConfirmed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusProposed, StatusCounterProposed, StatusAccepted,
		StatusConfirmed, StatusCancelled, StatusExpired,
	}
}
