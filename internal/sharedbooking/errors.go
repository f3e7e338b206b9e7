package sharedbooking

import "errors"

var (
	// ErrVersionConflict means the row changed since it was read.
	ErrVersionConflict = errors.New("shared booking was modified concurrently")
	// ErrSlotTaken means another booking occupies the slot at confirmation.
	ErrSlotTaken = errors.New("court slot is no longer available")
	// ErrOpenNegotiation means the pair already has a proposal in flight.
	ErrOpenNegotiation = errors.New("players already have an open proposal")
)
