package pipeline

import (
	"github.com/google/uuid"

	iface "SeatEventServer/interface"
)

// NewEventPair wraps the annotated detection in a started/ended signal pair
// sharing one fresh correlation id. The pair always travels together: the
// event starts and ends in the same frame, it marks a state change rather
// than an interval. One pair per triggering frame, no matter how many slots
// flipped.
func NewEventPair(det *iface.Detection) []iface.EventSignal {
	id := uuid.NewString()
	return []iface.EventSignal{
		{Kind: iface.EventStarted, EventID: id, Detection: det},
		{Kind: iface.EventEnded, EventID: id, Detection: det},
	}
}
