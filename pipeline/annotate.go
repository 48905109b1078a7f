package pipeline

import (
	"fmt"

	iface "SeatEventServer/interface"
)

const markerConfidence = 0.9

// annotate appends synthetic predictions describing the current seat map,
// so the downstream renderer can draw them like any other detection: one
// whole-frame summary with the seat counts, then one small marker per slot.
func (t *SlotTracker) annotate(det *iface.Detection) {
	det.Predictions = append(det.Predictions, t.summary())
	for i, row := range t.seatMap {
		for _, slot := range row {
			det.Predictions = append(det.Predictions, marker(i, slot))
		}
	}
}

// summary builds a pseudo-prediction whose label carries the seat counts.
// Its box spans the unit square so renderers pin it to the frame corner.
func (t *SlotTracker) summary() iface.Prediction {
	occupied := 0
	for _, row := range t.seatMap {
		for _, slot := range row {
			if slot.Occupied {
				occupied++
			}
		}
	}
	return iface.Prediction{
		ClassID:    fmt.Sprintf("Total seats: %d | Occupied: %d | Free: %d", t.seatCount, occupied, t.seatCount-occupied),
		Confidence: markerConfidence,
		BoundingBox: iface.Box{
			LT: iface.Position{X: 0, Y: 0},
			RT: iface.Position{X: 1, Y: 0},
			RB: iface.Position{X: 1, Y: 1},
			LB: iface.Position{X: 0, Y: 1},
		},
		Related: []iface.Prediction{},
	}
}

// marker builds a 2x2 pseudo-prediction centered on one slot, labeled with
// its row index and occupancy state.
func marker(row int, slot *Slot) iface.Prediction {
	state := "free"
	if slot.Occupied {
		state = "occupied"
	}
	return iface.Prediction{
		ClassID:    fmt.Sprintf("M%d(%s)", row, state),
		Confidence: markerConfidence,
		BoundingBox: iface.Box{
			LT: iface.Position{X: slot.At.X, Y: slot.At.Y},
			RT: iface.Position{X: slot.At.X + 2, Y: slot.At.Y},
			RB: iface.Position{X: slot.At.X + 2, Y: slot.At.Y + 2},
			LB: iface.Position{X: slot.At.X, Y: slot.At.Y + 2},
		},
		Related: []iface.Prediction{},
	}
}
