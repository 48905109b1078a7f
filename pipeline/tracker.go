package pipeline

import (
	iface "SeatEventServer/interface"
)

// Slot is one fixed monitored seat. Its position never moves after
// calibration; only the occupancy flag mutates.
type Slot struct {
	At       iface.Position
	Occupied bool
}

// SlotTracker holds the persistent seat map across frames. It calibrates
// the map from the first detection that yields filtered predictions and
// afterwards re-evaluates every slot per frame. Not safe for concurrent
// use: one tracker per stream, one frame at a time.
type SlotTracker struct {
	seatCount int
	seatMap   [][]*Slot
}

func NewSlotTracker() *SlotTracker {
	return &SlotTracker{}
}

// Calibrated reports whether the seat map has been built.
func (t *SlotTracker) Calibrated() bool {
	return len(t.seatMap) > 0
}

// SeatCount returns the total slot count across all rows.
func (t *SlotTracker) SeatCount() int {
	return t.seatCount
}

// Rows exposes the seat map for annotation and tests. Callers must not
// restructure it.
func (t *SlotTracker) Rows() [][]*Slot {
	return t.seatMap
}

// Process runs one frame against the tracker. It returns a start/end signal
// pair when calibration happens or any slot flips, and nil otherwise.
func (t *SlotTracker) Process(det *iface.Detection) []iface.EventSignal {
	if !t.Calibrated() {
		t.calibrate(det)
		if !t.Calibrated() {
			// nothing usable this frame, try again on the next one
			return nil
		}
		t.annotate(det)
		return NewEventPair(det)
	}
	if !t.evaluate(det) {
		return nil
	}
	t.annotate(det)
	return NewEventPair(det)
}

// calibrate clusters prediction centers into seat rows. The first center
// opens the first row and becomes its anchor; each later center joins every
// existing row whose anchor y is within RowTolerance, or opens a new row
// when none matches. A center inside the tolerance band of several anchors
// is shared between those rows — membership is deliberately not exclusive,
// matching the reference calibration output. Rows with MinRowSize or fewer
// members are discarded as noise.
func (t *SlotTracker) calibrate(det *iface.Detection) {
	var rows [][]*Slot
	var anchors []iface.Position
	for _, pred := range det.Predictions {
		slot := &Slot{At: pred.BoundingBox.Center()}
		if len(anchors) == 0 {
			anchors = append(anchors, slot.At)
			rows = append(rows, []*Slot{slot})
			continue
		}
		added := false
		for i := range anchors {
			if slot.At.Y >= anchors[i].Y-RowTolerance && slot.At.Y <= anchors[i].Y+RowTolerance {
				rows[i] = append(rows[i], slot)
				added = true
			}
		}
		if !added {
			anchors = append(anchors, slot.At)
			rows = append(rows, []*Slot{slot})
		}
	}

	for _, row := range rows {
		if len(row) <= MinRowSize {
			continue
		}
		t.seatMap = append(t.seatMap, row)
		t.seatCount += len(row)
	}
}

// evaluate toggles every slot whose covered-by-prediction status differs
// from its stored state and reports whether anything flipped. A slot flips
// on the first frame its coverage changes and then holds that state without
// needing continuous evidence.
func (t *SlotTracker) evaluate(det *iface.Detection) bool {
	changed := false
	for _, row := range t.seatMap {
		for _, slot := range row {
			covered := false
			for i := range det.Predictions {
				if det.Predictions[i].BoundingBox.Contains(slot.At) {
					covered = true
					break
				}
			}
			if covered != slot.Occupied {
				slot.Occupied = covered
				changed = true
			}
		}
	}
	return changed
}
