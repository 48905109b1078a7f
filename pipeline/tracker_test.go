package pipeline

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	iface "SeatEventServer/interface"
)

// chairPred builds a 10x10 chair prediction whose box center is (x, y).
func chairPred(x, y float32) iface.Prediction {
	return iface.Prediction{
		ClassID:    "chair",
		Confidence: 0.8,
		BoundingBox: iface.Box{
			LT: iface.Position{X: x - 5, Y: y - 5},
			RT: iface.Position{X: x + 5, Y: y - 5},
			RB: iface.Position{X: x + 5, Y: y + 5},
			LB: iface.Position{X: x - 5, Y: y + 5},
		},
		Related: []iface.Prediction{},
	}
}

func chairRow(y float32, count int) []iface.Prediction {
	preds := make([]iface.Prediction, 0, count)
	for i := 0; i < count; i++ {
		preds = append(preds, chairPred(float32(20+i*40), y))
	}
	return preds
}

func detectionOf(preds ...[]iface.Prediction) *iface.Detection {
	det := &iface.Detection{Predictions: []iface.Prediction{}}
	for _, p := range preds {
		det.Predictions = append(det.Predictions, p...)
	}
	return det
}

func slotPositions(t *SlotTracker) [][]iface.Position {
	var out [][]iface.Position
	for _, row := range t.Rows() {
		var positions []iface.Position
		for _, slot := range row {
			positions = append(positions, slot.At)
		}
		out = append(out, positions)
	}
	return out
}

func TestSlotTracker_Calibration(t *testing.T) {
	t.Run("Test Determinism", func(t *testing.T) {
		a := NewSlotTracker()
		b := NewSlotTracker()
		a.Process(detectionOf(chairRow(20, 5), chairRow(180, 6)))
		b.Process(detectionOf(chairRow(20, 5), chairRow(180, 6)))

		if diff := cmp.Diff(slotPositions(a), slotPositions(b)); diff != "" {
			t.Errorf("seat maps differ between identical runs (-a +b):\n%s", diff)
		}
		assert.Equal(t, 11, a.SeatCount())
	})

	t.Run("Test NoiseRejection", func(t *testing.T) {
		tr := NewSlotTracker()
		// 4 members is still noise, 5 is a real row
		tr.Process(detectionOf(chairRow(20, 4), chairRow(180, 5)))
		assert.True(t, tr.Calibrated())
		assert.Len(t, tr.Rows(), 1)
		assert.Equal(t, 5, tr.SeatCount())
	})

	t.Run("Test EmptyFrameRetries", func(t *testing.T) {
		tr := NewSlotTracker()
		events := tr.Process(detectionOf())
		assert.Nil(t, events)
		assert.False(t, tr.Calibrated())

		events = tr.Process(detectionOf(chairRow(20, 5)))
		assert.Len(t, events, 2)
		assert.True(t, tr.Calibrated())
	})

	t.Run("Test AllRowsRejected", func(t *testing.T) {
		tr := NewSlotTracker()
		events := tr.Process(detectionOf(chairRow(20, 3), chairRow(180, 3)))
		assert.Nil(t, events)
		assert.False(t, tr.Calibrated())
	})

	t.Run("Test SharedRowMembership", func(t *testing.T) {
		tr := NewSlotTracker()
		det := detectionOf(chairRow(20, 5), chairRow(130, 5))
		// within 55 px of both anchors, so the slot joins both rows
		det.Predictions = append(det.Predictions, chairPred(300, 75))
		tr.Process(det)

		rows := tr.Rows()
		assert.Len(t, rows, 2)
		assert.Len(t, rows[0], 6)
		assert.Len(t, rows[1], 6)
		// the shared member is the same slot object, and it is counted twice
		assert.Same(t, rows[0][5], rows[1][5])
		assert.Equal(t, 12, tr.SeatCount())
	})
}

func TestSlotTracker_Occupancy(t *testing.T) {
	t.Run("Test ToggleOnCoverage", func(t *testing.T) {
		tr := NewSlotTracker()
		events := tr.Process(detectionOf(chairRow(20, 5)))
		assert.Len(t, events, 2, "calibration emits a pair")
		for _, row := range tr.Rows() {
			for _, slot := range row {
				assert.False(t, slot.Occupied, "slots start free")
			}
		}

		// same boxes again: every slot center is covered, all flip occupied
		events = tr.Process(detectionOf(chairRow(20, 5)))
		assert.Len(t, events, 2)
		for _, row := range tr.Rows() {
			for _, slot := range row {
				assert.True(t, slot.Occupied)
			}
		}
	})

	t.Run("Test ToggleIdempotence", func(t *testing.T) {
		tr := NewSlotTracker()
		tr.Process(detectionOf(chairRow(20, 5)))

		events := tr.Process(detectionOf(chairRow(20, 5)))
		assert.Len(t, events, 2, "first evaluation flips the slots")

		events = tr.Process(detectionOf(chairRow(20, 5)))
		assert.Nil(t, events, "second evaluation of the same frame has no deltas")
	})

	t.Run("Test EmptyFrameVacatesAll", func(t *testing.T) {
		tr := NewSlotTracker()
		tr.Process(detectionOf(chairRow(20, 5)))
		tr.Process(detectionOf(chairRow(20, 5)))

		// one pair for the whole frame, not one per slot
		events := tr.Process(detectionOf())
		assert.Len(t, events, 2)
		for _, row := range tr.Rows() {
			for _, slot := range row {
				assert.False(t, slot.Occupied)
			}
		}
	})

	t.Run("Test PartialChange", func(t *testing.T) {
		tr := NewSlotTracker()
		tr.Process(detectionOf(chairRow(20, 5)))
		tr.Process(detectionOf(chairRow(20, 5)))

		// drop only the first chair; exactly one slot vacates
		det := detectionOf(chairRow(20, 5))
		det.Predictions = det.Predictions[1:]
		events := tr.Process(det)
		assert.Len(t, events, 2)

		occupied := 0
		for _, row := range tr.Rows() {
			for _, slot := range row {
				if slot.Occupied {
					occupied++
				}
			}
		}
		assert.Equal(t, 4, occupied)
	})
}

func TestSlotTracker_Annotate(t *testing.T) {
	tr := NewSlotTracker()
	det := detectionOf(chairRow(20, 5))
	tr.Process(det)

	// 5 chairs + 1 summary + 5 markers
	assert.Len(t, det.Predictions, 11)

	summary := det.Predictions[5]
	assert.Equal(t, "Total seats: 5 | Occupied: 0 | Free: 5", summary.ClassID)
	assert.Equal(t, float32(0.9), summary.Confidence)
	assert.Equal(t, iface.Position{X: 0, Y: 0}, summary.BoundingBox.LT)
	assert.Equal(t, iface.Position{X: 1, Y: 1}, summary.BoundingBox.RB)

	markers := det.Predictions[6:]
	for _, m := range markers {
		assert.True(t, strings.HasPrefix(m.ClassID, "M0("), "marker label %q", m.ClassID)
		assert.True(t, strings.HasSuffix(m.ClassID, "(free)"))
		// markers are 2x2 squares anchored at the slot position
		assert.Equal(t, float32(2), m.BoundingBox.RB.X-m.BoundingBox.LT.X)
		assert.Equal(t, float32(2), m.BoundingBox.RB.Y-m.BoundingBox.LT.Y)
	}
}
