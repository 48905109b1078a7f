package iface

import (
	"encoding/json"
	"fmt"

	"github.com/chewxy/math32"
)

const (
	EventStarted = 0x3001
	EventEnded   = 0x3002
)

// geometric tolerance for the on-edge polygon test
const epsilon = 1e-6

type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Box is an axis-aligned quadrilateral stored as four corners in fixed
// order: left-top, right-top, right-bottom, left-bottom. On the wire it is
// the detector's `{"type":"quadrilateral","coordinates":[...]}` shape.
type Box struct {
	LT Position
	RT Position
	RB Position
	LB Position
}

type boxJSON struct {
	Type        string     `json:"type"`
	Coordinates []Position `json:"coordinates"`
}

// NewBox builds a Box from a four-corner coordinate list and checks the
// corner ordering once, so downstream containment tests never have to.
func NewBox(coords []Position) (Box, error) {
	if len(coords) != 4 {
		return Box{}, fmt.Errorf("bounding box needs 4 corners, got %d", len(coords))
	}
	b := Box{LT: coords[0], RT: coords[1], RB: coords[2], LB: coords[3]}
	if err := b.Validate(); err != nil {
		return Box{}, err
	}
	return b, nil
}

// Validate checks the corner ordering invariant: the right-top corner may
// not sit left of the left-top one, and the right-bottom corner may not sit
// above the right-top one.
func (b Box) Validate() error {
	if b.RT.X < b.LT.X {
		return fmt.Errorf("bounding box corners out of order: RT.x %v < LT.x %v", b.RT.X, b.LT.X)
	}
	if b.RB.Y < b.RT.Y {
		return fmt.Errorf("bounding box corners out of order: RB.y %v < RT.y %v", b.RB.Y, b.RT.Y)
	}
	return nil
}

func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal(boxJSON{
		Type:        "quadrilateral",
		Coordinates: []Position{b.LT, b.RT, b.RB, b.LB},
	})
}

func (b *Box) UnmarshalJSON(data []byte) error {
	var raw boxJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	box, err := NewBox(raw.Coordinates)
	if err != nil {
		return err
	}
	*b = box
	return nil
}

// Center returns the geometric middle of the box.
func (b Box) Center() Position {
	return Position{
		X: (b.RT.X-b.LT.X)/2 + b.LT.X,
		Y: (b.RB.Y-b.RT.Y)/2 + b.RT.Y,
	}
}

// FootPoint returns the horizontal midpoint of the bottom edge, the point
// where a standing subject's base touches the ground.
func (b Box) FootPoint() Position {
	minX := math32.Min(math32.Min(b.LT.X, b.RT.X), math32.Min(b.RB.X, b.LB.X))
	maxX := math32.Max(math32.Max(b.LT.X, b.RT.X), math32.Max(b.RB.X, b.LB.X))
	maxY := math32.Max(math32.Max(b.LT.Y, b.RT.Y), math32.Max(b.RB.Y, b.LB.Y))
	return Position{X: math32.Floor((minX + maxX) / 2), Y: maxY}
}

// Contains reports whether p lies inside the box, edges included.
func (b Box) Contains(p Position) bool {
	return p.X >= b.LT.X && p.X <= b.RT.X && p.Y >= b.RT.Y && p.Y <= b.RB.Y
}

// Polygon is an ordered ring of vertices in frame pixel space.
type Polygon []Position

// Contains reports whether p lies inside the closed polygon. Points exactly
// on an edge count as inside.
func (pg Polygon) Contains(p Position) bool {
	n := len(pg)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if onSegment(pg[i], pg[(i+1)%n], p) {
			return true
		}
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := pg[i], pg[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func onSegment(a, b, p Position) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if math32.Abs(cross) > epsilon {
		return false
	}
	return p.X >= math32.Min(a.X, b.X)-epsilon && p.X <= math32.Max(a.X, b.X)+epsilon &&
		p.Y >= math32.Min(a.Y, b.Y)-epsilon && p.Y <= math32.Max(a.Y, b.Y)+epsilon
}

// Prediction is one detected (or synthesized) object in a frame.
type Prediction struct {
	ClassID     string       `json:"classId"`
	TrackID     string       `json:"trackId,omitempty"`
	Confidence  float32      `json:"confidence"`
	BoundingBox Box          `json:"boundingBox"`
	Related     []Prediction `json:"related"`
}

// Detection is one frame's worth of predictions plus the upstream frame
// payload, which passes through untouched.
type Detection struct {
	Predictions []Prediction   `json:"predictions"`
	FrameData   map[string]any `json:"newFrameData,omitempty"`
}

// Validate checks every prediction's bounding box; a single malformed box
// fails the whole frame.
func (d *Detection) Validate() error {
	for i := range d.Predictions {
		if err := d.Predictions[i].BoundingBox.Validate(); err != nil {
			return fmt.Errorf("prediction %d: %w", i, err)
		}
	}
	return nil
}

// Step is one stage of the detection pipeline. A step rewrites the
// detection's prediction list in place and leaves the frame payload alone.
type Step interface {
	Process(det *Detection) error
}

// EventSignal is one half of a start/end pair. The pair shares one EventID
// and is always emitted together: it is a state-change notification, not a
// persisted interval.
type EventSignal struct {
	Kind      int        `json:"-"`
	EventID   string     `json:"eventId"`
	Detection *Detection `json:"detection"`
}

func (s EventSignal) KindString() string {
	switch s.Kind {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	}
	return "unknown"
}

func (s EventSignal) MarshalJSON() ([]byte, error) {
	type alias EventSignal
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{Kind: s.KindString(), alias: alias(s)})
}
