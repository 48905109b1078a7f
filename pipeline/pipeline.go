package pipeline

import (
	"fmt"

	iface "SeatEventServer/interface"
)

// defaultClasses is the COCO chair class, used when the params blob names
// no allow-list.
var defaultClasses = map[string]string{"56": "chair"}

// Pipeline composes the per-frame stages: region filter, class filter, then
// the stateful slot tracker. One pipeline per monitored stream; frames must
// be submitted one at a time.
type Pipeline struct {
	steps   []iface.Step
	tracker *SlotTracker
}

// New builds a pipeline from an already-decoded region polygon and class
// allow-list.
func New(region iface.Polygon, classes map[string]string) *Pipeline {
	if len(classes) == 0 {
		classes = defaultClasses
	}
	return &Pipeline{
		steps: []iface.Step{
			NewRegionFilter(region),
			NewClassFilter(classes),
		},
		tracker: NewSlotTracker(),
	}
}

// FromConfig builds a pipeline from the deployment layer's base64 blobs.
func FromConfig(cfg Config) (*Pipeline, error) {
	var area areaOfInterest
	if err := decodeBlob(cfg.AreaOfInterest, &area); err != nil {
		return nil, fmt.Errorf("area of interest: %w", err)
	}
	params := useCaseParams{}
	if cfg.Params != "" {
		if err := decodeBlob(cfg.Params, &params); err != nil {
			return nil, fmt.Errorf("use case params: %w", err)
		}
	}
	return New(iface.Polygon(area.Polygon.Coordinates), params.Classes), nil
}

// Tracker exposes the pipeline's slot tracker for status reporting.
func (p *Pipeline) Tracker() *SlotTracker {
	return p.tracker
}

// ProcessDetection runs one frame through the pipeline. It returns the
// started/ended signal pair when the seat map calibrates or any slot flips,
// nil when nothing changed, and an error when the frame's geometry is
// malformed — in which case no partial result is produced and the tracker
// state is untouched.
func (p *Pipeline) ProcessDetection(det *iface.Detection) ([]iface.EventSignal, error) {
	if err := det.Validate(); err != nil {
		return nil, err
	}
	for _, step := range p.steps {
		if err := step.Process(det); err != nil {
			return nil, err
		}
	}
	return p.tracker.Process(det), nil
}
