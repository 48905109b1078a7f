package pipeline

import (
	iface "SeatEventServer/interface"
)

// ClassFilter keeps only predictions whose class identifier appears in the
// allow-list and rewrites the identifier to its canonical display name.
type ClassFilter struct {
	classes map[string]string
}

func NewClassFilter(classes map[string]string) *ClassFilter {
	return &ClassFilter{classes: classes}
}

func (f *ClassFilter) Process(det *iface.Detection) error {
	kept := make([]iface.Prediction, 0, len(det.Predictions))
	for _, pred := range det.Predictions {
		name, ok := f.classes[pred.ClassID]
		if !ok {
			continue
		}
		pred.ClassID = name
		kept = append(kept, pred)
	}
	det.Predictions = kept
	return nil
}
