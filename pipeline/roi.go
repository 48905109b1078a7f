package pipeline

import (
	iface "SeatEventServer/interface"
)

// RegionFilter keeps only predictions whose foot point falls inside the
// configured region of interest. The foot point, not the box center, decides
// membership: for a standing subject the box bottom is where it meets the
// ground, so a box may overlap the region and still be filtered out.
type RegionFilter struct {
	region iface.Polygon
}

func NewRegionFilter(region iface.Polygon) *RegionFilter {
	return &RegionFilter{region: region}
}

func (f *RegionFilter) Process(det *iface.Detection) error {
	kept := make([]iface.Prediction, 0, len(det.Predictions))
	for _, pred := range det.Predictions {
		if f.region.Contains(pred.BoundingBox.FootPoint()) {
			kept = append(kept, pred)
		}
	}
	det.Predictions = kept
	return nil
}
