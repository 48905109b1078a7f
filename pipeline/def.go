package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	iface "SeatEventServer/interface"
)

// Calibration tuning. A detection center joins a seat row when its y is
// within RowTolerance pixels of the row's anchor; rows that end up with
// MinRowSize or fewer members are dropped as detector noise.
const (
	RowTolerance = 55
	MinRowSize   = 4
)

// Config carries the use-case blobs as delivered by the deployment layer:
// base64-encoded JSON, one blob for the region of interest and one for the
// remaining parameters.
type Config struct {
	AreaOfInterest string `json:"area_of_interest" yaml:"areaOfInterest"`
	Params         string `json:"params" yaml:"params"`
}

type areaOfInterest struct {
	Polygon struct {
		Coordinates []iface.Position `json:"coordinates"`
	} `json:"polygon"`
}

type useCaseParams struct {
	Classes map[string]string `json:"classes"`
}

func decodeBlob(b64 string, out any) error {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("decode base64: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
