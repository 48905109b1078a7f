package render

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	iface "SeatEventServer/interface"
)

var (
	boxColor    = color.RGBA{R: 0, G: 200, B: 0, A: 0}
	markerColor = color.RGBA{R: 0, G: 0, B: 220, A: 0}
)

// Base64ToMat converts a base64 string (optionally with a data:image/...
// prefix) into a gocv.Mat.
func Base64ToMat(b64 string) (gocv.Mat, error) {
	if i := strings.Index(b64, ","); i != -1 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return gocv.NewMat(), err
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), err
	}
	if mat.Empty() {
		// an empty Mat from IMDecode means the decode failed
		if err := mat.Close(); err != nil {
			return gocv.Mat{}, err
		}
		return gocv.NewMat(), errors.New("decoded image is empty or unsupported format")
	}
	return mat, nil
}

// DrawOverlay paints every prediction box and its label onto the frame.
// Synthetic seat markers get their own color; the whole-frame summary box
// is skipped and only its label is drawn in the corner.
func DrawOverlay(mat *gocv.Mat, det *iface.Detection) {
	for i := range det.Predictions {
		pred := &det.Predictions[i]
		box := pred.BoundingBox
		if strings.Contains(pred.ClassID, "|") {
			gocv.PutText(mat, pred.ClassID, image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, boxColor, 2)
			continue
		}
		c := boxColor
		if strings.HasPrefix(pred.ClassID, "M") {
			c = markerColor
		}
		rect := image.Rect(int(box.LT.X), int(box.LT.Y), int(box.RB.X), int(box.RB.Y))
		gocv.Rectangle(mat, rect, c, 2)
		gocv.PutText(mat, pred.ClassID, image.Pt(int(box.LT.X), int(box.LT.Y)-4), gocv.FontHersheySimplex, 0.5, c, 1)
	}
}

// WriteDebugFrame decodes the frame, draws the annotated detection on it
// and writes a per-session debug JPEG into dir.
func WriteDebugFrame(dir, sessionID, frameB64 string, det *iface.Detection) error {
	mat, err := Base64ToMat(frameB64)
	if err != nil {
		return err
	}
	defer mat.Close()
	DrawOverlay(&mat, det)
	path := filepath.Join(dir, fmt.Sprintf("debug_%s.jpg", sessionID))
	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("failed to write debug frame %s", path)
	}
	return nil
}
