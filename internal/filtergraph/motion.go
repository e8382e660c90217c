package filtergraph

import (
	"fmt"

	"github.com/forPelevin/adcut/internal/domain/timespan"
)

// Directive motion renders as a crop window animated over the scene
// duration; crop expressions re-evaluate per frame with t available.
// Callers chain CanvasFit afterwards to restore the output size.
const (
	zoomAmount = 0.25
	panZoom    = 1.2
)

// ZoomIn narrows the crop window continuously from full frame to
// 1/(1+zoomAmount) over durationSec.
func ZoomIn(durationSec float64) string {
	d := timespan.FormatSeconds(durationSec)
	return fmt.Sprintf(
		"crop=w='iw/(1+%s*t/%s)':h='ih/(1+%s*t/%s)':x='(iw-ow)/2':y='(ih-oh)/2'",
		num(zoomAmount), d, num(zoomAmount), d)
}

// ZoomOut runs the same window in reverse: tight to full frame.
func ZoomOut(durationSec float64) string {
	d := timespan.FormatSeconds(durationSec)
	return fmt.Sprintf(
		"crop=w='iw/(1+%s*(1-t/%s))':h='ih/(1+%s*(1-t/%s))':x='(iw-ow)/2':y='(ih-oh)/2'",
		num(zoomAmount), d, num(zoomAmount), d)
}

// PanLeft slides a fixed-zoom window from the right edge to the left over
// durationSec.
func PanLeft(durationSec float64) string {
	d := timespan.FormatSeconds(durationSec)
	return fmt.Sprintf(
		"crop=w='iw/%s':h='ih/%s':x='(iw-ow)*(1-t/%s)':y='(ih-oh)/2'",
		num(panZoom), num(panZoom), d)
}

func PanRight(durationSec float64) string {
	d := timespan.FormatSeconds(durationSec)
	return fmt.Sprintf(
		"crop=w='iw/%s':h='ih/%s':x='(iw-ow)*t/%s':y='(ih-oh)/2'",
		num(panZoom), num(panZoom), d)
}
