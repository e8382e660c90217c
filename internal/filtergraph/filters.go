package filtergraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/adcut/internal/domain/timespan"
)

// Atempo accepts factors only within [0.5, 2.0] per step; TempoSteps
// decomposes anything else into a chain of in-range steps.
const (
	AtempoMin = 0.5
	AtempoMax = 2.0
)

// TempoSteps decomposes a positive speed factor into steps each within
// [AtempoMin, AtempoMax] whose product is exactly the factor. A factor of
// 1.0 yields a single unity step.
func TempoSteps(factor float64) []float64 {
	if factor <= 0 {
		return nil
	}
	var steps []float64
	remaining := factor
	for remaining > AtempoMax {
		steps = append(steps, AtempoMax)
		remaining /= AtempoMax
	}
	for remaining < AtempoMin {
		steps = append(steps, AtempoMin)
		remaining /= AtempoMin
	}
	return append(steps, remaining)
}

func Grayscale() string { return "hue=s=0" }

func Sepia() string {
	return "colorchannelmixer=.393:.769:.189:0:.349:.686:.168:0:.272:.534:.131"
}

func Negate() string { return "negate" }

func Vignette() string { return "vignette" }

// EQ maps neutral-relative adjustments onto the eq filter. Brightness is
// neutral at 0; contrast and saturation are neutral at 1.
func EQ(brightness, contrast, saturation float64) string {
	return fmt.Sprintf("eq=brightness=%s:contrast=%s:saturation=%s",
		num(brightness), num(contrast), num(saturation))
}

// SetPTS retimes video for a speed factor: factor 2 halves presentation
// timestamps.
func SetPTS(factor float64) string {
	return fmt.Sprintf("setpts=%s*PTS", num(1/factor))
}

func Atempo(step float64) string { return "atempo=" + num(step) }

// AtempoChain renders the full audio tempo chain for a factor.
func AtempoChain(factor float64) string {
	steps := TempoSteps(factor)
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = Atempo(s)
	}
	return strings.Join(parts, ",")
}

func Volume(level float64) string { return "volume=" + num(level) }

func Mute() string { return "volume=0" }

func FadeIn(duration float64) string {
	return fmt.Sprintf("fade=t=in:st=0:d=%s", timespan.FormatSeconds(duration))
}

func FadeOut(start, duration float64) string {
	return fmt.Sprintf("fade=t=out:st=%s:d=%s",
		timespan.FormatSeconds(start), timespan.FormatSeconds(duration))
}

// CropAspect center-crops to a target aspect ratio given as width/height
// proportions (9, 16 for vertical).
func CropAspect(rw, rh float64) string {
	return fmt.Sprintf("crop='min(iw,ih*%s)':'min(ih,iw*%s)'", num(rw/rh), num(rh/rw))
}

// CanvasFit scales into a WxH canvas preserving aspect, pads the rest and
// normalizes the sample ratio and frame rate. Used to make concat inputs
// uniform.
func CanvasFit(w, h, fps int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d",
		w, h, w, h, fps)
}

// ScaleFactor resizes relative to input width, keeping aspect.
func ScaleFactor(f float64) string {
	return fmt.Sprintf("scale=iw*%s:-1", num(f))
}

// Opacity multiplies the alpha channel; the format hop guarantees one
// exists.
func Opacity(alpha float64) string {
	return fmt.Sprintf("format=argb,colorchannelmixer=aa=%s", num(alpha))
}

func Overlay(x, y string) string { return fmt.Sprintf("overlay=%s:%s", x, y) }

// OverlayAnchor maps a corner anchor name to overlay coordinate
// expressions with a pixel margin. Unknown anchors fall back to the
// bottom-right corner.
func OverlayAnchor(anchor string, margin int) (x, y string) {
	m := strconv.Itoa(margin)
	switch anchor {
	case "top-left":
		return m, m
	case "top-right":
		return "W-w-" + m, m
	case "bottom-left":
		return m, "H-h-" + m
	default:
		return "W-w-" + m, "H-h-" + m
	}
}

func XFade(transition string, duration, offset float64) string {
	if transition == "" {
		transition = "fade"
	}
	return fmt.Sprintf("xfade=transition=%s:duration=%s:offset=%s",
		transition, timespan.FormatSeconds(duration), timespan.FormatSeconds(offset))
}

func Concat(n, v, a int) string {
	return fmt.Sprintf("concat=n=%d:v=%d:a=%d", n, v, a)
}

// DrawTextOpts configures one drawtext node. X and Y are position
// expressions; an empty FontFile lets the engine discover a font. A nil
// Window draws for the whole clip.
type DrawTextOpts struct {
	Text     string
	FontFile string
	FontSize int
	X, Y     string
	Window   *timespan.Range
}

func DrawText(o DrawTextOpts) string {
	var b strings.Builder
	b.WriteString("drawtext=text=" + EscapeText(o.Text))
	if o.FontFile != "" {
		b.WriteString(":fontfile=" + EscapePath(o.FontFile))
	}
	if o.FontSize > 0 {
		b.WriteString(":fontsize=" + strconv.Itoa(o.FontSize))
	}
	b.WriteString(":fontcolor=white:borderw=3:bordercolor=black")
	if o.X != "" {
		b.WriteString(":x=" + o.X)
	}
	if o.Y != "" {
		b.WriteString(":y=" + o.Y)
	}
	if o.Window != nil {
		b.WriteString(fmt.Sprintf(":enable='between(t,%s,%s)'",
			timespan.FormatSeconds(o.Window.Start), timespan.FormatSeconds(o.Window.End)))
	}
	return b.String()
}

// TextAnchor maps a named text position to drawtext x/y expressions. The
// default is a lower-third band.
func TextAnchor(name string) (x, y string) {
	switch name {
	case "top":
		return "(w-text_w)/2", "h*0.1"
	case "center":
		return "(w-text_w)/2", "(h-text_h)/2"
	default:
		return "(w-text_w)/2", "h-text_h-h*0.08"
	}
}

// EscapeText escapes a drawtext payload for the filter expression parser.
// Values are emitted unquoted, so every delimiter the parser knows about
// gets a backslash.
func EscapeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case ':':
			b.WriteString(`\:`)
		case ',':
			b.WriteString(`\,`)
		case ';':
			b.WriteString(`\;`)
		case '[', ']':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapePath escapes a filesystem path used as a filter option value.
func EscapePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	return p
}

// num renders ratio-like values with the shortest exact representation.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
