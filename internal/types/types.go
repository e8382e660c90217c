package types

import (
	"github.com/forPelevin/adcut/internal/domain/timespan"
)

type Transcript struct {
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// CollectWords flattens a transcript into its word list, keeping original
// order. Callers that need cleaned or sorted words filter downstream.
func CollectWords(tr Transcript) []Word {
	var out []Word
	for _, s := range tr.Segments {
		out = append(out, s.Words...)
	}
	return out
}

// EditPlan is the multi-scene remix request: ordered scenes assembled with
// crossfades, then the primary audio track muxed over the result.
type EditPlan struct {
	Scenes      []Scene `json:"scenes"`
	AudioSource string  `json:"audio_source,omitempty"`
}

// Scene is one cut of a remix. Range selects the span of the scene's source
// clip; Directive is a free-form keyword the compiler may turn into motion
// (zoom, pan); OverlayText is burned onto the scene when present. Phase is
// planning metadata (hook, body, cta) and does not affect rendering.
type Scene struct {
	Range       timespan.Range `json:"range"`
	Source      string         `json:"source"`
	Directive   string         `json:"directive,omitempty"`
	OverlayText string         `json:"overlay_text,omitempty"`
	Phase       string         `json:"phase,omitempty"`
}

// Operation kinds for the flat edit mode.
const (
	OpTrim         = "trim"
	OpVisualFilter = "filter"
	OpColorAdjust  = "color"
	OpSpeed        = "speed"
	OpTextOverlay  = "text"
	OpSubtitles    = "subtitles"
	OpImageOverlay = "image"
	OpFade         = "fade"
	OpCrop         = "crop"
	OpMute         = "mute"
	OpVolume       = "volume"
)

// Operation is one step of a flat edit. Kind selects the operation; the
// other fields are kind-specific and zero elsewhere. ImageData carries
// inline image bytes (base64 in JSON) and wins over Image when both are set.
type Operation struct {
	Kind string `json:"kind"`

	Range *timespan.Range `json:"range,omitempty"`

	// filter
	Name string `json:"name,omitempty"`

	// color
	Brightness float64 `json:"brightness,omitempty"`
	Contrast   float64 `json:"contrast,omitempty"`
	Saturation float64 `json:"saturation,omitempty"`

	// speed
	Factor float64 `json:"factor,omitempty"`

	// text, subtitles
	Text     string `json:"text,omitempty"`
	Position string `json:"position,omitempty"`
	FontSize int    `json:"font_size,omitempty"`

	// image
	Image     string  `json:"image,omitempty"`
	ImageData []byte  `json:"image_data,omitempty"`
	Scale     float64 `json:"scale,omitempty"`
	Opacity   float64 `json:"opacity,omitempty"`

	// fade
	FadeIn   bool    `json:"fade_in,omitempty"`
	FadeOut  bool    `json:"fade_out,omitempty"`
	Duration float64 `json:"duration,omitempty"`

	// crop
	Ratio string `json:"ratio,omitempty"`

	// volume
	Level float64 `json:"level,omitempty"`
}

// Progress is an executor progress event. Fraction is within [0, 1] and
// never decreases over the life of one render.
type Progress struct {
	Fraction float64 `json:"fraction"`
	Message  string  `json:"message"`
}
