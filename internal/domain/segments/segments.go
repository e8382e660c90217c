package segments

import (
	"sort"
	"strings"

	"github.com/forPelevin/adcut/internal/domain/timespan"
	"github.com/forPelevin/adcut/internal/types"
)

const (
	// minKeepSec is the shortest span worth keeping; anything at or below
	// is dropped as noise.
	minKeepSec = 0.1
	// defaultGapSec is used when a caller passes a non-positive silence
	// threshold.
	defaultGapSec = 1.0
)

// SplitOnSilence computes the spoken spans of a clip from word timestamps.
// A gap of gapThreshold seconds or more between consecutive words closes the
// current span and opens a new one, so the returned segments are the parts
// to keep when cutting silence. With no usable words the whole clip is one
// span (nothing to cut). Input order does not matter.
func SplitOnSilence(words []types.Word, gapThreshold, totalDuration float64) []timespan.Segment {
	if gapThreshold <= 0 {
		gapThreshold = defaultGapSec
	}

	ws := normalizeWords(words)
	if len(ws) == 0 {
		if totalDuration > minKeepSec {
			return []timespan.Segment{{Start: 0, End: totalDuration}}
		}
		return nil
	}

	var out []timespan.Segment
	spanStart := ws[0].Start
	spanEnd := ws[0].End
	for _, w := range ws[1:] {
		if w.Start-spanEnd >= gapThreshold {
			out = appendKept(out, spanStart, spanEnd)
			spanStart = w.Start
		}
		if w.End > spanEnd {
			spanEnd = w.End
		}
	}
	return appendKept(out, spanStart, spanEnd)
}

// KeywordSpans computes spans bounded by marker words. The scan is a single
// pass: the first word containing startNeedle opens a span, every later word
// containing endNeedle moves the span end (so the last match wins), and a
// fresh startNeedle word after a valid end closes the span and re-arms,
// allowing several independent spans. Matching is case-insensitive substring
// over each word. Spans that never see an end, or whose end is not after
// their start, produce nothing.
func KeywordSpans(words []types.Word, startNeedle, endNeedle string) []timespan.Segment {
	startNeedle = strings.ToLower(strings.TrimSpace(startNeedle))
	endNeedle = strings.ToLower(strings.TrimSpace(endNeedle))
	if startNeedle == "" || endNeedle == "" {
		return nil
	}

	var (
		out       []timespan.Segment
		open      bool
		spanStart float64
		spanEnd   float64
	)
	for _, w := range normalizeWords(words) {
		text := strings.ToLower(w.Word)
		hasStart := strings.Contains(text, startNeedle)
		hasEnd := strings.Contains(text, endNeedle)

		if !open {
			if hasStart {
				open = true
				spanStart = w.Start
				spanEnd = spanStart
				if hasEnd {
					spanEnd = w.End
				}
			}
			continue
		}
		if hasStart && !hasEnd && spanEnd > spanStart {
			out = appendKept(out, spanStart, spanEnd)
			spanStart = w.Start
			spanEnd = spanStart
			continue
		}
		if hasEnd {
			spanEnd = w.End
		}
	}
	if open && spanEnd > spanStart {
		out = appendKept(out, spanStart, spanEnd)
	}
	return out
}

func appendKept(out []timespan.Segment, start, end float64) []timespan.Segment {
	if end-start <= minKeepSec {
		return out
	}
	return append(out, timespan.Segment{Start: start, End: end})
}

// normalizeWords drops words without a forward duration or visible text and
// returns the rest sorted by start time.
func normalizeWords(words []types.Word) []types.Word {
	out := make([]types.Word, 0, len(words))
	for _, w := range words {
		if w.End <= w.Start {
			continue
		}
		if strings.TrimSpace(w.Word) == "" {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
