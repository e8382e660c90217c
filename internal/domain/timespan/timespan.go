package timespan

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedRange reports a range literal or pair of bounds that does not
// describe a forward span of media time.
var ErrMalformedRange = errors.New("malformed time range")

// Range is a span of media time in seconds. A valid Range always has
// End > Start >= 0; construct one via NewRange or ParseRange.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a kept span of source time as produced by the segment
// calculators. Same shape as Range.
type Segment = Range

func (r Range) Duration() float64 { return r.End - r.Start }

func (r Range) String() string {
	return FormatSeconds(r.Start) + "s-" + FormatSeconds(r.End) + "s"
}

func NewRange(start, end float64) (Range, error) {
	if math.IsNaN(start) || math.IsInf(start, 0) || math.IsNaN(end) || math.IsInf(end, 0) {
		return Range{}, fmt.Errorf("%w: bounds must be finite", ErrMalformedRange)
	}
	if start < 0 {
		return Range{}, fmt.Errorf("%w: start %s is negative", ErrMalformedRange, FormatSeconds(start))
	}
	if end <= start {
		return Range{}, fmt.Errorf("%w: end %s is not after start %s", ErrMalformedRange, FormatSeconds(end), FormatSeconds(start))
	}
	return Range{Start: start, End: end}, nil
}

// ParseRange parses a "<start>s-<end>s" literal such as "2s-7.5s". Both
// bounds are non-negative seconds with an optional fractional part and a
// mandatory "s" suffix.
func ParseRange(s string) (Range, error) {
	lhs, rhs, ok := strings.Cut(s, "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q (want \"<start>s-<end>s\")", ErrMalformedRange, s)
	}
	start, err := parseSeconds(lhs)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: %v", ErrMalformedRange, s, err)
	}
	end, err := parseSeconds(rhs)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: %v", ErrMalformedRange, s, err)
	}
	return NewRange(start, end)
}

func parseSeconds(s string) (float64, error) {
	num, ok := strings.CutSuffix(s, "s")
	if !ok || num == "" {
		return 0, fmt.Errorf("bound %q lacks an \"s\" suffix", s)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("bound %q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("bound %q is not finite", s)
	}
	return v, nil
}

// UnmarshalJSON accepts both the compact literal form ("2s-7.5s") used by
// plan files and the {"start":2,"end":7.5} object form.
func (r *Range) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var lit string
		if err := json.Unmarshal(b, &lit); err != nil {
			return err
		}
		parsed, err := ParseRange(lit)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	}
	type plain Range
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	parsed, err := NewRange(p.Start, p.End)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// FormatSeconds renders seconds the way engine arguments and filter
// expressions expect them: fixed three-decimal notation.
func FormatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
