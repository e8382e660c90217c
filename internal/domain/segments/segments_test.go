package segments

import (
	"testing"

	"github.com/forPelevin/adcut/internal/domain/timespan"
	"github.com/forPelevin/adcut/internal/types"
)

func w(text string, start, end float64) types.Word {
	return types.Word{Word: text, Start: start, End: end}
}

func TestSplitOnSilence_NoWordsKeepsWholeClip(t *testing.T) {
	got := SplitOnSilence(nil, 1.0, 12.5)
	want := []timespan.Segment{{Start: 0, End: 12.5}}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitOnSilence_GapSplits(t *testing.T) {
	words := []types.Word{
		w("hello", 0.5, 1.0),
		w("there", 1.2, 1.8),
		// 2.2s gap
		w("welcome", 4.0, 4.6),
		w("back", 4.7, 5.1),
	}
	got := SplitOnSilence(words, 1.0, 10)
	want := []timespan.Segment{{Start: 0.5, End: 1.8}, {Start: 4.0, End: 5.1}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitOnSilence_GapBelowThresholdDoesNotSplit(t *testing.T) {
	words := []types.Word{
		w("one", 0, 0.5),
		w("two", 1.3, 1.9), // 0.8s gap < 1.0s threshold
	}
	got := SplitOnSilence(words, 1.0, 5)
	if len(got) != 1 {
		t.Fatalf("expected a single span, got %v", got)
	}
	if got[0].Start != 0 || got[0].End != 1.9 {
		t.Fatalf("got %v", got[0])
	}
}

func TestSplitOnSilence_DropsDegenerateSpans(t *testing.T) {
	words := []types.Word{
		w("hm", 0, 0.05), // 0.05s span, dropped
		w("real", 3.0, 4.0),
	}
	got := SplitOnSilence(words, 1.0, 5)
	if len(got) != 1 || got[0].Start != 3.0 {
		t.Fatalf("expected only the long span, got %v", got)
	}
}

func TestSplitOnSilence_SortsUnorderedInput(t *testing.T) {
	words := []types.Word{
		w("later", 5.0, 5.6),
		w("first", 0.2, 0.9),
	}
	got := SplitOnSilence(words, 1.0, 10)
	if len(got) != 2 {
		t.Fatalf("expected two spans, got %v", got)
	}
	if got[0].Start != 0.2 || got[1].Start != 5.0 {
		t.Fatalf("spans out of order: %v", got)
	}
}

func TestSplitOnSilence_IgnoresInvalidWords(t *testing.T) {
	words := []types.Word{
		w("", 0, 1),          // empty text
		w("bad", 2.0, 2.0),   // zero duration
		w("fine", 3.0, 3.8),
	}
	got := SplitOnSilence(words, 1.0, 5)
	if len(got) != 1 || got[0].Start != 3.0 || got[0].End != 3.8 {
		t.Fatalf("got %v", got)
	}
}

func TestKeywordSpans_Table(t *testing.T) {
	script := []types.Word{
		w("okay", 0, 0.4),
		w("action", 1.0, 1.5),
		w("first", 1.6, 2.0),
		w("take", 2.1, 2.5),
		w("cut", 3.0, 3.4),
		w("no", 3.5, 3.8),
		w("cut!", 5.0, 5.5), // last end before re-arm wins
		w("Action", 7.0, 7.4),
		w("second", 7.5, 8.0),
		w("cut", 9.0, 9.6),
	}

	tests := []struct {
		name       string
		words      []types.Word
		start, end string
		want       []timespan.Segment
	}{
		{
			name:  "no start match",
			words: script,
			start: "missing", end: "cut",
			want: nil,
		},
		{
			name:  "start without end",
			words: []types.Word{w("action", 1, 1.5), w("rolling", 2, 2.5)},
			start: "action", end: "cut",
			want: nil,
		},
		{
			name:  "two spans with re-arm and last end wins",
			words: script,
			start: "action", end: "cut",
			want: []timespan.Segment{{Start: 1.0, End: 5.5}, {Start: 7.0, End: 9.6}},
		},
		{
			name:  "case-insensitive substring",
			words: []types.Word{w("ACTION!", 0, 0.5), w("mid", 1, 1.4), w("CuT.", 2, 2.6)},
			start: "action", end: "cut",
			want: []timespan.Segment{{Start: 0, End: 2.6}},
		},
		{
			name:  "end before start is ignored",
			words: []types.Word{w("cut", 0, 0.4), w("action", 1, 1.5)},
			start: "action", end: "cut",
			want: nil,
		},
		{
			name:  "empty needle never matches",
			words: script,
			start: "", end: "cut",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeywordSpans(tt.words, tt.start, tt.end)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("span %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
