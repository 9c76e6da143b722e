package speech

import (
	"strings"
	"testing"
)

func pushAll(s *Splitter, chunks ...string) []string {
	var units []string
	for _, c := range chunks {
		units = append(units, s.Push(c)...)
	}
	if tail := s.Flush(); tail != "" {
		units = append(units, tail)
	}
	return units
}

func TestSplitterSentences(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
	}{
		{
			name:   "hotword turn response",
			chunks: []string{"はい。\n現在", "は12時です。"},
			want:   []string{"はい。", "現在は12時です。"},
		},
		{
			name:   "ascii terminators",
			chunks: []string{"Sure. Let me", " check!"},
			want:   []string{"Sure.", " Let me check!"},
		},
		{
			name:   "question marks",
			chunks: []string{"そうですか？なるほど。"},
			want:   []string{"そうですか？", "なるほど。"},
		},
		{
			name:   "no terminator flushes whole",
			chunks: []string{"終端記号のないテキスト"},
			want:   []string{"終端記号のないテキスト"},
		},
		{
			name:   "blank input yields nothing",
			chunks: []string{"\n", "  ", "\n\n"},
			want:   nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := pushAll(NewSplitter(0), tc.chunks...)
			if len(got) != len(tc.want) {
				t.Fatalf("units = %q; want %q", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("unit %d = %q; want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSplitterClauseMarkAfterLimit(t *testing.T) {
	// 120 runes with a clause mark at rune 110: cut happens there, not
	// at the earlier clause mark before the limit.
	head := strings.Repeat("あ", 50) + "、" + strings.Repeat("い", 59)
	tail := "、" + strings.Repeat("う", 9)

	s := NewSplitter(100)
	units := s.Push(head + tail + "。")
	if len(units) != 2 {
		t.Fatalf("units = %d (%q); want 2", len(units), units)
	}
	if units[0] != head+"、" {
		t.Errorf("unit 0 ends = %q; want clause cut after limit", units[0][len(units[0])-3:])
	}
}

func TestSplitterLongSentenceNoClause(t *testing.T) {
	// 300 runes, no terminator, no clause mark: a single whole unit.
	text := strings.Repeat("長", 300)
	units := pushAll(NewSplitter(100), text)
	if len(units) != 1 || units[0] != text {
		t.Fatalf("got %d units; want the whole text as one unit", len(units))
	}
}

func TestSplitterMidRuneChunks(t *testing.T) {
	text := "今日は晴れ。明日は雨。"
	raw := []byte(text)

	// Feed byte-by-byte: every multibyte rune arrives split.
	s := NewSplitter(0)
	var units []string
	for _, b := range raw {
		units = append(units, s.Push(string([]byte{b}))...)
	}
	if tail := s.Flush(); tail != "" {
		units = append(units, tail)
	}

	want := []string{"今日は晴れ。", "明日は雨。"}
	if len(units) != len(want) {
		t.Fatalf("units = %q; want %q", units, want)
	}
	for i := range want {
		if units[i] != want[i] {
			t.Errorf("unit %d = %q; want %q", i, units[i], want[i])
		}
	}
}

func TestSplitterNeverEmitsEmpty(t *testing.T) {
	s := NewSplitter(0)
	for _, chunk := range []string{"。", "！", "\n", "a。\n\n。b。"} {
		for _, u := range s.Push(chunk) {
			if isBlank(u) {
				t.Fatalf("blank unit %q emitted", u)
			}
		}
	}
}

func TestSplitLong(t *testing.T) {
	short := "短い文"
	if got := SplitLong(short, 100); len(got) != 1 || got[0] != short {
		t.Errorf("SplitLong(short) = %q", got)
	}

	long := strings.Repeat("あ", 120) + "、" + strings.Repeat("い", 30)
	got := SplitLong(long, 100)
	if len(got) != 2 {
		t.Fatalf("SplitLong = %d units; want 2", len(got))
	}
	if got[0]+got[1] != long {
		t.Error("SplitLong lost text")
	}

	noClause := strings.Repeat("う", 200)
	if got := SplitLong(noClause, 100); len(got) != 1 {
		t.Errorf("SplitLong(no clause) = %d units; want 1", len(got))
	}
}
