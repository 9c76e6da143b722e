package speech

import (
	"unicode/utf8"
)

// MaxUnitRunes is the default upper bound on a spoken unit's length.
// Units reaching it are re-split at the next clause mark.
const MaxUnitRunes = 100

// Splitter cuts an incremental text stream into speakable units.
//
// A unit ends at a sentence terminator, or at a clause mark once the
// pending text has reached the rune limit. Input chunks may arrive with
// a trailing partial UTF-8 sequence; incomplete bytes are held back
// until the rest arrives, so cuts always fall on character boundaries.
// Splitter never yields an empty unit.
type Splitter struct {
	maxRunes int
	pending  []byte
	incoming []byte
}

// NewSplitter creates a Splitter. maxRunes <= 0 selects MaxUnitRunes.
func NewSplitter(maxRunes int) *Splitter {
	if maxRunes <= 0 {
		maxRunes = MaxUnitRunes
	}
	return &Splitter{maxRunes: maxRunes}
}

func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '\n', '.', '?', '!':
		return true
	}
	return false
}

func isClauseMark(r rune) bool {
	return r == '、' || r == ','
}

// Push appends a chunk and returns the units completed by it, in order.
func (s *Splitter) Push(chunk string) []string {
	s.incoming = append(s.incoming, chunk...)

	// Only complete runes move from incoming to pending.
	cut := completeRuneLen(s.incoming)
	s.pending = append(s.pending, s.incoming[:cut]...)
	s.incoming = s.incoming[cut:]

	var units []string
	for {
		unit := s.takeUnit()
		if unit == "" {
			return units
		}
		units = append(units, unit)
	}
}

// takeUnit cuts one complete unit off the front of pending, or returns
// "" when no boundary has been reached yet.
func (s *Splitter) takeUnit() string {
	for {
		boundary := -1
		runes := 0
		for i := 0; i < len(s.pending); {
			r, size := utf8.DecodeRune(s.pending[i:])
			i += size
			runes++
			if isTerminator(r) || (runes >= s.maxRunes && isClauseMark(r)) {
				boundary = i
				break
			}
		}
		if boundary < 0 {
			return ""
		}
		unit := string(s.pending[:boundary])
		s.pending = s.pending[boundary:]
		if isBlank(unit) {
			// A lone terminator (e.g. the \n between sentences) does
			// not make a speakable unit.
			continue
		}
		return unit
	}
}

// Flush returns any remaining buffered text as a final unit, or "" when
// nothing is pending. Held-back incomplete bytes are discarded.
func (s *Splitter) Flush() string {
	unit := string(s.pending)
	s.pending = nil
	s.incoming = nil
	if isBlank(unit) {
		return ""
	}
	return unit
}

// SplitLong re-splits text exceeding maxRunes at clause marks. Text with
// no clause mark is returned whole regardless of length.
func SplitLong(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = MaxUnitRunes
	}
	if utf8.RuneCountInString(text) <= maxRunes {
		return []string{text}
	}
	var units []string
	start, runes := 0, 0
	for i, r := range text {
		runes++
		if runes >= maxRunes && isClauseMark(r) {
			end := i + utf8.RuneLen(r)
			units = append(units, text[start:end])
			start = end
			runes = 0
		}
	}
	if start < len(text) {
		units = append(units, text[start:])
	}
	return units
}

// completeRuneLen returns the length of the longest prefix of b made of
// complete UTF-8 sequences.
func completeRuneLen(b []byte) int {
	// Only the last UTFMax-1 bytes can hold an unfinished sequence.
	for i := len(b) - 1; i >= 0 && len(b)-i < utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if r, size := utf8.DecodeRune(b[i:]); r == utf8.RuneError && size == 1 {
			// Start of a rune whose tail has not arrived yet.
			return i
		}
		return len(b)
	}
	return len(b)
}

func isBlank(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\r', '\n', '　':
		default:
			return false
		}
	}
	return true
}
