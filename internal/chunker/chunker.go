// Package chunker splits document text into overlapping chunks for
// embedding. Lengths are measured in runes. Each split point is chosen at the
// strongest natural boundary available: paragraph, then sentence or line,
// then word, then a hard cut.
package chunker

import (
	"fmt"
)

// Default settings used when the configuration leaves them unset.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// boundaries lists separator groups from strongest to weakest. A split is
// placed immediately after the separator.
var boundaries = [][]string{
	{"\n\n"},
	{". ", "! ", "? ", "\n"},
	{" "},
}

// Span is one chunk and its rune offsets in the source text.
type Span struct {
	// Text is the chunk content.
	Text string
	// Start is the rune offset of the first character.
	Start int
	// End is the rune offset one past the last character.
	End int
}

// Splitter holds validated chunking parameters.
type Splitter struct {
	size    int
	overlap int
	seps    [][][]rune
}

// New returns a Splitter producing chunks of at most size runes where
// consecutive chunks share exactly overlap runes.
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunker: overlap must be in [0, size), got overlap=%d size=%d", overlap, size)
	}
	seps := make([][][]rune, len(boundaries))
	for i, group := range boundaries {
		for _, s := range group {
			seps[i] = append(seps[i], []rune(s))
		}
	}
	return &Splitter{size: size, overlap: overlap, seps: seps}, nil
}

// Size returns the maximum chunk length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the number of runes shared by consecutive chunks.
func (s *Splitter) Overlap() int { return s.overlap }

// Split divides text into spans. Empty text yields no spans. The result is a
// pure function of the input: the same text always splits the same way.
//
// Dropping the first Overlap runes of every span after the first and
// concatenating reproduces text exactly.
func (s *Splitter) Split(text string) []Span {
	r := []rune(text)
	n := len(r)
	if n == 0 {
		return nil
	}

	var spans []Span
	start := 0
	for {
		if n-start <= s.size {
			spans = append(spans, Span{Text: string(r[start:]), Start: start, End: n})
			return spans
		}
		end := s.breakpoint(r, start)
		spans = append(spans, Span{Text: string(r[start:end]), Start: start, End: end})
		start = end - s.overlap
	}
}

// breakpoint returns the end offset for a chunk beginning at start. The end
// always lies in (start+overlap, start+size] so the next chunk advances.
func (s *Splitter) breakpoint(r []rune, start int) int {
	limit := start + s.size
	floor := start + s.overlap
	for _, group := range s.seps {
		best := -1
		for _, sep := range group {
			if p := lastBoundary(r, sep, floor, limit); p > best {
				best = p
			}
		}
		if best > 0 {
			return best
		}
	}
	return limit
}

// lastBoundary returns the largest p in (floor, limit] such that sep ends at
// p, or -1.
func lastBoundary(r, sep []rune, floor, limit int) int {
	for p := limit; p > floor; p-- {
		i := p - len(sep)
		if i < 0 {
			return -1
		}
		if equal(r[i:p], sep) {
			return p
		}
	}
	return -1
}

func equal(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Split is a convenience wrapper around New and Splitter.Split.
func Split(text string, size, overlap int) ([]Span, error) {
	sp, err := New(size, overlap)
	if err != nil {
		return nil, err
	}
	return sp.Split(text), nil
}
