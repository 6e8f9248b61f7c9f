// Package textutil holds the rune-level helpers shared by the extraction analyzers:
// clause and sentence bounds, clipped windows and a longest-first lexicon matcher.
package textutil

import (
	"sort"
	"strings"
)

// IsClauseBoundary reports runes that end a clause. The enumeration comma 、 does not.
func IsClauseBoundary(r rune) bool {
	switch r {
	case '，', ',', '。', '！', '？', '；', ';', '!', '?', '.', '\n', '\r':
		return true
	}
	return false
}

// IsSentenceBoundary reports runes that end a sentence. Commas do not.
func IsSentenceBoundary(r rune) bool {
	switch r {
	case '。', '！', '？', '；', ';', '!', '?', '.', '\n', '\r':
		return true
	}
	return false
}

// ClauseBounds returns the half-open clause [start,end) that contains pos.
func ClauseBounds(runes []rune, pos int) (int, int) {
	return bounds(runes, pos, IsClauseBoundary)
}

// SentenceBounds returns the half-open sentence [start,end) that contains pos.
func SentenceBounds(runes []rune, pos int) (int, int) {
	return bounds(runes, pos, IsSentenceBoundary)
}

func bounds(runes []rune, pos int, boundary func(rune) bool) (int, int) {
	if len(runes) == 0 {
		return 0, 0
	}
	pos = Clamp(pos, 0, len(runes)-1)
	start := pos
	for start > 0 && !boundary(runes[start-1]) {
		start--
	}
	end := pos
	for end < len(runes) && !boundary(runes[end]) {
		end++
	}
	return start, end
}

// Window clips [start-radius, end+radius) to [lo,hi).
func Window(start, end, radius, lo, hi int) (int, int) {
	return Clamp(start-radius, lo, hi), Clamp(end+radius, lo, hi)
}

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HasBoundary reports whether runes[from:to) contains a clause boundary.
func HasBoundary(runes []rune, from, to int) bool {
	from = Clamp(from, 0, len(runes))
	to = Clamp(to, 0, len(runes))
	for i := from; i < to; i++ {
		if IsClauseBoundary(runes[i]) {
			return true
		}
	}
	return false
}

// ContainsAny returns the first term contained in text.
func ContainsAny(text string, terms []string) (string, bool) {
	for _, term := range terms {
		if term != "" && strings.Contains(text, term) {
			return term, true
		}
	}
	return "", false
}

// Entry is one lexicon term with its payload.
type Entry[T any] struct {
	Term  string
	Value T
}

// Match is a lexicon hit over the rune slice [Start,End).
type Match[T any] struct {
	Start int
	End   int
	Term  string
	Value T
}

// Lexicon matches terms longest-first; each rune is consumed by at most one match.
type Lexicon[T any] struct {
	entries []lexEntry[T]
}

type lexEntry[T any] struct {
	term  string
	runes []rune
	value T
}

func NewLexicon[T any](entries []Entry[T]) *Lexicon[T] {
	out := make([]lexEntry[T], 0, len(entries))
	for _, e := range entries {
		if e.Term == "" {
			continue
		}
		out = append(out, lexEntry[T]{term: e.Term, runes: []rune(e.Term), value: e.Value})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].runes) > len(out[j].runes)
	})
	return &Lexicon[T]{entries: out}
}

// FindAll returns non-overlapping matches inside runes[lo:hi) sorted by position.
func (l *Lexicon[T]) FindAll(runes []rune, lo, hi int) []Match[T] {
	return l.FindAllMasked(runes, lo, hi, nil)
}

// FindAllMasked is FindAll with a caller-owned mask; masked runes never match
// and matched runes are marked in the mask. A nil mask allocates a private one.
func (l *Lexicon[T]) FindAllMasked(runes []rune, lo, hi int, mask []bool) []Match[T] {
	lo = Clamp(lo, 0, len(runes))
	hi = Clamp(hi, lo, len(runes))
	if mask == nil {
		mask = make([]bool, len(runes))
	}

	var matches []Match[T]
	for _, e := range l.entries {
		n := len(e.runes)
		for i := lo; i+n <= hi; i++ {
			if !equalAt(runes, i, e.runes) || anyMasked(mask, i, i+n) {
				continue
			}
			for k := i; k < i+n; k++ {
				mask[k] = true
			}
			matches = append(matches, Match[T]{Start: i, End: i + n, Term: e.term, Value: e.value})
			i += n - 1
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

func equalAt(runes []rune, at int, term []rune) bool {
	for k, r := range term {
		if runes[at+k] != r {
			return false
		}
	}
	return true
}

func anyMasked(mask []bool, from, to int) bool {
	for k := from; k < to; k++ {
		if mask[k] {
			return true
		}
	}
	return false
}
