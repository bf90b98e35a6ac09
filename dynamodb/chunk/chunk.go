// Package chunk splits oversized string attributes into numbered sub-attributes
// and joins them back together.
//
// An attribute "essay" split three ways is stored as "essay1", "essay2" and
// "essay3". Empty pieces are not written.
package chunk

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

const (
	// DefaultSize is the automatic chunk size in bytes, kept under DynamoDB's
	// per-attribute budget inside a 400 KB item.
	DefaultSize = 64000
	// MaxItemSize is DynamoDB's item size limit.
	MaxItemSize = 400 * 1024
)

// Directive says how a breakable attribute is split.
// Count > 0 splits into a fixed number of pieces, Size > 0 into pieces of at
// most Size bytes. The zero Directive is automatic sizing with DefaultSize.
type Directive struct {
	Count int
	Size  int
}

func Auto() Directive { return Directive{} }

func (d Directive) Validate() error {
	if d.Count < 0 || d.Size < 0 {
		return fmt.Errorf("chunk count and size must not be negative, got count=%d size=%d", d.Count, d.Size)
	}
	if d.Count > 0 && d.Size > 0 {
		return fmt.Errorf("chunk count and size are mutually exclusive")
	}
	return nil
}

func (d Directive) size() int {
	if d.Size > 0 {
		return d.Size
	}
	return DefaultSize
}

// Split cuts s according to d. Count directives give exactly Count pieces,
// size directives give pieces of at most the size in bytes.
func (d Directive) Split(s string) []string {
	if d.Count > 0 {
		return Split(s, d.Count)
	}
	return SplitSize(s, d.size())
}

// Pieces returns how many pieces s is split into. It is at least 1.
func (d Directive) Pieces(s string) int {
	return len(d.Split(s))
}

// MaxPieces is the most pieces a value can occupy in a single item.
func (d Directive) MaxPieces() int {
	if d.Count > 0 {
		return d.Count
	}
	// a rune-aligned cut gives up at most UTFMax-1 bytes of a window
	least := max(d.size()-utf8.UTFMax+1, 1)
	return (MaxItemSize + least - 1) / least
}

func (d Directive) String() string {
	switch {
	case d.Count > 0:
		return strconv.Itoa(d.Count) + " pieces"
	case d.Size > 0:
		return humanize.Bytes(uint64(d.Size)) + " pieces"
	}
	return "auto"
}

// ParseSize parses sizes such as "10kb" or "64000".
func ParseSize(s string) (int, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse chunk size %q: %w", s, err)
	}
	if n == 0 || n > MaxItemSize {
		return 0, fmt.Errorf("chunk size %q out of range (1B..%s)", s, humanize.Bytes(MaxItemSize))
	}
	return int(n), nil
}

// Split cuts s into exactly n contiguous pieces whose concatenation is s.
// Pieces are as even as possible in bytes; cut points are moved back so no
// UTF-8 sequence is broken, which can leave some pieces empty for short inputs.
func Split(s string, n int) []string {
	if n < 1 {
		n = 1
	}
	out := make([]string, n)
	prev := 0
	for i := 1; i < n; i++ {
		cut := i * len(s) / n
		for cut > prev && cut < len(s) && !utf8.RuneStart(s[cut]) {
			cut--
		}
		cut = max(cut, prev)
		out[i-1] = s[prev:cut]
		prev = cut
	}
	out[n-1] = s[prev:]
	return out
}

// SplitSize cuts s into pieces of at most size bytes whose concatenation is s.
// Each cut is moved back to a rune start. A rune wider than size is kept whole
// in its own piece. The result has at least one piece.
func SplitSize(s string, size int) []string {
	size = max(size, 1)
	out := make([]string, 0, len(s)/size+1)
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(s)
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return append(out, s)
}

// PartName returns the attribute name of the i-th piece (1-based).
func PartName(key string, i int) string {
	return key + strconv.Itoa(i)
}

// Apply replaces rec[key] with its numbered pieces under d and removes key.
// Non-string and missing values are left alone. rec is modified in place.
func Apply(rec map[string]any, key string, d Directive) map[string]any {
	s, ok := rec[key].(string)
	if !ok {
		return rec
	}
	for i, piece := range d.Split(s) {
		if piece == "" {
			continue
		}
		rec[PartName(key, i+1)] = piece
	}
	delete(rec, key)
	return rec
}

// Join reassembles the numbered parts of key, in index order, into key and
// removes the parts. Gaps left by skipped empty pieces are tolerated. A record
// that still carries key itself is returned unchanged.
func Join(rec map[string]any, key string) map[string]any {
	if _, ok := rec[key]; ok {
		return rec
	}
	idx := Parts(rec, key)
	if len(idx) == 0 {
		return rec
	}
	var sb strings.Builder
	for _, i := range idx {
		name := PartName(key, i)
		sb.WriteString(rec[name].(string))
		delete(rec, name)
	}
	rec[key] = sb.String()
	return rec
}

// Parts returns the sorted indices of the string parts of key present in rec.
func Parts(rec map[string]any, key string) []int {
	var idx []int
	for name, v := range rec {
		if _, ok := v.(string); !ok {
			continue
		}
		i, ok := partIndex(name, key)
		if ok {
			idx = append(idx, i)
		}
	}
	slices.Sort(idx)
	return idx
}

// IsPart reports whether name is the attribute name of a piece of key.
func IsPart(name, key string) bool {
	_, ok := partIndex(name, key)
	return ok
}

func partIndex(name, key string) (int, bool) {
	suffix, ok := strings.CutPrefix(name, key)
	if !ok || suffix == "" || suffix[0] == '0' {
		return 0, false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return i, true
}
