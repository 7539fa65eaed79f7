package label

import "strings"

// Pattern is a question pattern over a full-context label string. The only
// metacharacter is '*', matching any run of characters (including empty);
// every other rune, including '?', is matched literally. This mirrors the
// HTS question-pattern grammar, not shell globbing.
type Pattern struct {
	raw    string
	pieces []string // raw split on '*'
}

// NewPattern compiles a pattern string such as "*/A:-??+*".
func NewPattern(raw string) Pattern {
	return Pattern{raw: raw, pieces: strings.Split(raw, "*")}
}

func (p Pattern) String() string { return p.raw }

// Match reports whether text satisfies the pattern.
func (p Pattern) Match(text string) bool {
	pieces := p.pieces
	if len(pieces) == 1 {
		return text == pieces[0]
	}

	// First piece must be a prefix (possibly empty), last must be a suffix.
	if !strings.HasPrefix(text, pieces[0]) {
		return false
	}

	text = text[len(pieces[0]):]
	last := pieces[len(pieces)-1]

	if !strings.HasSuffix(text, last) {
		return false
	}

	text = text[:len(text)-len(last)]

	// Middle pieces must occur in order, non-overlapping.
	for _, mid := range pieces[1 : len(pieces)-1] {
		if mid == "" {
			continue
		}

		idx := strings.Index(text, mid)
		if idx < 0 {
			return false
		}

		text = text[idx+len(mid):]
	}

	return true
}
