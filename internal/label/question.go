package label

// Question is a named predicate over a Label, compiled from a tree file's
// "QS name { pat, pat, ... }" block. A label satisfies the question if it
// matches any one of the patterns (logical OR).
type Question struct {
	Name     string
	Patterns []Pattern
}

// NewQuestion builds a Question from raw pattern strings.
func NewQuestion(name string, patterns []string) Question {
	q := Question{Name: name, Patterns: make([]Pattern, len(patterns))}
	for i, p := range patterns {
		q.Patterns[i] = NewPattern(p)
	}

	return q
}

// Match reports whether the label's context string satisfies the question.
func (q Question) Match(l Label) bool {
	for _, p := range q.Patterns {
		if p.Match(l.Text) {
			return true
		}
	}

	return false
}
