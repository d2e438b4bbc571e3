package srs

import (
	"fmt"
	"strings"
)

// Quality is the learner's recall grade for a single review.
type Quality int

const (
	// Again: complete failure to recall.
	Again Quality = iota
	// Hard: incorrect, but partially remembered.
	Hard
	// Good: correct with hesitation. First passing grade.
	Good
	// Easy: perfect recall.
	Easy
)

// Correct reports whether the grade meets the passing threshold.
func (q Quality) Correct() bool {
	return q >= Good
}

func (q Quality) String() string {
	switch q {
	case Again:
		return "again"
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "again":
		return Again, nil
	case "hard":
		return Hard, nil
	case "good":
		return Good, nil
	case "easy":
		return Easy, nil
	default:
		return 0, fmt.Errorf("unknown quality %q", s)
	}
}
