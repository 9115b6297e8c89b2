// Package token defines source positions shared by the compiler, the
// bytecode debug table, and runtime errors.
package token

import "fmt"

// Span identifies a half-open range of byte offsets in the source text.
type Span struct {
	Start int
	End   int
}

// NewSpan returns a span covering [start, end).
func NewSpan(start, end int) Span {
	return Span{Start: start, End: end}
}

// IsZero returns true if the span has not been set.
func (s Span) IsZero() bool {
	return s.Start == 0 && s.End == 0
}

// Merge returns the smallest span covering both s and other.
func (s Span) Merge(other Span) Span {
	if other.IsZero() {
		return s
	}
	if s.IsZero() {
		return other
	}
	merged := s
	if other.Start < merged.Start {
		merged.Start = other.Start
	}
	if other.End > merged.End {
		merged.End = other.End
	}
	return merged
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}
