package extraction

// Candidate is a provisional field value with its confidence. The zero value
// is the absent candidate: no value, confidence 0.
type Candidate[T any] struct {
	Value      T
	Confidence float64
	found      bool
}

// Found builds a present candidate.
func Found[T any](v T, confidence float64) Candidate[T] {
	return Candidate[T]{Value: v, Confidence: confidence, found: true}
}

// Absent reports whether no pattern produced a value.
func (c Candidate[T]) Absent() bool { return !c.found }

// Rule is one extraction attempt over the full text.
type Rule[T any] func(text string) Candidate[T]

// FirstMatch runs rules in order and returns the first present candidate.
func FirstMatch[T any](text string, rules ...Rule[T]) Candidate[T] {
	for _, r := range rules {
		if c := r(text); !c.Absent() {
			return c
		}
	}
	return Candidate[T]{}
}
