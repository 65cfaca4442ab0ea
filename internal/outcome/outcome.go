// Package outcome models the result of a best-effort, per-item pipeline stage.
// A stage never fails its caller; it reports a value, a fallback value with a
// reason, or a skip with a reason, and the caller decides what to log.
package outcome

// Kind tags how a Result was produced.
type Kind int

const (
	// Applied means the stage transformed its input.
	Applied Kind = iota
	// Fallback means the stage failed and Value holds the untouched input.
	Fallback
	// Skipped means the stage failed and contributes nothing.
	Skipped
)

func (k Kind) String() string {
	switch k {
	case Applied:
		return "applied"
	case Fallback:
		return "fallback"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result is the value of one stage for one item.
type Result[T any] struct {
	Value  T
	Kind   Kind
	Reason error
}

// Ok wraps a successfully transformed value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Kind: Applied}
}

// Fall keeps the original value and records why the stage did not apply.
func Fall[T any](original T, reason error) Result[T] {
	return Result[T]{Value: original, Kind: Fallback, Reason: reason}
}

// Skip records that the item contributes nothing.
func Skip[T any](reason error) Result[T] {
	var zero T
	return Result[T]{Value: zero, Kind: Skipped, Reason: reason}
}

// Degraded reports whether the stage did not apply.
func (r Result[T]) Degraded() bool {
	return r.Kind != Applied
}
