package nlopt

// Evaluator computes an objective or constraint at x. When wantGradient is
// true the returned gradient must have len(x) entries in variable order; a
// nil gradient leaves NLopt's buffer untouched. When wantGradient is false the
// gradient is ignored and should not be computed.
//
// x is only valid for the duration of the call and must not be modified or
// retained. Evaluate runs on the goroutine that called Optimize, from inside
// NLopt's call stack. A panic inside Evaluate terminates the process.
type Evaluator interface {
	Evaluate(x []float64, wantGradient bool) (float64, []float64)
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(x []float64, wantGradient bool) (float64, []float64)

func (f EvaluatorFunc) Evaluate(x []float64, wantGradient bool) (float64, []float64) {
	return f(x, wantGradient)
}

// Func is an evaluation function that receives auxiliary state of type T.
type Func[T any] func(x []float64, state *T, wantGradient bool) (float64, []float64)

// Bind pairs f with its auxiliary state. state may be nil; f then receives
// nil. The same f can be bound to different states, e.g. one constraint
// function with per-constraint coefficients.
func Bind[T any](f Func[T], state *T) Evaluator {
	return &boundFunc[T]{f: f, state: state}
}

type boundFunc[T any] struct {
	f     Func[T]
	state *T
}

func (b *boundFunc[T]) Evaluate(x []float64, wantGradient bool) (float64, []float64) {
	return b.f(x, b.state, wantGradient)
}
