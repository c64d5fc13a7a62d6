// Package nlopt binds the NLopt nonlinear optimization library.
//
// The package owns the parts NLopt cannot check for itself: that every Go
// closure handed to NLopt stays alive and addressable for as long as NLopt
// may call it, that it is released as soon as NLopt can no longer call it,
// and that NLopt's integer status codes never reach callers untyped.
//
// # Usage
//
//	p, err := nlopt.New(nlopt.LDMMA, 2)
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//
//	p.SetObjective(nlopt.Minimize, nlopt.EvaluatorFunc(func(x []float64, grad bool) (float64, []float64) {
//		if grad {
//			return math.Sqrt(x[1]), []float64{0, 0.5 / math.Sqrt(x[1])}
//		}
//		return math.Sqrt(x[1]), nil
//	}))
//	p.SetLowerBounds([]float64{math.Inf(-1), 0})
//	p.SetStop(nlopt.XTolRel(1e-4))
//
//	sol, err := p.Optimize([]float64{1.234, 5.678})
//
// # Callbacks
//
// Each registered objective or constraint gets a closure context: a small C
// allocation whose address NLopt stores as the callback's user data and which
// holds a cgo.Handle to the Go side. NLopt always calls the same exported
// trampoline; the trampoline resolves the handle, copies the candidate
// vector into Go memory, calls the Evaluator and copies any gradient back.
// Contexts are released when the objective is replaced, when constraints are
// removed, when registration fails, and when the Problem is closed.
//
// Callbacks run synchronously on the goroutine that called Optimize. A panic
// inside a callback is fatal to the process: it cannot be delivered through
// NLopt, and unwinding through NLopt's C frames would leave it in an
// undefined state.
//
// # Errors
//
// Successful terminations are reported as a Result, failures as an Error
// value (ErrForcedStop, ErrRoundoffLimited, ErrOutOfMemory, ErrInvalidArgs,
// ErrFailure, ErrUnknown). Errors are wrapped with the failing operation and
// can be matched with errors.Is.
package nlopt
