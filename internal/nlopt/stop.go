package nlopt

import (
	"fmt"
	"math"
	"time"
)

// StopCond is a stopping criterion. Each variant maps to exactly one NLopt
// setter; a non-positive tolerance, evaluation count or time disables the
// criterion inside NLopt.
type StopCond interface {
	apply(h handle, n int) int
	fmt.Stringer
}

// FTolRel stops when a step changes the objective by less than this fraction
// of its absolute value.
type FTolRel float64

// FTolAbs stops when a step changes the objective by less than this amount.
type FTolAbs float64

// XTolRel stops when a step changes every variable by less than this fraction
// of its absolute value.
type XTolRel float64

// XTolAbs holds one absolute variable tolerance per variable; its length must
// equal the problem dimension.
type XTolAbs []float64

// XTolAbs1 applies one absolute tolerance to every variable.
type XTolAbs1 float64

// StopVal stops once the objective reaches this value (at most this value
// when minimizing, at least when maximizing).
type StopVal float64

// MaxEval stops after this many objective evaluations.
type MaxEval int

// MaxTime stops after roughly this much wall-clock time. NLopt checks it
// between evaluations; it does not preempt a running callback.
type MaxTime time.Duration

func (v FTolRel) apply(h handle, _ int) int  { return cSetFTolRel(h, float64(v)) }
func (v FTolAbs) apply(h handle, _ int) int  { return cSetFTolAbs(h, float64(v)) }
func (v XTolRel) apply(h handle, _ int) int  { return cSetXTolRel(h, float64(v)) }
func (v XTolAbs1) apply(h handle, _ int) int { return cSetXTolAbs1(h, float64(v)) }
func (v StopVal) apply(h handle, _ int) int  { return cSetStopVal(h, float64(v)) }

func (v XTolAbs) apply(h handle, n int) int {
	if len(v) != n {
		return int(ErrInvalidArgs)
	}
	return cSetXTolAbs(h, v)
}

func (v MaxEval) apply(h handle, _ int) int {
	if int64(v) > math.MaxInt32 {
		return int(ErrInvalidArgs)
	}
	return cSetMaxEval(h, int(v))
}

func (v MaxTime) apply(h handle, _ int) int {
	return cSetMaxTime(h, time.Duration(v).Seconds())
}

func (v FTolRel) String() string  { return fmt.Sprintf("ftol_rel=%g", float64(v)) }
func (v FTolAbs) String() string  { return fmt.Sprintf("ftol_abs=%g", float64(v)) }
func (v XTolRel) String() string  { return fmt.Sprintf("xtol_rel=%g", float64(v)) }
func (v XTolAbs) String() string  { return fmt.Sprintf("xtol_abs=%v", []float64(v)) }
func (v XTolAbs1) String() string { return fmt.Sprintf("xtol_abs1=%g", float64(v)) }
func (v StopVal) String() string  { return fmt.Sprintf("stopval=%g", float64(v)) }
func (v MaxEval) String() string  { return fmt.Sprintf("maxeval=%d", int(v)) }
func (v MaxTime) String() string  { return "maxtime=" + time.Duration(v).String() }
