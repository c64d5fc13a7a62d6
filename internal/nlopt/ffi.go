package nlopt

/*
#cgo pkg-config: nlopt
#cgo LDFLAGS: -lm
#include <stdlib.h>
#include <stdint.h>
#include <nlopt.h>

extern double gonloptEvaluate(unsigned n, double *x, double *grad, void *data);

static double gonlopt_func(unsigned n, const double *x, double *grad, void *data) {
	return gonloptEvaluate(n, (double *)x, grad, data);
}

static nlopt_func gonlopt_func_ptr(void) {
	return gonlopt_func;
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// This file is the only place where Go values cross into NLopt. Every wrapper
// returns the raw status code; callers route it through toResult. Slices
// passed here must already have the length NLopt expects (n for per-variable
// arrays); NLopt copies them before returning and never retains the pointer.

type handle = C.nlopt_opt

func doubles(v []float64) *C.double {
	if len(v) == 0 {
		return nil
	}
	return (*C.double)(unsafe.Pointer(&v[0]))
}

func cCreate(alg Algorithm, n int) handle {
	return C.nlopt_create(C.nlopt_algorithm(alg), C.uint(n))
}

func cDestroy(h handle) {
	C.nlopt_destroy(h)
}

// token is the C-allocated address of a closure context.
func cSetObjective(h handle, typ ObjectiveType, token unsafe.Pointer) int {
	if typ == Maximize {
		return int(C.nlopt_set_max_objective(h, C.gonlopt_func_ptr(), token))
	}
	return int(C.nlopt_set_min_objective(h, C.gonlopt_func_ptr(), token))
}

func cAddConstraint(h handle, typ ConstraintType, token unsafe.Pointer, tol float64) int {
	if typ == Equality {
		return int(C.nlopt_add_equality_constraint(h, C.gonlopt_func_ptr(), token, C.double(tol)))
	}
	return int(C.nlopt_add_inequality_constraint(h, C.gonlopt_func_ptr(), token, C.double(tol)))
}

func cRemoveConstraints(h handle, typ ConstraintType) int {
	if typ == Equality {
		return int(C.nlopt_remove_equality_constraints(h))
	}
	return int(C.nlopt_remove_inequality_constraints(h))
}

func cSetLowerBounds(h handle, lb []float64) int {
	return int(C.nlopt_set_lower_bounds(h, doubles(lb)))
}

func cSetUpperBounds(h handle, ub []float64) int {
	return int(C.nlopt_set_upper_bounds(h, doubles(ub)))
}

func cSetLowerBound(h handle, lb float64) int {
	return int(C.nlopt_set_lower_bounds1(h, C.double(lb)))
}

func cSetUpperBound(h handle, ub float64) int {
	return int(C.nlopt_set_upper_bounds1(h, C.double(ub)))
}

// out must have length n.
func cLowerBounds(h handle, out []float64) int {
	return int(C.nlopt_get_lower_bounds(h, doubles(out)))
}

// out must have length n.
func cUpperBounds(h handle, out []float64) int {
	return int(C.nlopt_get_upper_bounds(h, doubles(out)))
}

func cSetStopVal(h handle, v float64) int {
	return int(C.nlopt_set_stopval(h, C.double(v)))
}

func cSetMaxEval(h handle, v int) int {
	return int(C.nlopt_set_maxeval(h, C.int(v)))
}

func cSetMaxTime(h handle, seconds float64) int {
	return int(C.nlopt_set_maxtime(h, C.double(seconds)))
}

func cSetFTolRel(h handle, tol float64) int {
	return int(C.nlopt_set_ftol_rel(h, C.double(tol)))
}

func cSetFTolAbs(h handle, tol float64) int {
	return int(C.nlopt_set_ftol_abs(h, C.double(tol)))
}

func cSetXTolRel(h handle, tol float64) int {
	return int(C.nlopt_set_xtol_rel(h, C.double(tol)))
}

// tol must have length n.
func cSetXTolAbs(h handle, tol []float64) int {
	return int(C.nlopt_set_xtol_abs(h, doubles(tol)))
}

func cSetXTolAbs1(h handle, tol float64) int {
	return int(C.nlopt_set_xtol_abs1(h, C.double(tol)))
}

// dx must have length n.
func cSetInitialStep(h handle, dx []float64) int {
	return int(C.nlopt_set_initial_step(h, doubles(dx)))
}

func cSetInitialStep1(h handle, dx float64) int {
	return int(C.nlopt_set_initial_step1(h, C.double(dx)))
}

func cSetPopulation(h handle, pop uint) int {
	return int(C.nlopt_set_population(h, C.uint(pop)))
}

// NLopt copies local and strips its objective and constraints, so no closure
// context of local is retained by h.
func cSetLocalOptimizer(h, local handle) int {
	return int(C.nlopt_set_local_optimizer(h, local))
}

func cForceStop(h handle) int {
	return int(C.nlopt_force_stop(h))
}

// x must have length n; it is overwritten with the final point.
func cOptimize(h handle, x []float64) (int, float64) {
	var f C.double
	code := C.nlopt_optimize(h, doubles(x), &f)
	return int(code), float64(f)
}

func cAlgorithmName(alg Algorithm) string {
	return C.GoString(C.nlopt_algorithm_name(C.nlopt_algorithm(alg)))
}

// Version reports the version of the linked NLopt library.
func Version() string {
	var major, minor, bugfix C.int
	C.nlopt_version(&major, &minor, &bugfix)
	return fmt.Sprintf("%d.%d.%d", major, minor, bugfix)
}

// Srand seeds NLopt's pseudorandom generator so stochastic algorithms repeat
// from run to run. The seed is process-wide.
func Srand(seed uint64) {
	C.nlopt_srand(C.ulong(seed))
}

// SrandTime reseeds NLopt's generator from the system clock.
func SrandTime() {
	C.nlopt_srand_time()
}
