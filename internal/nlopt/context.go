package nlopt

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/cgo"
	"unsafe"
)

// runState is the part of a Problem that callbacks reach. It is kept apart
// from Problem so that registered closure contexts do not keep the Problem
// itself reachable.
type runState struct {
	handle handle
	logger *slog.Logger

	// Set only while Optimize runs.
	ctx           context.Context
	stopRequested bool
}

// observeCancellation requests a forced stop from inside a callback once the
// run's context is done. NLopt checks the flag after the current evaluation.
func (s *runState) observeCancellation() {
	if s.ctx == nil || s.stopRequested || s.ctx.Err() == nil {
		return
	}
	s.stopRequested = true
	s.logger.Debug("nlopt: context done, forcing stop", "cause", context.Cause(s.ctx))
	cForceStop(s.handle)
}

// closureContext is the registration of one objective or constraint. Its
// token is a C allocation holding a cgo.Handle to the context; the token's
// address is what NLopt stores as the callback's void* and it never moves.
type closureContext struct {
	owner *runState
	kind  string
	eval  Evaluator

	token  unsafe.Pointer
	handle cgo.Handle

	x     []float64
	calls int
}

func newClosureContext(owner *runState, kind string, eval Evaluator, n int) *closureContext {
	cc := &closureContext{
		owner: owner,
		kind:  kind,
		eval:  eval,
		x:     make([]float64, n),
	}
	cc.handle = cgo.NewHandle(cc)
	cc.token = C.malloc(C.size_t(unsafe.Sizeof(C.uintptr_t(0))))
	*(*C.uintptr_t)(cc.token) = C.uintptr_t(cc.handle)
	return cc
}

// contextFromToken recovers the context registered under token. token must
// come from a live closureContext.
func contextFromToken(token unsafe.Pointer) *closureContext {
	h := cgo.Handle(*(*C.uintptr_t)(token))
	return h.Value().(*closureContext)
}

func (cc *closureContext) live() bool {
	return cc.token != nil
}

// release retires the registration. NLopt must no longer reference the
// token. Safe to call more than once.
func (cc *closureContext) release() {
	if cc.token == nil {
		return
	}
	cc.handle.Delete()
	C.free(cc.token)
	cc.token = nil
	cc.owner.logger.Debug("nlopt: released closure context", "callback", cc.kind, "calls", cc.calls)
}

// invoke forwards one NLopt evaluation. x is NLopt's candidate vector and
// grad its gradient buffer (nil when no gradient is requested); both have
// length n. The closure only ever sees the context's own copy of x.
func (cc *closureContext) invoke(x, grad []float64) float64 {
	copy(cc.x, x)
	cc.calls++

	v, g := cc.eval.Evaluate(cc.x, grad != nil)
	if grad != nil && g != nil {
		if len(g) != len(grad) {
			panic(fmt.Sprintf("nlopt: %s returned %d gradient entries for %d variables", cc.kind, len(g), len(grad)))
		}
		copy(grad, g)
	}
	return v
}
