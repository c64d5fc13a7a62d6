package nlopt

import "C"

import (
	"fmt"
	"os"
	"runtime/debug"
	"unsafe"
)

// exit is replaced in tests.
var exit = os.Exit

// gonloptEvaluate is the single C entry point for every objective and
// constraint. NLopt reaches it through the gonlopt_func shim with the token of
// the closure context that was registered for this callback.
//
//export gonloptEvaluate
func gonloptEvaluate(n C.uint, x *C.double, grad *C.double, data unsafe.Pointer) C.double {
	cc := contextFromToken(data)
	defer fatalOnPanic(cc)

	xs := unsafe.Slice((*float64)(unsafe.Pointer(x)), int(n))
	var gs []float64
	if grad != nil {
		gs = unsafe.Slice((*float64)(unsafe.Pointer(grad)), int(n))
	}

	cc.owner.observeCancellation()
	return C.double(cc.invoke(xs, gs))
}

// fatalOnPanic ends the process when a callback panics. A panic must not
// unwind through NLopt's C frames, and NLopt has no way to receive an error
// from a callback, so there is nothing to recover into.
func fatalOnPanic(cc *closureContext) {
	r := recover()
	if r == nil {
		return
	}
	cc.owner.logger.Error("nlopt: callback panicked during optimize",
		"callback", cc.kind,
		"panic", fmt.Sprint(r),
		"stack", string(debug.Stack()),
	)
	fmt.Fprintf(os.Stderr, "nlopt: fatal: %s callback panicked: %v\n", cc.kind, r)
	exit(2)
}
