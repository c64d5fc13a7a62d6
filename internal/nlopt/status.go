package nlopt

import "errors"

// Result is the successful termination reason of an NLopt call. Values match
// NLopt's positive status codes.
type Result int

const (
	Success Result = iota + 1
	StopvalReached
	FTolReached
	XTolReached
	MaxEvalReached
	MaxTimeReached
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case StopvalReached:
		return "StopvalReached"
	case FTolReached:
		return "FTolReached"
	case XTolReached:
		return "XTolReached"
	case MaxEvalReached:
		return "MaxEvalReached"
	case MaxTimeReached:
		return "MaxTimeReached"
	default:
		return "Result(unknown)"
	}
}

// Error is a failure reported by NLopt. Values match NLopt's negative status
// codes; ErrUnknown covers every code NLopt does not document, including 0.
type Error int

const (
	ErrForcedStop Error = iota - 5
	ErrRoundoffLimited
	ErrOutOfMemory
	ErrInvalidArgs
	ErrFailure
	ErrUnknown
)

func (e Error) Error() string {
	return "nlopt: " + e.String()
}

func (e Error) String() string {
	switch e {
	case ErrForcedStop:
		return "forced stop"
	case ErrRoundoffLimited:
		return "roundoff limited"
	case ErrOutOfMemory:
		return "out of memory"
	case ErrInvalidArgs:
		return "invalid arguments"
	case ErrFailure:
		return "failure"
	default:
		return "unknown status"
	}
}

// Usage errors detected before NLopt is called.
var (
	ErrClosed = errors.New("nlopt: problem is closed")
	ErrBusy   = errors.New("nlopt: problem is optimizing")
)

// toResult maps a raw NLopt status code onto the two taxonomies. It is total:
// any code outside the documented ranges is ErrUnknown.
func toResult(code int) (Result, error) {
	switch {
	case code >= int(Success) && code <= int(MaxTimeReached):
		return Result(code), nil
	case code >= int(ErrForcedStop) && code <= int(ErrFailure):
		return 0, Error(code)
	default:
		return 0, ErrUnknown
	}
}

// check is toResult for calls whose success variant carries no information.
func check(code int) error {
	_, err := toResult(code)
	return err
}
