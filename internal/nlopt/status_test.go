package nlopt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToResultSuccessCodes(t *testing.T) {
	tests := []struct {
		code int
		want Result
	}{
		{1, Success},
		{2, StopvalReached},
		{3, FTolReached},
		{4, XTolReached},
		{5, MaxEvalReached},
		{6, MaxTimeReached},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			got, err := toResult(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToResultFailureCodes(t *testing.T) {
	tests := []struct {
		code int
		want Error
	}{
		{-1, ErrFailure},
		{-2, ErrInvalidArgs},
		{-3, ErrOutOfMemory},
		{-4, ErrRoundoffLimited},
		{-5, ErrForcedStop},
	}

	seen := make(map[Error]int)
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			_, err := toResult(tt.code)
			require.Error(t, err)
			assert.Equal(t, tt.want, err)
			assert.True(t, errors.Is(err, tt.want))
		})
		_, err := toResult(tt.code)
		seen[err.(Error)]++
	}

	for e, count := range seen {
		assert.Equal(t, 1, count, "error %v produced by more than one code", e)
	}
}

func TestToResultUnknownCodes(t *testing.T) {
	for _, code := range []int{0, 7, 8, 100, -6, -7, -100, 1 << 30, -(1 << 30)} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			res, err := toResult(code)
			assert.Equal(t, Result(0), res)
			assert.Equal(t, ErrUnknown, err)
		})
	}
}

func TestErrorMessagesAreWrappable(t *testing.T) {
	err := wrap("set lower bounds", int(ErrInvalidArgs))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgs)
	assert.Equal(t, "set lower bounds: nlopt: invalid arguments", err.Error())

	assert.NoError(t, wrap("set lower bounds", int(Success)))
	assert.ErrorIs(t, wrap("optimize", 0), ErrUnknown)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "XTolReached", XTolReached.String())
	assert.Equal(t, "Result(unknown)", Result(42).String())
	assert.Equal(t, "nlopt: forced stop", ErrForcedStop.Error())
	assert.Equal(t, "nlopt: unknown status", ErrUnknown.Error())
}
