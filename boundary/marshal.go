package boundary

import (
	"fmt"
	"math"
)

// Integer is any fixed or platform-width integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Narrow converts v to To, failing with a MarshalError when the value does
// not survive the conversion unchanged (overflow, or a sign change such as
// -1 to an unsigned width).
func Narrow[To, From Integer](arg string, v From) (To, error) {
	out := To(v)
	if From(out) != v || (v < 0) != (out < 0) {
		return 0, &MarshalError{
			Arg:    arg,
			Value:  v,
			Reason: fmt.Sprintf("out of range for %T", out),
		}
	}
	return out, nil
}

// ExactFloat32 narrows v to float32, failing when precision would be lost.
// NaN and the infinities pass through.
func ExactFloat32(arg string, v float64) (float32, error) {
	out := float32(v)
	if math.IsNaN(v) || float64(out) == v {
		return out, nil
	}
	reason := "loses precision as float32"
	if math.IsInf(float64(out), 0) {
		reason = "overflows float32"
	}
	return 0, &MarshalError{Arg: arg, Value: v, Reason: reason}
}

// NonNegative rejects negative values for fields the native side treats as
// counts or sizes.
func NonNegative[T Integer](arg string, v T) error {
	if v < 0 {
		return &MarshalError{Arg: arg, Value: v, Reason: "must not be negative"}
	}
	return nil
}
