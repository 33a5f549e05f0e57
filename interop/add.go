package interop

/*
#include <stdint.h>

static inline int32_t add_c(int32_t a, int32_t b) {
    return a + b;
}
*/
// #cgo nocallback add_c
// #cgo noescape add_c
import "C"

import (
	"math"

	"github.com/analogrelay/go-ffi-boundary/boundary"
)

// AddRaw calls the native adder directly, with no boundary checks.
func AddRaw(a, b int32) int32 {
	return int32(C.add_c(C.int32_t(a), C.int32_t(b)))
}

// Add narrows both operands and calls the native adder through a boundary
// call. A sum that would overflow int32 is rejected before the call.
func Add(a, b int) (int32, error) {
	var ca, cb, sum int32
	err := boundary.NewCall("add_c").
		Arg(func(*boundary.Env) (err error) {
			ca, err = boundary.Narrow[int32]("a", a)
			return err
		}).
		Arg(func(*boundary.Env) (err error) {
			cb, err = boundary.Narrow[int32]("b", b)
			return err
		}).
		Arg(func(*boundary.Env) error {
			if s := int64(ca) + int64(cb); s > math.MaxInt32 || s < math.MinInt32 {
				return &boundary.MarshalError{Arg: "b", Value: b, Reason: "sum overflows int32"}
			}
			return nil
		}).
		Do(func(*boundary.Env) int32 {
			sum = AddRaw(ca, cb)
			return 0
		})
	return sum, err
}
