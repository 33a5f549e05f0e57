package interop

/*
#include "native.h"
*/
import "C"

import (
	"unsafe"

	"github.com/analogrelay/go-ffi-boundary/boundary"
)

// Point mirrors point_t.
type Point struct {
	X int32
	Y int32
}

var (
	_ [unsafe.Sizeof(Point{}) - uintptr(C.sizeof_point_t)]byte
	_ [uintptr(C.sizeof_point_t) - unsafe.Sizeof(Point{})]byte
)

// Greet asks the native side to greet name at p.
func Greet(name string, p Point) (string, error) {
	return GreetEncoded(boundary.Bytes, name, p)
}

// GreetEncoded is Greet with name transcoded to enc on the way in and the
// greeting decoded from enc on the way out.
func GreetEncoded(enc boundary.Encoding, name string, p Point) (string, error) {
	var cname unsafe.Pointer
	var out string
	err := boundary.NewCall("greet_point").
		Encoding(enc).
		Arg(func(env *boundary.Env) (err error) {
			cname, err = env.CString("name", name)
			return err
		}).
		Do(func(*boundary.Env) int32 {
			var code int32
			out, code = format(func(buf *C.char, n C.size_t) C.int {
				return C.greet_point((*C.char)(cname), (*C.point_t)(unsafe.Pointer(&p)), buf, n)
			})
			return code
		})
	if err != nil {
		return "", err
	}
	return enc.Decode([]byte(out))
}
