package interop

/*
#cgo CXXFLAGS: -std=c++11
#cgo LDFLAGS: -lstdc++
#include "greeter.h"
*/
import "C"

import (
	"unsafe"

	"github.com/analogrelay/go-ffi-boundary/boundary"
)

// Greeter owns a native C++ Greeter object.
type Greeter struct {
	h *boundary.Handle
}

func destroyGreeter(ptr unsafe.Pointer) {
	C.greeter_delete(ptr)
}

// NewGreeter constructs a native Greeter for name.
func NewGreeter(name string) (*Greeter, error) {
	var cname unsafe.Pointer
	h, err := boundary.NewCall("greeter_new").
		Arg(func(env *boundary.Env) (err error) {
			cname, err = env.CString("name", name)
			return err
		}).
		Create("greeter", destroyGreeter, func(*boundary.Env) unsafe.Pointer {
			return C.greeter_new((*C.char)(cname))
		})
	if err != nil {
		return nil, err
	}
	return &Greeter{h: h}, nil
}

// Greet returns the greeting built by the native object.
func (g *Greeter) Greet() (string, error) {
	var out string
	err := boundary.NewCall("greeter_greet").With(g.h).Do(func(env *boundary.Env) int32 {
		ptr := env.Pointer(g.h)
		var code int32
		out, code = format(func(buf *C.char, n C.size_t) C.int {
			return C.greeter_greet(ptr, buf, n)
		})
		return code
	})
	return out, err
}

// State reports the lifecycle state of the underlying handle.
func (g *Greeter) State() boundary.State {
	return g.h.State()
}

// Transfer moves ownership of the native object into a new Greeter. g is
// unusable afterwards.
func (g *Greeter) Transfer() (*Greeter, error) {
	h, err := g.h.Transfer()
	if err != nil {
		return nil, err
	}
	return &Greeter{h: h}, nil
}

// Close deletes the native object. A second Close returns a
// boundary.DoubleDestroyError.
func (g *Greeter) Close() error {
	return g.h.Destroy()
}

// LiveGreeters returns the number of native Greeter objects in existence,
// as counted by the C++ side.
func LiveGreeters() int64 {
	return int64(C.greeter_live())
}

// FailNextGreeter makes the next native greeter_new return NULL, as it
// would on allocation failure.
func FailNextGreeter() {
	C.greeter_fail_next_alloc()
}
