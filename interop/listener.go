package interop

/*
#include "native.h"

static int call_set_listener(void *fn, uintptr_t ctx) {
	return set_listener((action_ctx_cb)fn, (void *)ctx);
}
*/
import "C"

import (
	"errors"

	"github.com/analogrelay/go-ffi-boundary/boundary"
)

// ErrNoListener is returned by Notify when no listener is installed.
var ErrNoListener = errors.New("no listener installed")

// Listener is the process-wide native listener. The native side keeps the
// callback until Close, so it is installed through a persistent
// boundary.Registration. Only one Listener may exist at a time.
type Listener struct {
	reg *boundary.Registration
}

// Listen installs fn as the native listener.
func Listen(fn func(v int32) error) (*Listener, error) {
	reg, err := boundary.Register("set_listener", boundary.OnInt32Ctx(fn))
	if err != nil {
		return nil, err
	}
	tr := reg.Trampoline()
	err = boundary.NewCall("set_listener").Do(func(*boundary.Env) int32 {
		return int32(C.call_set_listener(tr.Func(), C.uintptr_t(tr.Context())))
	})
	if err != nil {
		_ = reg.Unregister()
		return nil, err
	}
	return &Listener{reg: reg}, nil
}

// Err returns the first callback error raised since the last call to Err.
func (l *Listener) Err() error {
	return l.reg.Err()
}

// Close uninstalls the listener natively and then drops the registration.
// It returns any callback error not yet collected by Err.
func (l *Listener) Close() error {
	if l.reg.Trampoline() == nil {
		return nil
	}
	err := boundary.NewCall("clear_listener").Do(func(*boundary.Env) int32 {
		C.clear_listener()
		return 0
	})
	if err != nil {
		return err
	}
	return l.reg.Unregister()
}

// Notify fires the installed listener with value. Errors raised by the
// listener are not returned here; collect them with Listener.Err.
func Notify(value int) error {
	var v int32
	return boundary.NewCall("notify_listener").
		Arg(func(*boundary.Env) (err error) {
			v, err = boundary.Narrow[int32]("value", value)
			return err
		}).
		Status(func(code int32) error {
			switch code {
			case 0:
				return nil
			case 1:
				return ErrNoListener
			}
			return &boundary.NativeError{Call: "notify_listener", Code: code}
		}).
		Do(func(*boundary.Env) int32 {
			return int32(C.notify_listener(C.int32_t(v)))
		})
}
