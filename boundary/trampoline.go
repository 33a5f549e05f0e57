package boundary

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// Signature is a native callback signature the package can trampoline.
type Signature int

const (
	// SigVoidInt32 is void (*)(int32_t). It has no context argument; the
	// active registration travels in a thread-local slot.
	SigVoidInt32 Signature = iota + 1
	// SigVoidInt32Ctx is void (*)(int32_t, void *ctx).
	SigVoidInt32Ctx
	// SigInt32Int32Ctx is int32_t (*)(int32_t, void *ctx).
	SigInt32Int32Ctx
)

func (s Signature) String() string {
	switch s {
	case SigVoidInt32:
		return "void(int32_t)"
	case SigVoidInt32Ctx:
		return "void(int32_t, void*)"
	case SigInt32Int32Ctx:
		return "int32_t(int32_t, void*)"
	}
	return fmt.Sprintf("Signature(%d)", int(s))
}

// Callback is caller logic bound to one native signature.
type Callback struct {
	sig    Signature
	notify func(int32) error
	mapper func(int32) (int32, error)
}

// OnInt32 adapts fn to the context-less void(int32_t) signature.
func OnInt32(fn func(v int32) error) Callback {
	return Callback{sig: SigVoidInt32, notify: fn}
}

// OnInt32Ctx adapts fn to void(int32_t, void *ctx).
func OnInt32Ctx(fn func(v int32) error) Callback {
	return Callback{sig: SigVoidInt32Ctx, notify: fn}
}

// MapInt32 adapts fn to int32_t(int32_t, void *ctx). When fn fails the
// trampoline hands 0 back to native code and the error is deferred.
func MapInt32(fn func(v int32) (int32, error)) Callback {
	return Callback{sig: SigInt32Int32Ctx, mapper: fn}
}

// Signature returns the native signature of the callback.
func (c Callback) Signature() Signature { return c.sig }

func (c Callback) valid() bool {
	switch c.sig {
	case SigVoidInt32, SigVoidInt32Ctx:
		return c.notify != nil
	case SigInt32Int32Ctx:
		return c.mapper != nil
	}
	return false
}

// registration is the per-call record a trampoline dispatches through.
type registration struct {
	id    uintptr
	call  string
	cb    Callback
	mu    sync.Mutex
	calls int
	fails int
	first error
	at    int
}

func (r *registration) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err == nil {
		return
	}
	r.fails++
	if r.first == nil {
		r.first = err
		r.at = r.calls
	}
}

func (r *registration) invocations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// takeErr returns the deferred error, if any, and resets it.
func (r *registration) takeErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.first == nil {
		return nil
	}
	err := &CallbackPropagatedError{Call: r.call, Invocation: r.at, Failures: r.fails, Err: r.first}
	r.first, r.at, r.fails = nil, 0, 0
	return err
}

// Trampoline is an installed callback: a C function pointer plus the context
// value native code must hand back. It is valid only while the owning
// boundary call (or persistent Registration) is active.
type Trampoline struct {
	reg *registration
	fn  unsafe.Pointer
}

// Func is the C function pointer to hand to native code.
func (t *Trampoline) Func() unsafe.Pointer { return t.fn }

// Signature returns the native signature the function pointer implements.
func (t *Trampoline) Signature() Signature { return t.reg.cb.sig }

// Context is the value to pass as the native void *ctx argument. It is zero
// for SigVoidInt32.
func (t *Trampoline) Context() uintptr {
	if t.reg.cb.sig == SigVoidInt32 {
		return 0
	}
	return t.reg.id
}

// Invocations returns how many times native code has invoked the
// trampoline so far.
func (t *Trampoline) Invocations() int { return t.reg.invocations() }

// dispatchNotify runs the caller function for a void-returning trampoline.
// Errors and panics are recorded on the registration, never returned to
// native code.
func dispatchNotify(id uintptr, v int32) {
	reg := callbacks.lookup(id)
	if reg == nil || reg.cb.notify == nil {
		staleInvocation(id)
		return
	}
	reg.record(guard(func() error { return reg.cb.notify(v) }))
}

// dispatchMap runs the caller function for an int32-returning trampoline.
func dispatchMap(id uintptr, v int32) int32 {
	reg := callbacks.lookup(id)
	if reg == nil || reg.cb.mapper == nil {
		staleInvocation(id)
		return 0
	}
	var out int32
	err := guard(func() error {
		var err error
		out, err = reg.cb.mapper(v)
		return err
	})
	reg.record(err)
	if err != nil {
		return 0
	}
	return out
}

// guard converts a panic in caller logic into an error so that it cannot
// unwind through native frames.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	return fn()
}

func staleInvocation(id uintptr) {
	callbacks.stale.Add(1)
	logrus.WithFields(logrus.Fields{
		"function": "dispatch",
		"context":  id,
	}).Warn("Native code invoked a trampoline that is no longer registered")
}

// Registration is a persistent trampoline for native APIs that keep a
// callback past the registering call. It stays installed until Unregister.
type Registration struct {
	tramp  *Trampoline
	closed bool
}

// Register installs cb persistently. SigVoidInt32 cannot be registered
// persistently because it has no context argument to identify it by.
func Register(name string, cb Callback) (*Registration, error) {
	if !cb.valid() {
		return nil, &MarshalError{Call: name, Arg: "callback", Value: cb.sig, Reason: "callback has no function for its signature"}
	}
	if cb.sig == SigVoidInt32 {
		return nil, &MarshalError{Call: name, Arg: "callback", Value: cb.sig, Reason: "context-less signature cannot be registered persistently"}
	}
	reg := &registration{call: name, cb: cb}
	callbacks.add(reg)

	logrus.WithFields(logrus.Fields{
		"function":  "Register",
		"call":      name,
		"signature": cb.sig.String(),
		"context":   reg.id,
	}).Debug("Persistent callback registered")

	return &Registration{tramp: &Trampoline{reg: reg, fn: trampolineFunc(cb.sig)}}, nil
}

// Trampoline returns the installed trampoline, or nil after Unregister.
func (r *Registration) Trampoline() *Trampoline {
	if r.closed {
		return nil
	}
	return r.tramp
}

// Err drains the errors raised by the callback since the last call to Err.
func (r *Registration) Err() error {
	return r.tramp.reg.takeErr()
}

// Unregister removes the registration. Native code must have dropped the
// pointer first; later invocations are counted as stale and ignored.
// Unregister returns any undrained callback error.
func (r *Registration) Unregister() error {
	if r.closed {
		return nil
	}
	r.closed = true
	callbacks.remove(r.tramp.reg.id)
	return r.tramp.reg.takeErr()
}
