package boundary

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// Call describes one invocation of a native function. It is built with the
// chained setters and executed with Do or Create:
//
//  1. every handle passed to With must be Live;
//  2. every Arg marshaler runs before any native code;
//  3. the Callback, if any, is installed for the duration of the call only;
//  4. the native function runs;
//  5. the trampoline and all scoped C memory are released, even on panic;
//  6. the native status and any deferred callback error are translated.
//
// A Call may be executed more than once but must not be shared between
// goroutines.
type Call struct {
	name    string
	handles []*Handle
	args    []func(env *Env) error
	cb      *Callback
	enc     Encoding
	status  func(code int32) error
}

// NewCall starts describing a call to the named native function.
func NewCall(name string) *Call {
	return &Call{name: name, enc: Bytes}
}

// Name returns the native function name.
func (c *Call) Name() string { return c.name }

// With declares the handles the native function receives.
func (c *Call) With(handles ...*Handle) *Call {
	c.handles = append(c.handles, handles...)
	return c
}

// Arg adds a marshaler. Marshalers run in order, after handle validation
// and before the native function. Any error is reported as a MarshalError.
func (c *Call) Arg(marshal func(env *Env) error) *Call {
	c.args = append(c.args, marshal)
	return c
}

// Callback supplies caller logic the native function may invoke.
func (c *Call) Callback(cb Callback) *Call {
	c.cb = &cb
	return c
}

// Encoding sets the string encoding used by Env.CString.
func (c *Call) Encoding(e Encoding) *Call {
	c.enc = e
	return c
}

// Status overrides how a non-zero native status is translated. Returning
// nil accepts the code as success.
func (c *Call) Status(fn func(code int32) error) *Call {
	c.status = fn
	return c
}

// Do runs native, which returns the native status code (0 means success).
func (c *Call) Do(native func(env *Env) int32) error {
	env, err := c.prepare()
	if err != nil {
		return err
	}

	var code int32
	cbErr := env.run(func() { code = native(env) })

	return join(cbErr, c.translate(code))
}

// Create runs a native constructor and wraps the returned token in a Live
// Handle that releases it with destroy. A nil token is reported as a
// NativeAllocationError. When the callback failed during construction the
// fresh handle is destroyed before the error is returned.
func (c *Call) Create(kind string, destroy DestroyFunc, native func(env *Env) unsafe.Pointer) (*Handle, error) {
	env, err := c.prepare()
	if err != nil {
		return nil, err
	}

	var ptr unsafe.Pointer
	cbErr := env.run(func() { ptr = native(env) })

	if ptr == nil {
		logrus.WithFields(logrus.Fields{
			"function": c.name,
			"kind":     kind,
		}).Error("Native constructor returned a null handle")
		return nil, join(&NativeAllocationError{Call: c.name, Kind: kind}, cbErr)
	}

	h := newHandle(kind, ptr, destroy)
	if cbErr != nil {
		_ = h.Destroy()
		return nil, cbErr
	}
	return h, nil
}

// join keeps a lone error unwrapped so callers can type-assert it.
func join(first, second error) error {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return errors.Join(first, second)
}

func (c *Call) prepare() (*Env, error) {
	for _, h := range c.handles {
		if err := h.checkLive(c.name); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": c.name,
				"kind":     h.Kind(),
				"state":    h.State().String(),
			}).Error("Rejected boundary call on a handle that is not live")
			return nil, err
		}
	}

	if c.cb != nil && !c.cb.valid() {
		return nil, &MarshalError{Call: c.name, Arg: "callback", Value: c.cb.sig, Reason: "callback has no function for its signature"}
	}

	env := &Env{call: c}
	for _, marshal := range c.args {
		if err := marshal(env); err != nil {
			env.free()
			return nil, asMarshalError(c.name, err)
		}
	}
	return env, nil
}

func (c *Call) translate(code int32) error {
	if c.status != nil {
		return c.status(code)
	}
	if code != 0 {
		return &NativeError{Call: c.name, Code: code}
	}
	return nil
}

// Env is the per-invocation view a native function and its marshalers get.
type Env struct {
	call   *Call
	tramp  *Trampoline
	allocs []unsafe.Pointer
}

// Pointer returns the native token of a handle declared with With. Asking
// for an undeclared handle is a programming error and panics.
func (e *Env) Pointer(h *Handle) unsafe.Pointer {
	for _, declared := range e.call.handles {
		if declared == h {
			return h.ptr
		}
	}
	panic(fmt.Sprintf("boundary: %s handle not declared on call %s", h.Kind(), e.call.name))
}

// CString encodes s with the call's encoding into C memory that is freed
// when the call returns.
func (e *Env) CString(arg, s string) (unsafe.Pointer, error) {
	b, err := e.call.enc.Encode(arg, s)
	if err != nil {
		return nil, err
	}
	p := cAllocString(b)
	e.allocs = append(e.allocs, p)
	return p, nil
}

// Trampoline returns the installed trampoline, or nil when the call has no
// callback or is not running.
func (e *Env) Trampoline() *Trampoline { return e.tramp }

// run installs the trampoline, runs native and always tears everything
// down again. It returns the deferred callback error.
func (e *Env) run(native func()) (cbErr error) {
	debug := logrus.IsLevelEnabled(logrus.DebugLevel)
	if debug {
		logrus.WithFields(logrus.Fields{
			"function": e.call.name,
			"handles":  len(e.call.handles),
			"callback": e.call.cb != nil,
		}).Debug("Invoking native function")
	}

	for _, h := range e.call.handles {
		h.busy.Add(1)
	}
	defer func() {
		for _, h := range e.call.handles {
			h.busy.Add(-1)
		}
	}()

	if e.call.cb == nil {
		defer e.free()
		native()
		return nil
	}

	reg := &registration{call: e.call.name, cb: *e.call.cb}
	callbacks.add(reg)
	e.tramp = &Trampoline{reg: reg, fn: trampolineFunc(reg.cb.sig)}

	contextless := reg.cb.sig == SigVoidInt32
	var prev uintptr
	if contextless {
		runtime.LockOSThread()
		prev = swapSlot(reg.id)
	}

	defer func() {
		if contextless {
			swapSlot(prev)
			runtime.UnlockOSThread()
		}
		callbacks.remove(reg.id)
		e.tramp = nil
		e.free()

		if debug {
			logrus.WithFields(logrus.Fields{
				"function":    e.call.name,
				"invocations": reg.invocations(),
			}).Debug("Trampoline torn down")
		}
		cbErr = reg.takeErr()
	}()

	native()
	return nil
}

func (e *Env) free() {
	for _, p := range e.allocs {
		cFree(p)
	}
	e.allocs = nil
}
