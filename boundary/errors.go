package boundary

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. Every typed error below matches exactly one of them.
var (
	ErrNativeAllocation   = errors.New("native allocation failed")
	ErrUseAfterDestroy    = errors.New("handle is not live")
	ErrDoubleDestroy      = errors.New("handle already destroyed")
	ErrMarshal            = errors.New("marshal failed")
	ErrCallbackPropagated = errors.New("callback failed during native call")
	ErrNative             = errors.New("native call failed")
	ErrHandleBusy         = errors.New("handle is in use by a native call")
)

// NativeAllocationError reports a create call whose native side returned a
// null token.
type NativeAllocationError struct {
	Call string
	Kind string
}

func (e *NativeAllocationError) Error() string {
	return fmt.Sprintf("%s: native allocation of %s failed (null handle)", e.Call, e.Kind)
}

func (e *NativeAllocationError) Is(target error) bool { return target == ErrNativeAllocation }

// UseAfterDestroyError is returned when a handle that is not Live is passed
// to a boundary call. It is always a caller bug.
type UseAfterDestroyError struct {
	Call  string
	Kind  string
	State State
}

func (e *UseAfterDestroyError) Error() string {
	if e.Call == "" {
		return fmt.Sprintf("%s handle used while %s", e.Kind, e.State)
	}
	return fmt.Sprintf("%s: %s handle used while %s", e.Call, e.Kind, e.State)
}

func (e *UseAfterDestroyError) Is(target error) bool { return target == ErrUseAfterDestroy }

// DoubleDestroyError is returned by Destroy on a handle that was already
// destroyed or transferred away. The native destructor is not called again.
type DoubleDestroyError struct {
	Kind  string
	State State
}

func (e *DoubleDestroyError) Error() string {
	return fmt.Sprintf("destroy of %s handle that is already %s", e.Kind, e.State)
}

func (e *DoubleDestroyError) Is(target error) bool { return target == ErrDoubleDestroy }

// HandleBusyError is returned by Destroy or Transfer on a handle that a
// running boundary call declared. The native frame may still be using the
// object, so the handle stays Live.
type HandleBusyError struct {
	Op   string
	Kind string
}

func (e *HandleBusyError) Error() string {
	return fmt.Sprintf("%s of %s handle during a native call that uses it", e.Op, e.Kind)
}

func (e *HandleBusyError) Is(target error) bool { return target == ErrHandleBusy }

// MarshalError reports a value that cannot cross the boundary without
// truncation, precision loss or an encoding change.
type MarshalError struct {
	Call   string
	Arg    string
	Value  any
	Reason string
	Err    error
}

func (e *MarshalError) Error() string {
	msg := fmt.Sprintf("cannot marshal %s=%v: %s", e.Arg, e.Value, e.Reason)
	if e.Call != "" {
		msg = e.Call + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MarshalError) Is(target error) bool { return target == ErrMarshal }

func (e *MarshalError) Unwrap() error { return e.Err }

// CallbackPropagatedError carries the first error raised by caller logic
// while native code was invoking a trampoline. It is only ever returned
// after the native call has returned.
type CallbackPropagatedError struct {
	Call string
	// Invocation is the 1-based index of the failing invocation.
	Invocation int
	// Failures counts every failing invocation during the call.
	Failures int
	Err      error
}

func (e *CallbackPropagatedError) Error() string {
	if e.Failures > 1 {
		return fmt.Sprintf("%s: callback invocation %d failed (%d failures): %v", e.Call, e.Invocation, e.Failures, e.Err)
	}
	return fmt.Sprintf("%s: callback invocation %d failed: %v", e.Call, e.Invocation, e.Err)
}

func (e *CallbackPropagatedError) Is(target error) bool { return target == ErrCallbackPropagated }

func (e *CallbackPropagatedError) Unwrap() error { return e.Err }

// NativeError wraps a non-zero status code returned by a native function.
type NativeError struct {
	Call string
	Code int32
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("%s: native error %d", e.Call, e.Code)
}

func (e *NativeError) Is(target error) bool { return target == ErrNative }

// asMarshalError attaches call context to err, converting foreign errors
// into a MarshalError.
func asMarshalError(call string, err error) error {
	var me *MarshalError
	if errors.As(err, &me) {
		if me.Call == "" {
			me.Call = call
		}
		return me
	}
	var le *LayoutError
	if errors.As(err, &le) {
		return err
	}
	return &MarshalError{Call: call, Arg: "argument", Value: "?", Reason: "marshaler failed", Err: err}
}
