package boundary

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// State is the lifecycle position of a Handle.
type State int32

const (
	Uninitialized State = iota
	Live
	Destroyed
	Transferred
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Live:
		return "live"
	case Destroyed:
		return "destroyed"
	case Transferred:
		return "transferred"
	}
	return "unknown"
}

// DestroyFunc releases the native state behind a token. It is called at most
// once per token.
type DestroyFunc func(ptr unsafe.Pointer)

var liveHandles atomic.Int64

// LiveHandles returns the number of handles currently Live in this process.
func LiveHandles() int64 {
	return liveHandles.Load()
}

// Handle owns one opaque native token.
//
// A Handle is single-writer: it carries no lock, and concurrent Destroy or
// boundary calls on the same Handle must be serialized by the caller.
// Independent handles may be used from independent goroutines.
type Handle struct {
	kind    string
	ptr     unsafe.Pointer
	state   State
	destroy DestroyFunc
	// busy counts boundary calls currently running with the handle declared.
	busy atomic.Int32
}

// newHandle takes ownership of ptr. ptr must be non-nil.
func newHandle(kind string, ptr unsafe.Pointer, destroy DestroyFunc) *Handle {
	h := &Handle{kind: kind, ptr: ptr, state: Live, destroy: destroy}
	liveHandles.Add(1)

	// Set finalizer to ensure cleanup
	runtime.SetFinalizer(h, (*Handle).finalize)
	return h
}

// Kind names the native type behind the handle.
func (h *Handle) Kind() string {
	if h == nil {
		return ""
	}
	return h.kind
}

// State returns the current lifecycle state. A nil Handle is Uninitialized.
func (h *Handle) State() State {
	if h == nil {
		return Uninitialized
	}
	return h.state
}

// Live reports whether the handle may be passed to a boundary call.
func (h *Handle) Live() bool {
	return h.State() == Live
}

// checkLive returns nil for a Live handle and a UseAfterDestroyError
// otherwise.
func (h *Handle) checkLive(call string) error {
	if h.Live() {
		return nil
	}
	return &UseAfterDestroyError{Call: call, Kind: h.Kind(), State: h.State()}
}

// Destroy releases the native state. The native destructor runs exactly
// once; later calls return DoubleDestroyError without reaching native code.
// While a boundary call that declared the handle is running (for example
// from inside its callback) Destroy returns HandleBusyError instead.
func (h *Handle) Destroy() error {
	switch h.State() {
	case Live:
	case Uninitialized:
		return &UseAfterDestroyError{Call: "destroy", Kind: h.Kind(), State: Uninitialized}
	default:
		return &DoubleDestroyError{Kind: h.kind, State: h.state}
	}
	if h.busy.Load() > 0 {
		return &HandleBusyError{Op: "destroy", Kind: h.kind}
	}

	runtime.SetFinalizer(h, nil)
	h.release()

	logrus.WithFields(logrus.Fields{
		"function": "Destroy",
		"kind":     h.kind,
	}).Debug("Native handle destroyed")
	return nil
}

// Transfer moves ownership of the token into a new Handle. The receiver
// becomes Transferred and can no longer be used or destroyed.
func (h *Handle) Transfer() (*Handle, error) {
	if err := h.checkLive("transfer"); err != nil {
		return nil, err
	}
	if h.busy.Load() > 0 {
		return nil, &HandleBusyError{Op: "transfer", Kind: h.kind}
	}

	runtime.SetFinalizer(h, nil)
	next := &Handle{kind: h.kind, ptr: h.ptr, state: Live, destroy: h.destroy}
	runtime.SetFinalizer(next, (*Handle).finalize)

	h.ptr = nil
	h.destroy = nil
	h.state = Transferred
	return next, nil
}

func (h *Handle) release() {
	ptr, destroy := h.ptr, h.destroy
	h.ptr = nil
	h.destroy = nil
	h.state = Destroyed
	liveHandles.Add(-1)
	if destroy != nil {
		destroy(ptr)
	}
}

// finalize cleans up a handle the caller forgot to destroy.
func (h *Handle) finalize() {
	if h.state != Live {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "finalize",
		"kind":     h.kind,
	}).Warn("Live native handle became unreachable, destroying from finalizer")
	h.release()
}
