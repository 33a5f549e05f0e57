package boundary

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNative stands in for a native allocator with a live-object counter.
type fakeNative struct {
	live      int
	destroyed int
}

func (f *fakeNative) create() unsafe.Pointer {
	f.live++
	return unsafe.Pointer(new(int64))
}

func (f *fakeNative) destroy(unsafe.Pointer) {
	f.live--
	f.destroyed++
}

func newFakeHandle(t *testing.T, f *fakeNative) *Handle {
	t.Helper()
	h, err := NewCall("fake_new").Create("fake", f.destroy, func(*Env) unsafe.Pointer {
		return f.create()
	})
	require.NoError(t, err)
	return h
}

func TestHandleCreateDestroy(t *testing.T) {
	f := &fakeNative{}
	before := LiveHandles()

	h := newFakeHandle(t, f)
	assert.Equal(t, Live, h.State())
	assert.Equal(t, "fake", h.Kind())
	assert.Equal(t, before+1, LiveHandles())

	require.NoError(t, h.Destroy())
	assert.Equal(t, Destroyed, h.State())
	assert.Equal(t, 0, f.live)
	assert.Equal(t, 1, f.destroyed)
	assert.Equal(t, before, LiveHandles())
}

func TestHandleDoubleDestroy(t *testing.T) {
	f := &fakeNative{}
	h := newFakeHandle(t, f)
	require.NoError(t, h.Destroy())

	err := h.Destroy()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDoubleDestroy))

	var dd *DoubleDestroyError
	require.ErrorAs(t, err, &dd)
	assert.Equal(t, Destroyed, dd.State)
	assert.Equal(t, 1, f.destroyed, "native destructor must run exactly once")
}

func TestHandleUseAfterDestroy(t *testing.T) {
	f := &fakeNative{}
	h := newFakeHandle(t, f)
	require.NoError(t, h.Destroy())

	ran := false
	err := NewCall("fake_use").With(h).Do(func(*Env) int32 {
		ran = true
		return 0
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUseAfterDestroy)
	assert.False(t, ran, "native code must not run for a destroyed handle")
}

func TestHandleTransfer(t *testing.T) {
	f := &fakeNative{}
	h := newFakeHandle(t, f)

	moved, err := h.Transfer()
	require.NoError(t, err)
	assert.Equal(t, Transferred, h.State())
	assert.Equal(t, Live, moved.State())

	err = NewCall("fake_use").With(h).Do(func(*Env) int32 { return 0 })
	assert.ErrorIs(t, err, ErrUseAfterDestroy)

	assert.ErrorIs(t, h.Destroy(), ErrDoubleDestroy)
	assert.Equal(t, 0, f.destroyed)

	_, err = h.Transfer()
	assert.ErrorIs(t, err, ErrUseAfterDestroy)

	require.NoError(t, moved.Destroy())
	assert.Equal(t, 1, f.destroyed)
	assert.Equal(t, 0, f.live)
}

func TestHandleZeroValue(t *testing.T) {
	var h Handle
	assert.Equal(t, Uninitialized, h.State())
	assert.False(t, h.Live())
	assert.ErrorIs(t, h.Destroy(), ErrUseAfterDestroy)

	var nilHandle *Handle
	assert.Equal(t, Uninitialized, nilHandle.State())
	err := NewCall("fake_use").With(nilHandle).Do(func(*Env) int32 { return 0 })
	assert.ErrorIs(t, err, ErrUseAfterDestroy)
}

func TestCreateNullTokenIsAllocationError(t *testing.T) {
	before := LiveHandles()
	h, err := NewCall("fake_new").Create("fake", func(unsafe.Pointer) {
		t.Fatal("destroy must not run for a failed create")
	}, func(*Env) unsafe.Pointer {
		return nil
	})
	require.Error(t, err)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrNativeAllocation)

	var ae *NativeAllocationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "fake_new", ae.Call)
	assert.Equal(t, "fake", ae.Kind)
	assert.Equal(t, before, LiveHandles())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "live", Live.String())
	assert.Equal(t, "destroyed", Destroyed.String())
	assert.Equal(t, "transferred", Transferred.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestHandleFinalizerDestroysLeak(t *testing.T) {
	var destroyed atomic.Int32
	before := LiveHandles()

	func() {
		h, err := NewCall("fake_new").Create("leaky", func(unsafe.Pointer) {
			destroyed.Add(1)
		}, func(*Env) unsafe.Pointer {
			return unsafe.Pointer(new(int64))
		})
		require.NoError(t, err)
		require.True(t, h.Live())
	}()

	// finalizers run on their own goroutine after a collection
	require.Eventually(t, func() bool {
		runtime.GC()
		return destroyed.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	runtime.GC()
	assert.Equal(t, int32(1), destroyed.Load(), "finalizer must destroy exactly once")
	assert.Equal(t, before, LiveHandles())
}

func TestCreateCallbackFailureDestroysHandle(t *testing.T) {
	f := &fakeNative{}
	before := LiveHandles()
	rejected := errors.New("rejected during construction")

	h, err := NewCall("fake_new").
		Callback(OnInt32Ctx(func(int32) error { return rejected })).
		Create("fake", f.destroy, func(env *Env) unsafe.Pointer {
			dispatchNotify(env.Trampoline().Context(), 1)
			return f.create()
		})
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrCallbackPropagated)
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, f.destroyed)
	assert.Equal(t, 0, f.live)
	assert.Equal(t, before, LiveHandles())
}

func TestHandleBusyDuringCall(t *testing.T) {
	f := &fakeNative{}
	h := newFakeHandle(t, f)

	var destroyErr, transferErr error
	err := NewCall("fake_use").
		With(h).
		Callback(OnInt32Ctx(func(int32) error {
			destroyErr = h.Destroy()
			_, transferErr = h.Transfer()
			return nil
		})).
		Do(func(env *Env) int32 {
			dispatchNotify(env.Trampoline().Context(), 1)
			assert.NotNil(t, env.Pointer(h), "object must survive its own callback")
			return 0
		})
	require.NoError(t, err)

	assert.ErrorIs(t, destroyErr, ErrHandleBusy)
	var busy *HandleBusyError
	require.ErrorAs(t, destroyErr, &busy)
	assert.Equal(t, "destroy", busy.Op)
	assert.ErrorIs(t, transferErr, ErrHandleBusy)
	assert.Equal(t, 0, f.destroyed)
	assert.Equal(t, Live, h.State())

	assert.Panics(t, func() {
		_ = NewCall("fake_use").With(h).Do(func(*Env) int32 { panic("native side blew up") })
	})

	require.NoError(t, h.Destroy(), "busy mark is released after the call, even on panic")
	assert.Equal(t, 1, f.destroyed)
}
