package boundary

/*
#include <stdint.h>
#include <stdlib.h>

extern void boundaryNotifyInt32(uintptr_t id, int32_t v);
extern int32_t boundaryMapInt32(uintptr_t id, int32_t v);

// Registration id for context-less trampolines. The calling goroutine is
// locked to its OS thread for the whole boundary call.
static _Thread_local uintptr_t boundary_slot;

uintptr_t boundary_slot_swap(uintptr_t id) {
	uintptr_t prev = boundary_slot;
	boundary_slot = id;
	return prev;
}

void boundary_void_i32(int32_t v) {
	boundaryNotifyInt32(boundary_slot, v);
}

void boundary_void_i32_ctx(int32_t v, void *ctx) {
	boundaryNotifyInt32((uintptr_t)ctx, v);
}

int32_t boundary_i32_i32_ctx(int32_t v, void *ctx) {
	return boundaryMapInt32((uintptr_t)ctx, v);
}
*/
import "C"

import "unsafe"

// trampolineFunc returns the C entry point for sig.
func trampolineFunc(sig Signature) unsafe.Pointer {
	switch sig {
	case SigVoidInt32:
		return unsafe.Pointer(C.boundary_void_i32)
	case SigVoidInt32Ctx:
		return unsafe.Pointer(C.boundary_void_i32_ctx)
	case SigInt32Int32Ctx:
		return unsafe.Pointer(C.boundary_i32_i32_ctx)
	}
	return nil
}

// swapSlot installs id in the current thread's slot and returns the
// previous value so nested calls can restore it.
func swapSlot(id uintptr) uintptr {
	return uintptr(C.boundary_slot_swap(C.uintptr_t(id)))
}

// cAllocString copies b plus a terminating NUL onto the C heap.
func cAllocString(b []byte) unsafe.Pointer {
	buf := make([]byte, len(b)+1)
	copy(buf, b)
	return C.CBytes(buf)
}

func cFree(p unsafe.Pointer) {
	if p != nil {
		C.free(p)
	}
}
