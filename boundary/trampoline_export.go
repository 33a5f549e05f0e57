package boundary

// #include <stdint.h>
import "C"

// These have to be defined apart from the C trampolines: a file with
// //export directives may only declare C functions in its preamble.

//export boundaryNotifyInt32
func boundaryNotifyInt32(id C.uintptr_t, v C.int32_t) {
	dispatchNotify(uintptr(id), int32(v))
}

//export boundaryMapInt32
func boundaryMapInt32(id C.uintptr_t, v C.int32_t) C.int32_t {
	return C.int32_t(dispatchMap(uintptr(id), int32(v)))
}
