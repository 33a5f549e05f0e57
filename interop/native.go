package interop

/*
#include <stddef.h>
*/
import "C"

import "unsafe"

const initialFormatBuffer = 128

// format drives a snprintf-style native function, retrying once with an
// exact-size buffer when the first attempt was truncated. A negative return
// from fill is passed back as the status code.
func format(fill func(out *C.char, n C.size_t) C.int) (string, int32) {
	buf := make([]byte, initialFormatBuffer)
	for {
		n := int(fill((*C.char)(unsafe.Pointer(&buf[0])), C.size_t(len(buf))))
		if n < 0 {
			return "", int32(n)
		}
		if n < len(buf) {
			return string(buf[:n]), 0
		}
		buf = make([]byte, n+1)
	}
}
