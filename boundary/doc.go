// Package boundary is a small safety layer for calling native code through
// cgo.
//
// # Handles
//
// Native objects are owned through *Handle values created by Call.Create.
// A handle is Live until Destroy (or Transfer, which moves the token into a
// new Handle). Boundary calls refuse handles that are not Live before any
// native code runs, and Destroy runs the native destructor exactly once:
//
//	h, err := boundary.NewCall("greeter_new").
//		Arg(func(env *boundary.Env) (err error) {
//			name, err = env.CString("name", "World")
//			return err
//		}).
//		Create("greeter", destroyGreeter, func(env *boundary.Env) unsafe.Pointer {
//			return unsafe.Pointer(C.greeter_new((*C.char)(name)))
//		})
//	defer h.Destroy()
//
// # Callbacks
//
// Go functions reach native code through trampolines: fixed C entry points
// (see Signature) plus a context id that the trampoline resolves back to
// the Go function. A Callback passed to Call.Callback is installed only for
// that call. Errors and panics raised by the Go function are held back and
// returned as a CallbackPropagatedError once the native call has returned.
//
// # Marshaling
//
// Narrow, ExactFloat32 and Encoding.Encode reject values that would be
// truncated, rounded or transcoded on the way across. LayoutOf and Verify
// check that a Go struct matches the native struct it mirrors byte for byte.
//
// # Concurrency
//
// Calls on independent handles may run concurrently. A single Handle is
// single-writer and carries no lock.
package boundary
