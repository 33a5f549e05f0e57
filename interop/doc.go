// Package interop binds a small C and C++ library through package boundary.
//
// The native side covers the shapes that usually go wrong at a cgo
// boundary: plain structs passed by pointer (Point, Person, Frame), callbacks
// with and without a context argument (PerformAction, PerformActionN,
// MapValues), a listener the native side keeps past the registering call
// (Listen) and an opaque C++ object owned through a handle (Greeter).
// RetainAction and FireRetained model a native library that illegally keeps
// a per-call callback, so stale invocations can be observed.
package interop
