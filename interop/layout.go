package interop

/*
#include "native.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"sort"
	"unsafe"

	"github.com/analogrelay/go-ffi-boundary/boundary"
)

// mirrors maps native struct names to the Go types that mirror them.
var mirrors = map[string]any{
	"point_t":  Point{},
	"person_t": Person{},
	"frame_t":  Frame{},
}

// NativeLayouts returns the struct layouts as the C compiler laid them out.
func NativeLayouts() ([]boundary.Layout, error) {
	var out []boundary.Layout
	err := boundary.NewCall("native_layouts").Do(func(*boundary.Env) int32 {
		var n C.size_t
		p := C.native_layouts(&n)
		table := unsafe.Slice(p, int(n))
		for _, nl := range table {
			l := boundary.Layout{
				Name:  C.GoString(nl.name),
				Size:  uint64(nl.size),
				Align: uint64(nl.align),
			}
			for _, f := range unsafe.Slice(nl.fields, int(nl.nfields)) {
				l.Fields = append(l.Fields, boundary.Field{
					Name:   C.GoString(f.name),
					Offset: uint64(f.offset),
					Size:   uint64(f.size),
				})
			}
			out = append(out, l)
		}
		return 0
	})
	return out, err
}

// GoLayouts returns the layouts of the Go mirror types, sorted by name.
func GoLayouts() ([]boundary.Layout, error) {
	names := make([]string, 0, len(mirrors))
	for name := range mirrors {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]boundary.Layout, 0, len(names))
	for _, name := range names {
		l, err := boundary.LayoutOf(name, mirrors[name])
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// VerifyLayouts checks every given native layout against its Go mirror.
// All mismatches are reported together.
func VerifyLayouts(native []boundary.Layout) error {
	var errs []error
	for _, l := range native {
		v, ok := mirrors[l.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("no Go type mirrors %s", l.Name))
			continue
		}
		if err := boundary.Verify(v, l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
