package interop

/*
#include "native.h"
*/
import "C"

import (
	"math"
	"unsafe"

	"github.com/analogrelay/go-ffi-boundary/boundary"
)

// Frame mirrors frame_t: an unsigned extent anchored at Origin.
type Frame struct {
	Width  uint32
	Height uint32
	Origin Point
}

var (
	_ [unsafe.Sizeof(Frame{}) - uintptr(C.sizeof_frame_t)]byte
	_ [uintptr(C.sizeof_frame_t) - unsafe.Sizeof(Frame{})]byte
)

// NewFrame narrows width and height to the native unsigned fields. Negative
// or oversized values are a MarshalError, never a wrapped-around extent.
func NewFrame(width, height int, origin Point) (Frame, error) {
	w, err := boundary.Narrow[uint32]("width", width)
	if err != nil {
		return Frame{}, err
	}
	h, err := boundary.Narrow[uint32]("height", height)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Width: w, Height: h, Origin: origin}, nil
}

// Area is computed natively in 64 bits.
func (f *Frame) Area() (uint64, error) {
	var area uint64
	err := boundary.NewCall("frame_area").Do(func(*boundary.Env) int32 {
		area = uint64(C.frame_area((*C.frame_t)(unsafe.Pointer(f))))
		return 0
	})
	return area, err
}

// Translate moves the origin in place.
func (f *Frame) Translate(dx, dy int) error {
	var cdx, cdy int32
	return boundary.NewCall("frame_translate").
		Arg(func(*boundary.Env) (err error) {
			cdx, err = boundary.Narrow[int32]("dx", dx)
			return err
		}).
		Arg(func(*boundary.Env) (err error) {
			cdy, err = boundary.Narrow[int32]("dy", dy)
			return err
		}).
		Arg(func(*boundary.Env) error {
			if _, err := boundary.Narrow[int32]("origin.x", int64(f.Origin.X)+int64(cdx)); err != nil {
				return err
			}
			_, err := boundary.Narrow[int32]("origin.y", int64(f.Origin.Y)+int64(cdy))
			return err
		}).
		Do(func(*boundary.Env) int32 {
			C.frame_translate((*C.frame_t)(unsafe.Pointer(f)), C.int32_t(cdx), C.int32_t(cdy))
			return 0
		})
}

// Scale multiplies both extents natively. factor crosses as a C float, so
// it must be representable exactly as float32, finite and not negative.
func (f *Frame) Scale(factor float64) error {
	var cf float32
	return boundary.NewCall("frame_scale").
		Arg(func(*boundary.Env) (err error) {
			if math.IsNaN(factor) || math.IsInf(factor, 0) || factor < 0 {
				return &boundary.MarshalError{Arg: "factor", Value: factor, Reason: "must be finite and not negative"}
			}
			cf, err = boundary.ExactFloat32("factor", factor)
			return err
		}).
		Arg(func(*boundary.Env) error {
			if float64(max(f.Width, f.Height))*float64(cf) > math.MaxUint32 {
				return &boundary.MarshalError{Arg: "factor", Value: factor, Reason: "scaled extent overflows uint32"}
			}
			return nil
		}).
		Do(func(*boundary.Env) int32 {
			C.frame_scale((*C.frame_t)(unsafe.Pointer(f)), C.float(cf))
			return 0
		})
}
