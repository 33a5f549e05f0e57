package interop

/*
#include "native.h"

static void call_perform_action(int32_t value, void *fn) {
	perform_action(value, (action_cb)fn);
}

static void call_perform_action_n(int32_t value, int32_t times, void *fn, uintptr_t ctx) {
	perform_action_n(value, times, (action_ctx_cb)fn, (void *)ctx);
}

static int call_map_values(int32_t *values, size_t n, void *fn, uintptr_t ctx) {
	return map_values(values, n, (map_cb)fn, (void *)ctx);
}

static void call_retain_callback(void *fn, uintptr_t ctx) {
	retain_callback((action_ctx_cb)fn, (void *)ctx);
}
*/
import "C"

import (
	"math"
	"unsafe"

	"github.com/analogrelay/go-ffi-boundary/boundary"
)

// actionValue narrows value for the native actions, which hand value*2 to
// their callback.
func actionValue(value int) (int32, error) {
	v, err := boundary.Narrow[int32]("value", value)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32/2 || v < math.MinInt32/2 {
		return 0, &boundary.MarshalError{Arg: "value", Value: value, Reason: "doubled value overflows int32"}
	}
	return v, nil
}

// PerformAction calls the native perform_action, which invokes fn once with
// value doubled. perform_action takes a context-less callback.
func PerformAction(value int, fn func(v int32) error) error {
	var v int32
	return boundary.NewCall("perform_action").
		Arg(func(*boundary.Env) (err error) {
			v, err = actionValue(value)
			return err
		}).
		Callback(boundary.OnInt32(fn)).
		Do(func(env *boundary.Env) int32 {
			C.call_perform_action(C.int32_t(v), env.Trampoline().Func())
			return 0
		})
}

// PerformActionN invokes fn `times` times with value doubled.
func PerformActionN(value, times int, fn func(v int32) error) error {
	var v, n int32
	return boundary.NewCall("perform_action_n").
		Arg(func(*boundary.Env) (err error) {
			v, err = actionValue(value)
			return err
		}).
		Arg(func(*boundary.Env) (err error) {
			if err = boundary.NonNegative("times", times); err != nil {
				return err
			}
			n, err = boundary.Narrow[int32]("times", times)
			return err
		}).
		Callback(boundary.OnInt32Ctx(fn)).
		Do(func(env *boundary.Env) int32 {
			tr := env.Trampoline()
			C.call_perform_action_n(C.int32_t(v), C.int32_t(n), tr.Func(), C.uintptr_t(tr.Context()))
			return 0
		})
}

// MapValues replaces every element of values with fn(element), natively.
// An element whose fn call fails is set to 0 and the first failure is
// returned after the whole slice was visited.
func MapValues(values []int32, fn func(v int32) (int32, error)) error {
	return boundary.NewCall("map_values").
		Callback(boundary.MapInt32(fn)).
		Do(func(env *boundary.Env) int32 {
			var p *C.int32_t
			if len(values) > 0 {
				p = (*C.int32_t)(unsafe.Pointer(&values[0]))
			}
			tr := env.Trampoline()
			return int32(C.call_map_values(p, C.size_t(len(values)), tr.Func(), C.uintptr_t(tr.Context())))
		})
}

// RetainAction hands fn to a native function that keeps the callback after
// returning. The trampoline is torn down when RetainAction returns, so fn is
// never run by a later FireRetained.
func RetainAction(fn func(v int32) error) error {
	return boundary.NewCall("retain_callback").
		Callback(boundary.OnInt32Ctx(fn)).
		Do(func(env *boundary.Env) int32 {
			tr := env.Trampoline()
			C.call_retain_callback(tr.Func(), C.uintptr_t(tr.Context()))
			return 0
		})
}

// FireRetained makes the native side invoke whatever RetainAction left
// behind. The invocation is counted by boundary.StaleInvocations.
func FireRetained(value int) error {
	var v int32
	return boundary.NewCall("fire_retained").
		Arg(func(*boundary.Env) (err error) {
			v, err = boundary.Narrow[int32]("value", value)
			return err
		}).
		Do(func(*boundary.Env) int32 {
			return int32(C.fire_retained(C.int32_t(v)))
		})
}
