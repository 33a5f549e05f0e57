package interop

import (
	"testing"

	"github.com/analogrelay/go-ffi-boundary/boundary"
)

// Sink keeps the compiler from discarding benchmark results.
var Sink int32

// addGo is the pure Go baseline the native adder is measured against.
func addGo(a, b int32) int32 {
	return a + b
}

func BenchmarkNativeCall(b *testing.B) {
	var acc int32
	a, c := int32(1), int32(2)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		acc += addGo(a, c)
	}
	Sink = acc
}

func BenchmarkCgoCall(b *testing.B) {
	var acc int32
	a, c := int32(1), int32(2)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		acc += AddRaw(a, c)
	}
	Sink = acc
}

// BenchmarkBoundaryCall adds the marshaling and status translation of a
// boundary call on top of the raw cgo call.
func BenchmarkBoundaryCall(b *testing.B) {
	var acc int32

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		sum, err := Add(1, 2)
		if err != nil {
			b.Fatal(err)
		}
		acc += sum
	}
	Sink = acc
}

// BenchmarkTrampolineCall measures a round trip that installs a callback,
// crosses into C and comes back into Go through the trampoline.
func BenchmarkTrampolineCall(b *testing.B) {
	var acc int32
	fn := func(v int32) error {
		acc += v
		return nil
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := PerformActionN(1, 1, fn); err != nil {
			b.Fatal(err)
		}
	}
	Sink = acc
}

func BenchmarkGreeterCall(b *testing.B) {
	g, err := NewGreeter("bench")
	if err != nil {
		b.Fatal(err)
	}
	defer g.Close()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		out, err := g.Greet()
		if err != nil {
			b.Fatal(err)
		}
		Sink += int32(len(out))
	}
}

type request struct {
	A, B int32
	Resp chan int32
}

// worker owns the native side for BenchmarkChannelCall: every request is
// served by one AddRaw call on this goroutine.
func worker(reqCh <-chan request) {
	for req := range reqCh {
		req.Resp <- AddRaw(req.A, req.B)
	}
}

// BenchmarkChannelCall funnels cgo calls through one worker goroutine.
func BenchmarkChannelCall(b *testing.B) {
	reqCh := make(chan request)
	respCh := make(chan int32)

	go worker(reqCh)

	a, c := int32(1), int32(2)
	var acc int32

	// Warm up once
	reqCh <- request{A: a, B: c, Resp: respCh}
	<-respCh

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		reqCh <- request{A: a, B: c, Resp: respCh}
		acc += <-respCh
	}

	b.StopTimer()
	Sink = acc
	close(reqCh)
}

// BenchmarkRegistryChurn installs and removes a persistent trampoline.
func BenchmarkRegistryChurn(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		reg, err := boundary.Register("bench", boundary.OnInt32Ctx(func(int32) error { return nil }))
		if err != nil {
			b.Fatal(err)
		}
		if err := reg.Unregister(); err != nil {
			b.Fatal(err)
		}
	}
}
