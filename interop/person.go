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

// PersonNameCap is the size of the native name buffer, terminator included.
const PersonNameCap = C.PERSON_NAME_CAP

// Person mirrors person_t. Name is NUL-terminated inside its fixed buffer.
type Person struct {
	Name [PersonNameCap]byte
	Age  int32
}

var (
	_ [unsafe.Sizeof(Person{}) - uintptr(C.sizeof_person_t)]byte
	_ [uintptr(C.sizeof_person_t) - unsafe.Sizeof(Person{})]byte
)

// NewPerson builds a Person, rejecting names that do not fit the native
// buffer and negative ages.
func NewPerson(name string, age int) (Person, error) {
	var p Person
	b, err := boundary.Bytes.Encode("name", name)
	if err != nil {
		return p, err
	}
	if len(b) >= PersonNameCap {
		return p, &boundary.MarshalError{Arg: "name", Value: name, Reason: "longer than 31 bytes"}
	}
	if err := boundary.NonNegative("age", age); err != nil {
		return p, err
	}
	a, err := boundary.Narrow[int32]("age", age)
	if err != nil {
		return p, err
	}
	copy(p.Name[:], b)
	p.Age = a
	return p, nil
}

// NameString returns the name up to its terminator.
func (p *Person) NameString() string {
	s, _ := boundary.Bytes.Decode(p.Name[:])
	return s
}

// HaveBirthday lets the native side increment the age in place.
func (p *Person) HaveBirthday() error {
	return boundary.NewCall("have_birthday").
		Arg(func(*boundary.Env) error {
			if p.Age == math.MaxInt32 {
				return &boundary.MarshalError{Arg: "age", Value: p.Age, Reason: "would overflow int32"}
			}
			return nil
		}).
		Do(func(*boundary.Env) int32 {
			C.have_birthday((*C.person_t)(unsafe.Pointer(p)))
			return 0
		})
}

// Describe returns the native description of p.
func (p *Person) Describe() (string, error) {
	var out string
	err := boundary.NewCall("describe_person").Do(func(*boundary.Env) int32 {
		var code int32
		out, code = format(func(buf *C.char, n C.size_t) C.int {
			return C.describe_person((*C.person_t)(unsafe.Pointer(p)), buf, n)
		})
		return code
	})
	return out, err
}
