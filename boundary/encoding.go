package boundary

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Encoding is the byte encoding agreed with the native side for string
// arguments. Strings always cross as NUL-terminated byte sequences.
type Encoding struct {
	name string
	enc  encoding.Encoding
}

var (
	// Bytes passes the Go string through byte-for-byte, without transcoding.
	Bytes = Encoding{name: "bytes"}
	// Latin1 transcodes to ISO-8859-1 and rejects runes it cannot represent.
	Latin1 = Encoding{name: "latin1", enc: charmap.ISO8859_1}
	// Windows1252 transcodes to the Windows Western code page.
	Windows1252 = Encoding{name: "windows-1252", enc: charmap.Windows1252}
)

var encodings = map[string]Encoding{
	Bytes.name:       Bytes,
	"utf-8":          Bytes,
	Latin1.name:      Latin1,
	"iso-8859-1":     Latin1,
	Windows1252.name: Windows1252,
}

// LookupEncoding resolves an encoding by name.
func LookupEncoding(name string) (Encoding, bool) {
	e, ok := encodings[name]
	return e, ok
}

func (e Encoding) String() string {
	if e.name == "" {
		return Bytes.name
	}
	return e.name
}

// Encode converts s to the agreed byte form, without the terminator. It
// fails when a rune is not representable or the result would contain an
// interior NUL that native code would read as the end of the string.
func (e Encoding) Encode(arg, s string) ([]byte, error) {
	var b []byte
	if e.enc == nil {
		b = []byte(s)
	} else {
		out, err := e.enc.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, &MarshalError{Arg: arg, Value: s, Reason: "not representable in " + e.String(), Err: err}
		}
		b = out
	}
	if bytes.IndexByte(b, 0) >= 0 {
		return nil, &MarshalError{Arg: arg, Value: s, Reason: "contains NUL byte"}
	}
	return b, nil
}

// Decode converts native bytes (without terminator) back to a Go string.
func (e Encoding) Decode(b []byte) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if e.enc == nil {
		return string(b), nil
	}
	out, err := e.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", &MarshalError{Arg: "result", Value: b, Reason: "not valid " + e.String(), Err: err}
	}
	return string(out), nil
}
