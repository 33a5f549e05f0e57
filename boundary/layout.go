package boundary

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Field is one member of a struct layout.
type Field struct {
	Name   string `yaml:"name"`
	Offset uint64 `yaml:"offset"`
	Size   uint64 `yaml:"size"`
}

// Layout is the byte layout of a struct as one side of the boundary sees
// it. Two sides agree when every field matches by name, offset and size and
// the totals match.
type Layout struct {
	Name   string  `yaml:"name"`
	Size   uint64  `yaml:"size"`
	Align  uint64  `yaml:"align"`
	Fields []Field `yaml:"fields"`
}

// LayoutError lists the disagreements found for one struct. It matches
// ErrMarshal: a struct whose layout is not agreed cannot be marshaled.
type LayoutError struct {
	Name     string
	Problems []string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("layout of %s: %s", e.Name, strings.Join(e.Problems, "; "))
}

func (e *LayoutError) Is(target error) bool { return target == ErrMarshal }

// LayoutOf derives the layout of the Go struct v (or *v) under the given
// native name. Field names come from the `native` tag, or the Go name with
// its first letter lowered.
//
// Only fixed-width plain data is accepted: sized integers, floats, bool,
// uintptr, arrays and nested structs of those. Any gap between fields, or
// after the last field, is reported as implicit padding; declare it as a
// named `_` field instead.
func LayoutOf(name string, v any) (Layout, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Layout{}, &LayoutError{Name: name, Problems: []string{fmt.Sprintf("%v is not a struct", t)}}
	}

	var problems []string
	checkStruct(t, t.Name(), &problems)
	if len(problems) > 0 {
		return Layout{}, &LayoutError{Name: name, Problems: problems}
	}

	l := Layout{Name: name, Size: uint64(t.Size()), Align: uint64(t.Align())}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		l.Fields = append(l.Fields, Field{Name: nativeName(f), Offset: uint64(f.Offset), Size: uint64(f.Type.Size())})
	}
	return l, nil
}

func checkStruct(t reflect.Type, path string, problems *[]string) {
	var end uintptr
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fpath := path + "." + f.Name
		checkPlain(f.Type, fpath, problems)
		if f.Offset != end {
			*problems = append(*problems, fmt.Sprintf("implicit padding of %d bytes before %s", f.Offset-end, fpath))
		}
		end = f.Offset + f.Type.Size()
	}
	if end != t.Size() {
		*problems = append(*problems, fmt.Sprintf("implicit trailing padding of %d bytes in %s", t.Size()-end, path))
	}
}

func checkPlain(t reflect.Type, path string, problems *[]string) {
	switch t.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
	case reflect.Int, reflect.Uint:
		*problems = append(*problems, fmt.Sprintf("%s has platform-dependent width (%s)", path, t))
	case reflect.Array:
		checkPlain(t.Elem(), path+"[]", problems)
	case reflect.Struct:
		checkStruct(t, path, problems)
	default:
		*problems = append(*problems, fmt.Sprintf("%s is not plain data (%s)", path, t.Kind()))
	}
}

func nativeName(f reflect.StructField) string {
	if tag := f.Tag.Get("native"); tag != "" {
		return tag
	}
	r, n := utf8.DecodeRuneInString(f.Name)
	return string(unicode.ToLower(r)) + f.Name[n:]
}

// Compare reports every difference between l and the other side's layout.
func (l Layout) Compare(native Layout) error {
	var problems []string
	if l.Size != native.Size {
		problems = append(problems, fmt.Sprintf("size %d, native %d", l.Size, native.Size))
	}
	if native.Align != 0 && l.Align != native.Align {
		problems = append(problems, fmt.Sprintf("align %d, native %d", l.Align, native.Align))
	}
	if len(l.Fields) != len(native.Fields) {
		problems = append(problems, fmt.Sprintf("%d fields, native %d", len(l.Fields), len(native.Fields)))
	}
	for i := 0; i < min(len(l.Fields), len(native.Fields)); i++ {
		got, want := l.Fields[i], native.Fields[i]
		if got.Name != want.Name {
			problems = append(problems, fmt.Sprintf("field %d is %s, native %s", i, got.Name, want.Name))
			continue
		}
		if got.Offset != want.Offset {
			problems = append(problems, fmt.Sprintf("%s at offset %d, native %d", got.Name, got.Offset, want.Offset))
		}
		if got.Size != want.Size {
			problems = append(problems, fmt.Sprintf("%s is %d bytes, native %d", got.Name, got.Size, want.Size))
		}
	}
	if len(problems) > 0 {
		return &LayoutError{Name: l.Name, Problems: problems}
	}
	return nil
}

// Verify derives the layout of v and compares it with native.
func Verify(v any, native Layout) error {
	l, err := LayoutOf(native.Name, v)
	if err != nil {
		return err
	}
	return l.Compare(native)
}

// Manifest is a set of expected native layouts, usually kept in YAML next
// to the native headers it describes.
type Manifest struct {
	Layouts []Layout `yaml:"layouts"`
}

// LoadManifest decodes a YAML manifest. Unknown keys and duplicate struct
// names are rejected.
func LoadManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode layout manifest: %w", err)
	}

	seen := make(map[string]bool, len(m.Layouts))
	for _, l := range m.Layouts {
		if l.Name == "" {
			return nil, fmt.Errorf("layout manifest: entry without a name")
		}
		if seen[l.Name] {
			return nil, fmt.Errorf("layout manifest: duplicate entry %q", l.Name)
		}
		seen[l.Name] = true
	}
	return &m, nil
}

// Lookup returns the layout recorded for name.
func (m *Manifest) Lookup(name string) (Layout, bool) {
	for _, l := range m.Layouts {
		if l.Name == name {
			return l, true
		}
	}
	return Layout{}, false
}

// Write encodes the manifest as YAML.
func (m *Manifest) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode layout manifest: %w", err)
	}
	return enc.Close()
}
