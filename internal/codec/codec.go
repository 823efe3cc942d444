// Package codec packs and unpacks named scalar fields into fixed-width
// byte layouts using the host's native byte order.
//
// A Format describes an ordered record of (field name, type code) pairs.
// Type codes follow the C-struct convention the PCP wire format itself
// uses: c/C for signed/unsigned byte, s/S for 16-bit, l/L for 32-bit.
// Encoding and decoding never clamp or validate range — callers validate
// before Encode and after Decode.
package codec

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"
)

// Type is a single scalar field's wire type.
type Type byte

const (
	Int8   Type = 'c'
	Uint8  Type = 'C'
	Int16  Type = 's'
	Uint16 Type = 'S'
	Int32  Type = 'l'
	Uint32 Type = 'L'
)

// Length returns the byte width of a type code, or 0 if unknown.
func (t Type) Length() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32:
		return 4
	default:
		return 0
	}
}

func (t Type) Valid() bool { return t.Length() != 0 }

// Field is one named entry in a Format, in declaration order.
type Field struct {
	Name string
	Type Type
}

// Format is a fixed-width record layout: an ordered list of fields plus
// their cumulative byte offsets.
type Format struct {
	Fields []Field
	offset map[string]int
	size   int
}

// NewFormat builds a Format from fields in declaration order. It returns
// an error if any field has an unrecognized type code.
func NewFormat(fields []Field) (*Format, error) {
	f := &Format{
		Fields: append([]Field(nil), fields...),
		offset: make(map[string]int, len(fields)),
	}

	pos := 0
	for _, field := range f.Fields {
		if !field.Type.Valid() {
			return nil, fmt.Errorf("codec: unknown type code %q for field %q", field.Type, field.Name)
		}
		f.offset[field.Name] = pos
		pos += field.Type.Length()
	}
	f.size = pos

	return f, nil
}

// Size returns the total record length in bytes.
func (f *Format) Size() int { return f.size }

// Offset returns the byte offset of the named field, and whether it
// exists in the format.
func (f *Format) Offset(name string) (int, bool) {
	off, ok := f.offset[name]
	return off, ok
}

// byteOrder is resolved once at init to the host's native order, since
// Go's encoding/binary has no built-in "native" constant usable here.
var byteOrder = detectNativeOrder()

func detectNativeOrder() binary.ByteOrder {
	var probe uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&probe))
	if b[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// registry memoizes Formats by caller-supplied id: each distinct
// record shape is computed once and reused.
type registry struct {
	mu      sync.RWMutex
	formats map[string]*Format
}

// Registry memoizes Formats by caller id so repeated registrations of
// the same logical record shape share one Format instance.
type Registry struct{ r registry }

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{r: registry{formats: make(map[string]*Format)}}
}

// GetOrCreate returns the memoized Format for id, building it via build
// on first use.
func (reg *Registry) GetOrCreate(id string, build func() ([]Field, error)) (*Format, error) {
	reg.r.mu.RLock()
	if f, ok := reg.r.formats[id]; ok {
		reg.r.mu.RUnlock()
		return f, nil
	}
	reg.r.mu.RUnlock()

	reg.r.mu.Lock()
	defer reg.r.mu.Unlock()

	if f, ok := reg.r.formats[id]; ok {
		return f, nil
	}

	fields, err := build()
	if err != nil {
		return nil, err
	}

	f, err := NewFormat(fields)
	if err != nil {
		return nil, err
	}

	reg.r.formats[id] = f

	return f, nil
}

// PutUint32 encodes v into dst[offset:offset+4] in host-native order.
func PutUint32(dst []byte, offset int, v uint32) {
	byteOrder.PutUint32(dst[offset:offset+4], v)
}

// Uint32 decodes a 4-byte unsigned integer at offset in host-native order.
func Uint32(src []byte, offset int) uint32 {
	return byteOrder.Uint32(src[offset : offset+4])
}

// PutUint16 encodes v into dst[offset:offset+2] in host-native order.
func PutUint16(dst []byte, offset int, v uint16) {
	byteOrder.PutUint16(dst[offset:offset+2], v)
}

// Uint16 decodes a 2-byte unsigned integer at offset in host-native order.
func Uint16(src []byte, offset int) uint16 {
	return byteOrder.Uint16(src[offset : offset+2])
}

// PutInt32 encodes a signed 32-bit value, e.g. the instance field.
func PutInt32(dst []byte, offset int, v int32) {
	PutUint32(dst, offset, uint32(v))
}

// Int32 decodes a signed 32-bit value.
func Int32(src []byte, offset int) int32 {
	return int32(Uint32(src, offset))
}

// PutUint8 writes a single byte field.
func PutUint8(dst []byte, offset int, v uint8) { dst[offset] = v }

// Uint8 reads a single byte field.
func Uint8(src []byte, offset int) uint8 { return src[offset] }
