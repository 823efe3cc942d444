package indexmgr

import "github.com/messagemedia/shmop/internal/codec"

// formats memoizes the header and entry record layouts by id, per the
// packing codec's format cache: each distinct shape is built once and
// shared across every Manager.
var formats = codec.NewRegistry()

func headerFormat() *codec.Format {
	f, err := formats.GetOrCreate("indexmgr.header", func() ([]codec.Field, error) {
		return []codec.Field{
			{Name: "version", Type: codec.Uint32},
			{Name: "next_index_offset", Type: codec.Uint32},
			{Name: "next_data_offset", Type: codec.Uint32},
		}, nil
	})
	if err != nil {
		// The field list above is fixed and always valid; a build
		// error here would mean the codec package itself is broken.
		panic("indexmgr: header format: " + err.Error())
	}

	return f
}

func entryFormat() *codec.Format {
	f, err := formats.GetOrCreate("indexmgr.entry", func() ([]codec.Field, error) {
		return []codec.Field{
			{Name: "flags", Type: codec.Uint8},
			{Name: "type", Type: codec.Uint8},
			{Name: "length", Type: codec.Uint16},
			{Name: "offset", Type: codec.Uint32},
			{Name: "cluster", Type: codec.Uint16},
			{Name: "item", Type: codec.Uint16},
			{Name: "instance", Type: codec.Int32},
		}, nil
	})
	if err != nil {
		panic("indexmgr: entry format: " + err.Error())
	}

	return f
}

// headerSize and entrySize are the on-wire sizes of the index header
// and one index entry, derived from the memoized Formats above so the
// offset consts below and the Format layout can never drift apart.
var (
	headerSize = headerFormat().Size()
	entrySize  = entryFormat().Size()
)

func fieldOffset(f *codec.Format, name string) int {
	off, ok := f.Offset(name)
	if !ok {
		panic("indexmgr: unknown field " + name)
	}

	return off
}

var (
	offVersion         = fieldOffset(headerFormat(), "version")
	offNextIndexOffset = fieldOffset(headerFormat(), "next_index_offset")
	offNextDataOffset  = fieldOffset(headerFormat(), "next_data_offset")

	entryOffFlags    = fieldOffset(entryFormat(), "flags")
	entryOffType     = fieldOffset(entryFormat(), "type")
	entryOffLength   = fieldOffset(entryFormat(), "length")
	entryOffOffset   = fieldOffset(entryFormat(), "offset")
	entryOffCluster  = fieldOffset(entryFormat(), "cluster")
	entryOffItem     = fieldOffset(entryFormat(), "item")
	entryOffInstance = fieldOffset(entryFormat(), "instance")
)

// header is the decoded form of the index segment's first headerSize
// bytes.
type header struct {
	Version         uint32
	NextIndexOffset uint32
	NextDataOffset  uint32
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	codec.PutUint32(buf, offVersion, h.Version)
	codec.PutUint32(buf, offNextIndexOffset, h.NextIndexOffset)
	codec.PutUint32(buf, offNextDataOffset, h.NextDataOffset)

	return buf
}

func decodeHeader(buf []byte) header {
	return header{
		Version:         codec.Uint32(buf, offVersion),
		NextIndexOffset: codec.Uint32(buf, offNextIndexOffset),
		NextDataOffset:  codec.Uint32(buf, offNextDataOffset),
	}
}

// entry is the decoded form of one fixed-size index entry.
type entry struct {
	Flags    uint8
	Type     byte
	Length   uint16
	Offset   uint32
	Cluster  uint16
	Item     uint16
	Instance int32
}

func (e entry) matches(cluster, item uint16, instance int32) bool {
	return e.Cluster == cluster && e.Item == item && e.Instance == instance
}

func encodeEntry(e entry) []byte {
	buf := make([]byte, entrySize)
	codec.PutUint8(buf, entryOffFlags, e.Flags)
	codec.PutUint8(buf, entryOffType, e.Type)
	codec.PutUint16(buf, entryOffLength, e.Length)
	codec.PutUint32(buf, entryOffOffset, e.Offset)
	codec.PutUint16(buf, entryOffCluster, e.Cluster)
	codec.PutUint16(buf, entryOffItem, e.Item)
	codec.PutInt32(buf, entryOffInstance, e.Instance)

	return buf
}

func decodeEntry(buf []byte) entry {
	return entry{
		Flags:    codec.Uint8(buf, entryOffFlags),
		Type:     codec.Uint8(buf, entryOffType),
		Length:   codec.Uint16(buf, entryOffLength),
		Offset:   codec.Uint32(buf, entryOffOffset),
		Cluster:  codec.Uint16(buf, entryOffCluster),
		Item:     codec.Uint16(buf, entryOffItem),
		Instance: codec.Int32(buf, entryOffInstance),
	}
}
