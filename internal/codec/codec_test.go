package codec_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/messagemedia/shmop/internal/codec"
)

func TestNewFormat_ComputesOffsetsAndSize(t *testing.T) {
	f, err := codec.NewFormat([]codec.Field{
		{Name: "flags", Type: codec.Uint8},
		{Name: "typ", Type: codec.Uint8},
		{Name: "length", Type: codec.Uint16},
		{Name: "offset", Type: codec.Uint32},
		{Name: "cluster", Type: codec.Uint16},
		{Name: "item", Type: codec.Uint16},
		{Name: "instance", Type: codec.Int32},
	})
	require.NoError(t, err)
	require.Equal(t, 16, f.Size())

	if diff := cmp.Diff("flags", f.Fields[0].Name); diff != "" {
		t.Fatalf("unexpected first field (-want +got):\n%s", diff)
	}
}

func TestNewFormat_RejectsUnknownType(t *testing.T) {
	_, err := codec.NewFormat([]codec.Field{{Name: "bad", Type: codec.Type('x')}})
	require.Error(t, err)
}

func TestUint32RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	codec.PutUint32(buf, 0, 0xDEADBEEF)
	require.Equal(t, uint32(0xDEADBEEF), codec.Uint32(buf, 0))
}

func TestInt32RoundTrip_NegativeInstance(t *testing.T) {
	buf := make([]byte, 4)
	codec.PutInt32(buf, 0, -1)
	require.Equal(t, int32(-1), codec.Int32(buf, 0))
}

func TestRegistry_MemoizesByID(t *testing.T) {
	reg := codec.NewRegistry()
	calls := 0
	build := func() ([]codec.Field, error) {
		calls++
		return []codec.Field{{Name: "v", Type: codec.Uint32}}, nil
	}

	f1, err := reg.GetOrCreate("entry", build)
	require.NoError(t, err)
	f2, err := reg.GetOrCreate("entry", build)
	require.NoError(t, err)

	require.Same(t, f1, f2)
	require.Equal(t, 1, calls)
}
