package segment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/messagemedia/shmop/internal/segment"
	"github.com/messagemedia/shmop/internal/shm"
)

func TestIndexPages_SinglePage(t *testing.T) {
	require.Equal(t, 1, segment.IndexPages(10))
}

func TestDataPages_SinglePage(t *testing.T) {
	require.Equal(t, 1, segment.DataPages(10))
}

func TestOpenOrCreate_SizesSegmentsFromPhysicalCount(t *testing.T) {
	opener := shm.NewFake()

	pair, err := segment.OpenOrCreate(opener, "/tmp/does-not-matter.metrics", 2000, true)
	require.NoError(t, err)
	defer pair.Close()

	require.Equal(t, segment.IndexPages(2000)*segment.PageSize, pair.Index.Size())
	require.Equal(t, segment.DataPages(2000)*segment.PageSize, pair.Data.Size())
}

func TestOpenOrCreate_ReadOnlyMissingSegmentFails(t *testing.T) {
	opener := shm.NewFake()

	_, err := segment.OpenOrCreate(opener, "/tmp/missing.metrics", 10, false)
	require.ErrorIs(t, err, shm.ErrNotExist)
}
