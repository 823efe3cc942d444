package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/messagemedia/shmop/internal/registry"
)

func intPtr(v int) *int { return &v }

func TestExpand_CounterYieldsOnePhysicalMetric(t *testing.T) {
	reg := registry.Expand([]registry.Config{
		{Type: registry.TypeCounter, Name: "things", Cluster: 0, Item: intPtr(0)},
	}, true, nil)

	require.Len(t, reg.Descriptors, 1)
	d, ok := reg.ByName("things")
	require.True(t, ok)
	require.Equal(t, int32(-1), d.Instance)
}

func TestExpand_TimerYieldsEightPhysicalMetricsWithAutoIncrementingItem(t *testing.T) {
	instance := 1
	reg := registry.Expand([]registry.Config{
		{Type: registry.TypeTimer, Name: "t", Cluster: 1, Item: intPtr(10), Instance: &instance},
	}, true, nil)

	require.Len(t, reg.Descriptors, 8)

	serviceTime, ok := reg.ByName("t.service_time")
	require.True(t, ok)
	require.Equal(t, uint16(10), serviceTime.Item)

	timingsCount, ok := reg.ByName("t.timings_count")
	require.True(t, ok)
	require.Equal(t, uint16(17), timingsCount.Item)
}

func TestExpand_DuplicateTripleDropsLaterEntry(t *testing.T) {
	reg := registry.Expand([]registry.Config{
		{Type: registry.TypeCounter, Name: "first", Cluster: 0, Item: intPtr(0)},
		{Type: registry.TypeCounter, Name: "second", Cluster: 0, Item: intPtr(0)},
	}, true, nil)

	_, firstOK := reg.ByName("first")
	_, secondOK := reg.ByName("second")
	require.True(t, firstOK)
	require.False(t, secondOK)
}

func TestExpand_InvalidTypeIsDropped(t *testing.T) {
	reg := registry.Expand([]registry.Config{
		{Type: "bogus", Name: "x", Cluster: 0, Item: intPtr(0)},
	}, true, nil)

	require.Empty(t, reg.Descriptors)
}

func TestExpand_ClusterOutOfRangeIsDropped(t *testing.T) {
	reg := registry.Expand([]registry.Config{
		{Type: registry.TypeCounter, Name: "x", Cluster: 70000, Item: intPtr(0)},
	}, true, nil)

	require.Empty(t, reg.Descriptors)
}

func TestExpand_NonDevelopmentModeSkipsValidation(t *testing.T) {
	reg := registry.Expand([]registry.Config{
		{Type: "bogus", Name: "x", Cluster: 0, Item: intPtr(0)},
	}, false, nil)

	// Outside development mode, even a bogus type is passed through to
	// expansion; expandOne treats anything not TypeCounter as a timer.
	require.Len(t, reg.Descriptors, registry.TimingFieldCount)
}
