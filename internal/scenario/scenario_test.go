package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbbench/internal/driver"
)

func TestBatteryShape(t *testing.T) {
	battery := Battery(10000, 5)

	names := make([]string, len(battery))
	for i, sc := range battery {
		names[i] = sc.Name
		assert.Equal(t, 5, sc.Repetitions)
		assert.NotEmpty(t, sc.Category)
	}

	// The order is part of the measurement contract.
	assert.Equal(t, []string{
		"bulk-insert", "insert-single",
		SelectSimpleNoIndex, "select-joined", SelectSimpleIndexed,
		"update-by-key", "delete-by-key",
		"concurrent-select", "concurrent-insert",
	}, names)
}

func TestIndexPairIsTwoDistinctScenarios(t *testing.T) {
	battery := Battery(1000, 3)

	var noIdx, idx *Scenario
	for i := range battery {
		switch battery[i].Name {
		case SelectSimpleNoIndex:
			noIdx = &battery[i]
		case SelectSimpleIndexed:
			idx = &battery[i]
		}
	}
	require.NotNil(t, noIdx)
	require.NotNil(t, idx)

	assert.Equal(t, noIdx.Op, idx.Op, "same operation measured twice")
	assert.Equal(t, noIdx.Cardinality, idx.Cardinality)
	assert.False(t, noIdx.RequiresIndex)
	assert.True(t, idx.RequiresIndex)
	assert.Equal(t, noIdx.Category, idx.Category, "both halves see the same loaded dataset")
}

func TestBatteryLimitsSelectToDatasetSize(t *testing.T) {
	for _, sc := range Battery(100, 1) {
		if sc.Op == driver.OpSelectSimple {
			assert.Equal(t, 100, sc.Cardinality)
		}
	}
}

func TestFilter(t *testing.T) {
	battery := Battery(1000, 1)

	assert.Equal(t, battery, Filter(battery, nil), "empty set keeps everything")

	got := Filter(battery, []string{"delete-by-key", "bulk-insert"})
	require.Len(t, got, 2)
	assert.Equal(t, "bulk-insert", got[0].Name, "battery order wins over request order")
	assert.Equal(t, "delete-by-key", got[1].Name)

	assert.Empty(t, Filter(battery, []string{"no-such-scenario"}))
}
