package bench

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportWriteRoundTrip(t *testing.T) {
	r := &Report{
		RunID:     "test-run",
		StartedAt: time.Unix(1700000000, 0).UTC(),
		Results: map[string]map[string]ResultRecord{
			"pg": {"bulk-insert": {Count: 5, MeanMs: 1.5, P50Ms: 1.4}},
		},
		Skipped: map[string]string{"mysql": "connect: refused"},
	}

	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, r.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "test-run", got.RunID)
	assert.Equal(t, 1.5, got.Results["pg"]["bulk-insert"].MeanMs)
	assert.Equal(t, "connect: refused", got.Skipped["mysql"])
	assert.True(t, got.Partial())
}

func TestReportStableFieldNames(t *testing.T) {
	// The field names below are a contract with the report renderer; this
	// test pins them.
	data, err := json.Marshal(ResultRecord{})
	require.NoError(t, err)
	for _, field := range []string{
		"count", "mean_ms", "p50_ms", "p95_ms", "p99_ms", "min_ms", "max_ms", "errors",
	} {
		assert.Contains(t, string(data), `"`+field+`"`)
	}
}

func TestPartial(t *testing.T) {
	assert.False(t, (&Report{}).Partial())
	assert.True(t, (&Report{Skipped: map[string]string{"x": "y"}}).Partial())
}
