package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New("general")
	r.Plan(4, 300)
	r.ChunkProcessed(300, 12, 2*time.Second)
	r.ChunkProcessed(120, 3, time.Second)
	r.ChunkAbandoned()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.chunksTotal.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chunksTotal.WithLabelValues("abandoned")))
	assert.Equal(t, 15.0, testutil.ToFloat64(r.rowsTotal))
	assert.Equal(t, 420.0, testutil.ToFloat64(r.audioSeconds))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.workers))
	assert.Equal(t, 300.0, testutil.ToFloat64(r.chunkLength))
}

func TestWriteTextfile(t *testing.T) {
	r := New("general")
	r.ChunkProcessed(10, 1, time.Second)
	path := filepath.Join(t.TempDir(), "out", "metrics.prom")

	require.NoError(t, r.WriteTextfile(path, time.Unix(1700000000, 0)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `buzzbatch_chunks_total{model="general",status="written"} 1`), text)
	assert.True(t, strings.Contains(text, "buzzbatch_last_run_timestamp_seconds"), text)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Plan(1, 10)
	r.ChunkProcessed(1, 1, time.Second)
	r.ChunkAbandoned()
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom"), time.Now()))
}
