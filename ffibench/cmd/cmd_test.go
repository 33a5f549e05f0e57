package cmd

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/analogrelay/go-ffi-boundary/boundary"
	"github.com/analogrelay/go-ffi-boundary/internal/benchstore"
	"github.com/sebdah/goldie/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags puts every flag back to its default; rootCmd is shared across
// tests.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestDemo(t *testing.T) {
	out, err := execute(t, "demo")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "demo", []byte(out))
}

func TestDemoEncoding(t *testing.T) {
	_, err := execute(t, "demo", "--encoding", "ebcdic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown encoding "ebcdic"`)
}

func TestLayout(t *testing.T) {
	out, err := execute(t, "layout")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "layout", []byte(out))

	out, err = execute(t, "layout", "--manifest", filepath.Join("testdata", "layouts.yaml"))
	require.NoError(t, err)
	newGoldie(t).Assert(t, "layout", []byte(out))
}

func TestLayoutDrift(t *testing.T) {
	out, err := execute(t, "layout", "--manifest", filepath.Join("testdata", "layouts_drift.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boundary.ErrMarshal)
	assert.Contains(t, err.Error(), "2 of 3 layouts do not match")
	newGoldie(t).Assert(t, "layout_drift", []byte(out))
}

func TestLayoutDump(t *testing.T) {
	out, err := execute(t, "layout", "--dump")
	require.NoError(t, err)

	m, err := boundary.LoadManifest(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, m.Layouts, 3)
	l, ok := m.Lookup("frame_t")
	require.True(t, ok)
	assert.Equal(t, uint64(16), l.Size)
}

func TestBenchRecordsHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "bench", "--op", "add", "--duration", "50ms", "--workers", "2", "--record", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Starting add benchmark...")
	assert.Contains(t, out, "=== Benchmark Results ===")
	assert.Contains(t, out, "| add | 2 |")
	assert.Contains(t, out, "Recorded run ")

	out, err = execute(t, "bench", "--op", "greet", "--duration", "50ms", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "| greet | 2 |")
	assert.NotContains(t, out, "Recorded run")

	out, err = execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "| Started | Run | Operation |")
	assert.Contains(t, out, " | add | 2 | ")

	out, err = execute(t, "history", "--db", db, "--op", "greet")
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", out)
}

func TestBenchRejectsBadInput(t *testing.T) {
	_, err := execute(t, "bench", "--op", "nope", "--duration", "10ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown op "nope"`)

	_, err = execute(t, "bench", "--workers", "0", "--duration", "10ms")
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "layout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRecordRunKeepsErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	results := &BenchmarkResults{
		Op:           "greet",
		Workers:      2,
		TotalOps:     10,
		Errors:       7,
		ElapsedTime:  time.Second,
		OpsPerSecond: 10,
		LatencyMs:    100,
	}

	run, err := recordRun(context.Background(), db, results, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	store, err := benchstore.Open(db)
	require.NoError(t, err)
	runs, err := store.List(context.Background(), "greet", 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 1)
	assert.Equal(t, int64(7), runs[0].Errors)

	out, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "| Errors |")
	assert.Contains(t, out, " | greet | 2 | 10 | 7 | 1000 | ")
}
