package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mstid/internal/db"
	"github.com/banshee-data/mstid/internal/music"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseTime(t *testing.T) {
	t.Parallel()
	want := time.Date(2012, 12, 1, 14, 0, 0, 0, time.UTC)
	for _, in := range []string{"2012-12-01 14:00:00", "2012-12-01 14:00", "20121201.1400", "2012-12-01T14:00:00Z", " 2012-12-01 14:00 "} {
		got, err := parseTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseTime("yesterday")
	assert.Error(t, err)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	t.Parallel()
	err := dispatch(context.Background(), "frobnicate", nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)
}

func TestDispatch_Version(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, dispatch(context.Background(), "version", nil, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "music dev"))
}

func TestDispatch_Help(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, dispatch(context.Background(), "help", nil, &buf))
	assert.Contains(t, buf.String(), "Commands:")
	assert.Contains(t, buf.String(), "batch")
}

// ----------------------------------------------------------------------------
// init
// ----------------------------------------------------------------------------

func TestInit_SingleEvent(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "init")

	var buf bytes.Buffer
	err := handleInit([]string{"-dir", dir, "-site", "BKS", "-start", "2012-12-01 14:00", "-end", "2012-12-01 16:00", "-level", "rti", "-prefix", "a_"}, &buf)
	require.NoError(t, err)

	path := strings.TrimSpace(buf.String())
	assert.Equal(t, filepath.Join(dir, "a_bks-20121201.1400-20121201.1600.init.json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"process_level": "rti"`)
	assert.Contains(t, string(data), `"sTime": "2012-12-01 14:00:00"`)
}

func TestInit_RequiresOneSource(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	err := handleInit([]string{"-dir", dir}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "either -events")

	err = handleInit([]string{"-dir", dir, "-events", "x.yaml", "-site", "bks"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "either -events")

	err = handleInit([]string{"-dir", dir, "-site", "bks", "-start", "2012-12-01 14:00"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "all required")
}

func TestInit_ManifestAndClear(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "init")
	writeFile(t, filepath.Join(tmp, "run.json"), `{"process_level": "fft", "kx_max": 0.04}`)
	manifest := writeFile(t, filepath.Join(tmp, "events.yaml"), `
list_name: winter
config: run.json
events:
  - radar: bks
    start: 2012-12-01 14:00
    end: 2012-12-01 16:00
  - radar: fhe
    start: 2012-12-02 14:00
    end: 2012-12-02 16:00
    process_level: rti
`)
	stale := filepath.Join(dir, "old-20000101.0000-20000101.0200.init.json")
	require.NoError(t, os.MkdirAll(dir, 0755))
	writeFile(t, stale, "{}")

	var buf bytes.Buffer
	require.NoError(t, handleInit([]string{"-dir", dir, "-events", manifest, "-clear"}, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NoFileExists(t, stale)

	data, err := os.ReadFile(lines[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"process_level": "rti"`)
	assert.Contains(t, string(data), `"mstid_list": "winter"`)
	assert.Contains(t, string(data), `"kx_max": 0.04`)
}

// ----------------------------------------------------------------------------
// run, batch, status
// ----------------------------------------------------------------------------

func TestRun_SyntheticWithStore(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	data := filepath.Join(tmp, "music")

	args := []string{"-synthetic", "-site", "bks", "-start", "2012-12-01 14:00", "-end", "2012-12-01 16:00",
		"-level", "rti", "-data-path", data, "-store-dir", tmp, "-list", "demo"}
	var buf bytes.Buffer
	require.NoError(t, handleRun(context.Background(), args, &buf))
	assert.Equal(t, "bks-20121201.1400-20121201.1600: rti\n", buf.String())

	store, err := db.NewDB(db.StorePath(tmp, "mstid"))
	require.NoError(t, err)
	defer store.Close()
	rows, err := store.ListRunSummaries("demo")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, music.LevelRTI, rows[0].Level)

	buf.Reset()
	require.NoError(t, handleRun(context.Background(), append(args, "-resume", "skip"), &buf))
	assert.Contains(t, buf.String(), "skipped (completed rti)")

	buf.Reset()
	require.NoError(t, handleStatus([]string{"-site", "bks", "-start", "2012-12-01 14:00", "-end", "2012-12-01 16:00",
		"-data-path", data, "-store-dir", tmp, "-summary"}, &buf))
	assert.Contains(t, buf.String(), "bks-20121201.1400-20121201.1600: rti")
	assert.Contains(t, buf.String(), "good period:  true")
}

func TestRun_BadResumeMode(t *testing.T) {
	t.Parallel()
	err := handleRun(context.Background(), []string{"-resume", "later"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown resume mode")
}

func TestStatus_NotStarted(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, handleStatus([]string{"-site", "bks", "-start", "2012-12-01 14:00", "-end", "2012-12-01 16:00",
		"-data-path", t.TempDir()}, &buf))
	assert.Contains(t, buf.String(), ": none (")
}

func TestBatch_FromInitDir(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "init")
	data := filepath.Join(tmp, "music")

	for _, day := range []string{"01", "02"} {
		require.NoError(t, handleInit([]string{"-dir", dir, "-site", "bks",
			"-start", "2012-12-" + day + " 14:00", "-end", "2012-12-" + day + " 16:00",
			"-level", "rti", "-data-path", data}, &bytes.Buffer{}))
	}

	var buf bytes.Buffer
	require.NoError(t, handleBatch(context.Background(), []string{"-dir", dir, "-workers", "2", "-synthetic", "-no-store"}, &buf))
	assert.Equal(t,
		"bks-20121201.1400-20121201.1600: rti\nbks-20121202.1400-20121202.1600: rti\n",
		buf.String())
}

func TestBatch_MixedSummaryStores(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "init")
	data := filepath.Join(tmp, "music")
	other := writeFile(t, filepath.Join(tmp, "other.json"), `{"db_name": "other"}`)

	event := []string{"-dir", dir, "-site", "bks", "-level", "rti", "-data-path", data}
	require.NoError(t, handleInit(append(event, "-start", "2012-12-01 14:00", "-end", "2012-12-01 16:00"), &bytes.Buffer{}))
	require.NoError(t, handleInit(append(event, "-config", other, "-start", "2012-12-02 14:00", "-end", "2012-12-02 16:00"), &bytes.Buffer{}))

	err := handleBatch(context.Background(), []string{"-dir", dir, "-synthetic", "-store-dir", tmp}, &bytes.Buffer{})
	require.ErrorContains(t, err, "different summary stores (mstid, other)")
	_, statErr := os.Stat(db.StorePath(tmp, "mstid"))
	assert.True(t, os.IsNotExist(statErr), "nothing runs when stores are mixed")

	var buf bytes.Buffer
	require.NoError(t, handleBatch(context.Background(), []string{"-dir", dir, "-synthetic", "-store-dir", tmp, "-db", "shared"}, &buf))
	store, err := db.NewDB(db.StorePath(tmp, "shared"))
	require.NoError(t, err)
	defer store.Close()
	rows, err := store.ListRunSummaries("")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestBatch_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, handleBatch(context.Background(), []string{"-dir", dir, "-no-store"}, &buf))
	assert.Contains(t, buf.String(), "no pending runs")
}

// ----------------------------------------------------------------------------
// migrate
// ----------------------------------------------------------------------------

func TestMigrate_Status(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, handleMigrate([]string{"-store-dir", tmp, "up"}, &buf))
	buf.Reset()
	require.NoError(t, handleMigrate([]string{"-store-dir", tmp, "status"}, &buf))
	assert.Contains(t, buf.String(), "Current version: 2")
	assert.FileExists(t, filepath.Join(tmp, "mstid.db"))
}
