package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/music"
)

func TestLoadManifest(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	path := writeFile(t, filepath.Join(tmp, "events.yaml"), `
process_level: rti_interp
events:
  - radar: BKS
    start: 2012-12-01 14:00
    end: 2012-12-01 16:00
  - radar: fhe
    start: "20121202.1400"
    end: 2012-12-02T16:00:00Z
    process_level: music
`)
	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Events, 2)

	level := "fft"
	params, err := m.InitParams(&config.RunConfig{ProcessLevel: &level})
	require.NoError(t, err)
	require.Len(t, params, 2)

	s := time.Date(2012, 12, 1, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, music.NewEventKey("bks", s, s.Add(2*time.Hour)), params[0].Key())
	assert.Equal(t, music.LevelRTIInterp, params[0].GetProcessLevel(), "manifest level beats the base config")
	assert.Equal(t, music.LevelMUSIC, params[1].GetProcessLevel(), "event level beats the manifest")
	assert.Equal(t, "fft", level, "the base config is not modified")
}

func TestLoadManifest_Errors(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()

	_, err := LoadManifest(filepath.Join(tmp, "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadManifest(writeFile(t, filepath.Join(tmp, "empty.yaml"), "list_name: x\n"))
	assert.ErrorContains(t, err, "no events")

	_, err = LoadManifest(writeFile(t, filepath.Join(tmp, "bad.yaml"), "events: [\n"))
	assert.Error(t, err)
}

func TestManifest_InitParamsErrors(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()

	m := &Manifest{dir: tmp, Events: []ManifestEvent{{Radar: "bks", Start: "soon", End: "2012-12-01 16:00"}}}
	_, err := m.InitParams(nil)
	assert.ErrorContains(t, err, "event 0: start")

	m.Events[0].Start = "2012-12-01 17:00"
	_, err = m.InitParams(nil)
	assert.ErrorContains(t, err, "event 0")

	m.Events[0].Start = "2012-12-01 14:00"
	m.Config = "../outside.json"
	_, err = m.InitParams(nil)
	assert.ErrorContains(t, err, "manifest config")
}
