package plots

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/fsutil"
	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/checkpoint"
	"github.com/banshee-data/mstid/internal/music/loader"
)

var (
	sTime = time.Date(2012, 12, 1, 14, 0, 0, 0, time.UTC)
	eTime = sTime.Add(2 * time.Hour)
	key   = music.NewEventKey("bks", sTime, eTime)
)

func workingSet(t *testing.T) *music.WorkingSet {
	t.Helper()
	cfg := config.EmptyRunConfig()
	ws, err := loader.DefaultSynthetic().Load(key, cfg)
	require.NoError(t, err)
	ws.Active().Metadata.GateLimits = &[2]int{20, 50}
	return ws
}

func withKarr(ws *music.WorkingSet) {
	ds := ws.Derive("music", "MUSIC Calculation")
	ds.KxVec = []float64{-0.02, -0.01, 0, 0.01, 0.02}
	ds.KyVec = []float64{-0.02, 0, 0.02}
	ds.Karr = make([]float64, len(ds.KxVec)*len(ds.KyVec))
	for i := range ds.Karr {
		ds.Karr[i] = float64(i) / 10
	}
	ds.Signals = []music.SignalDescriptor{{Order: 1, Kx: 0.011, Ky: 0.019, Lambda: 281, Azm: 26.6, Max: 1.4}}
}

func isPNG(b []byte) bool { return bytes.HasPrefix(b, []byte("\x89PNG")) }

// ----------------------------------------------------------------------------
// Renderer
// ----------------------------------------------------------------------------

func TestRenderer_Plot(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	store := checkpoint.NewStore(fs, "/music")
	ws := workingSet(t)
	withKarr(ws)

	require.NoError(t, New().Plot(store, key, ws))

	for _, name := range []string{RangeDistributionFilename, RTIFilename(4), RTIFilename(7), RTIFilename(13)} {
		b, err := store.ReadFile(key, name)
		require.NoError(t, err, name)
		assert.True(t, isPNG(b), "%s is a PNG", name)
	}
	html, err := store.ReadFile(key, KarrChartFilename)
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")
	assert.Contains(t, string(html), "signals")
}

func TestRenderer_NoKarr(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	store := checkpoint.NewStore(fs, "/music")
	require.NoError(t, New().Plot(store, key, workingSet(t)))

	assert.True(t, fs.Exists(store.FilePath(key, RangeDistributionFilename)))
	assert.False(t, fs.Exists(store.FilePath(key, KarrChartFilename)))
}

func TestRenderer_EmptyWorkingSet(t *testing.T) {
	t.Parallel()

	store := checkpoint.NewStore(fsutil.NewMemoryFileSystem(), "/music")
	err := New().Plot(store, key, music.NewWorkingSet("bks", sTime, eTime))
	require.Error(t, err)
	assert.ErrorContains(t, err, "range distribution")
}

func TestRenderer_FallbackBeam(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	store := checkpoint.NewStore(fs, "/music")
	r := New()
	r.Beams = []int{40}
	require.NoError(t, r.Plot(store, key, workingSet(t)))

	assert.True(t, fs.Exists(store.FilePath(key, RTIFilename(0))))
	assert.False(t, fs.Exists(store.FilePath(key, RTIFilename(40))))
}

// ----------------------------------------------------------------------------
// Axes and beam selection
// ----------------------------------------------------------------------------

func TestRTIBeams(t *testing.T) {
	t.Parallel()

	ds := &music.Dataset{FOV: music.FOV{Beams: []int{2, 3, 4, 5, 6, 7}}}
	assert.Equal(t, []int{4, 7}, RTIBeams(ds, DefaultRTIBeams))

	ds.FOV.Beams = []int{20, 21}
	assert.Equal(t, []int{20}, RTIBeams(ds, DefaultRTIBeams))

	assert.Nil(t, RTIBeams(nil, DefaultRTIBeams))
}

func TestTimeAxis(t *testing.T) {
	t.Parallel()

	lo, hi := TimeAxis(sTime, eTime)
	assert.Equal(t, MinRTISpan, hi.Sub(lo))
	assert.Equal(t, sTime.Add(-time.Hour), lo)

	long := sTime.Add(6 * time.Hour)
	lo, hi = TimeAxis(sTime, long)
	assert.Equal(t, sTime, lo)
	assert.Equal(t, long, hi)
}

func TestGateAxis(t *testing.T) {
	t.Parallel()

	fov := music.FOV{Gates: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29}}

	lo, hi := GateAxis(fov, &[2]int{12, 15})
	assert.Equal(t, 2, lo)
	assert.Equal(t, 25, hi)

	lo, hi = GateAxis(fov, &[2]int{5, 25})
	assert.Equal(t, 0, lo, "clamped to the field of view")
	assert.Equal(t, 29, hi)

	lo, hi = GateAxis(fov, nil)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 29, hi)
}

func TestNearest(t *testing.T) {
	t.Parallel()
	v := []float64{-0.02, -0.01, 0, 0.01, 0.02}
	assert.Equal(t, 3, nearest(v, 0.011))
	assert.Equal(t, 0, nearest(v, -1))
	assert.Equal(t, 4, nearest(v, 1))
}
