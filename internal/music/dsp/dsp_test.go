package dsp

import (
	"math"
	"math/cmplx"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/music"
)

var t0 = time.Date(2012, 12, 1, 14, 0, 0, 0, time.UTC)

// newSet builds a working set with one dataset of shape nt x nb x ng sampled
// every step, beams and gates numbered from zero, filled by fill.
func newSet(nt, nb, ng int, step time.Duration, fill func(t, b, g int) float64) *music.WorkingSet {
	ws := music.NewWorkingSet("bks", t0, t0.Add(time.Duration(nt)*step))
	ds := &music.Dataset{
		Name: "originalFit",
		Data: music.NewArray3(nt, nb, ng),
		FOV:  music.FOV{Beams: make([]int, nb), Gates: make([]int, ng)},
	}
	for i := range ds.FOV.Beams {
		ds.FOV.Beams[i] = i
	}
	for i := range ds.FOV.Gates {
		ds.FOV.Gates[i] = i
	}
	ds.FOV.LatCenter = make([][]float64, nb)
	ds.FOV.LonCenter = make([][]float64, nb)
	ds.FOV.SlantRCenter = make([][]float64, nb)
	for b := 0; b < nb; b++ {
		ds.FOV.LatCenter[b] = make([]float64, ng)
		ds.FOV.LonCenter[b] = make([]float64, ng)
		ds.FOV.SlantRCenter[b] = make([]float64, ng)
		for g := 0; g < ng; g++ {
			ds.FOV.LatCenter[b][g] = 40 + 0.4*float64(g)
			ds.FOV.LonCenter[b][g] = -100 + 0.5*float64(b)
			ds.FOV.SlantRCenter[b][g] = 180 + 45*float64(g)
		}
	}
	for t := 0; t < nt; t++ {
		ds.Time = append(ds.Time, t0.Add(time.Duration(t)*step))
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				ds.Data.Set(t, b, g, fill(t, b, g))
			}
		}
	}
	ds.Metadata.Site = "bks"
	ws.Add(ds)
	return ws
}

func constant(v float64) func(int, int, int) float64 {
	return func(int, int, int) float64 { return v }
}

// ----------------------------------------------------------------------------
// Limits
// ----------------------------------------------------------------------------

func TestApplyLimits(t *testing.T) {
	t.Parallel()
	ws := newSet(3, 8, 20, time.Minute, func(_, b, g int) float64 { return float64(100*b + g) })
	DefineLimits(ws, &[2]int{5, 9}, &[2]int{2, 3})

	ds, err := ApplyLimits(ws)
	require.NoError(t, err)
	assert.Equal(t, "DS001_limitsApplied", ds.Name)
	assert.Equal(t, []int{2, 3}, ds.FOV.Beams)
	assert.Equal(t, []int{5, 6, 7, 8, 9}, ds.FOV.Gates)
	nt, nb, ng := ds.Data.Shape()
	assert.Equal(t, [3]int{3, 2, 5}, [3]int{nt, nb, ng})
	assert.Equal(t, 307.0, ds.Data.At(2, 1, 2))
	assert.Len(t, ds.FOV.LatCenter, 2)
	assert.Len(t, ds.FOV.LatCenter[0], 5)

	orig := ws.Original()
	assert.Equal(t, 8, orig.Data.NB, "source dataset untouched")
}

func TestApplyLimits_Open(t *testing.T) {
	t.Parallel()
	ws := newSet(2, 3, 4, time.Minute, constant(1))
	ds, err := ApplyLimits(ws)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Data.NB)
	assert.Equal(t, 4, ds.Data.NG)
}

func TestApplyLimits_Empty(t *testing.T) {
	t.Parallel()
	ws := newSet(2, 3, 4, time.Minute, constant(1))
	DefineLimits(ws, &[2]int{50, 60}, nil)
	_, err := ApplyLimits(ws)
	assert.ErrorIs(t, err, ErrEmptySelection)
}

// ----------------------------------------------------------------------------
// Boxcar
// ----------------------------------------------------------------------------

func TestBoxcarFilter(t *testing.T) {
	t.Parallel()
	// A solid block of 2s at gates 4-7 with one isolated spike at gate 0.
	ws := newSet(5, 4, 10, time.Minute, func(tt, b, g int) float64 {
		switch {
		case g >= 4 && g <= 7:
			return 2
		case tt == 2 && b == 1 && g == 0:
			return 50
		}
		return math.NaN()
	})
	// Punch a hole inside the block.
	ws.Active().Data.Set(2, 2, 5, math.NaN())

	ds := BoxcarFilter(ws)
	assert.Equal(t, "DS001_boxcarFiltered", ds.Name)
	assert.True(t, math.IsNaN(ds.Data.At(2, 1, 0)), "isolated spike removed")
	assert.Equal(t, 2.0, ds.Data.At(2, 2, 5), "hole filled")
	assert.Equal(t, 2.0, ds.Data.At(0, 0, 4))
}

func TestMedian(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 3.0, median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}

// ----------------------------------------------------------------------------
// Interpolation
// ----------------------------------------------------------------------------

func TestBeamInterpolation(t *testing.T) {
	t.Parallel()
	ws := newSet(1, 5, 1, time.Minute, func(_, b, _ int) float64 { return float64(b * 10) })
	ds := ws.Active()
	ds.Data.Set(0, 0, 0, math.NaN())
	ds.Data.Set(0, 2, 0, math.NaN())

	out := BeamInterpolation(ws)
	assert.True(t, math.IsNaN(out.Data.At(0, 0, 0)), "no extrapolation")
	assert.Equal(t, 10.0, out.Data.At(0, 1, 0))
	assert.InDelta(t, 20.0, out.Data.At(0, 2, 0), 1e-12)
	assert.Equal(t, 40.0, out.Data.At(0, 4, 0))
}

func TestTimeInterpolation(t *testing.T) {
	t.Parallel()
	ws := newSet(3, 1, 1, 0, constant(0))
	ds := ws.Active()
	ds.Time = []time.Time{t0, t0.Add(90 * time.Second), t0.Add(240 * time.Second)}
	ds.Data.Values = []float64{0, 90, 240}

	out, err := TimeInterpolation(ws, time.Minute)
	require.NoError(t, err)
	require.Len(t, out.Time, 5)
	assert.Equal(t, t0.Add(4*time.Minute), out.Time[4])
	for i, want := range []float64{0, 60, 120, 180, 240} {
		assert.InDelta(t, want, out.Data.At(i, 0, 0), 1e-9, "sample %d", i)
	}

	_, err = TimeInterpolation(ws, 0)
	assert.Error(t, err)
}

func TestNanToNum(t *testing.T) {
	t.Parallel()
	ws := newSet(1, 1, 4, time.Minute, constant(1))
	ws.Active().Data.Values = []float64{math.NaN(), math.Inf(1), math.Inf(-1), 3}

	out := NanToNum(ws)
	assert.Equal(t, []float64{0, math.MaxFloat64, -math.MaxFloat64, 3}, out.Data.Values)
}

func TestGreatCircle(t *testing.T) {
	t.Parallel()
	d, az := GreatCircle(0, 0, 1, 0)
	assert.InDelta(t, 111.19, d, 0.01)
	assert.InDelta(t, 0, az, 1e-9)

	_, az = GreatCircle(0, 0, 0, 1)
	assert.InDelta(t, math.Pi/2, az, 1e-9)
}

func TestDetermineRelativePosition(t *testing.T) {
	t.Parallel()
	ws := newSet(1, 4, 6, time.Minute, constant(0))
	require.NoError(t, DetermineRelativePosition(ws))

	fov := ws.Active().FOV
	assert.InDelta(t, 0, fov.RelX[2][3], 1e-9)
	assert.InDelta(t, 0, fov.RelY[2][3], 1e-9)
	assert.Greater(t, fov.RelY[2][5], 0.0, "higher gates are north")
	assert.Greater(t, fov.RelX[3][3], 0.0, "higher beams are east")

	ws.Active().FOV.LatCenter = nil
	assert.Error(t, DetermineRelativePosition(ws))
}

// ----------------------------------------------------------------------------
// Terminator
// ----------------------------------------------------------------------------

func TestSolarZenith(t *testing.T) {
	t.Parallel()
	noon := time.Date(2013, 3, 20, 12, 7, 0, 0, time.UTC)
	assert.Less(t, SolarZenith(noon, 0, 0), 3.0)
	assert.Greater(t, SolarZenith(noon.Add(12*time.Hour), 0, 0), 170.0)
}

func TestCalculateTerminator(t *testing.T) {
	t.Parallel()
	ws := newSet(2, 2, 2, 12*time.Hour, constant(0))
	CalculateTerminator(ws)
	ds := ws.Active()
	require.Len(t, ds.Terminator, 8)
	// 14 UTC at -100 lon is morning in December; 02 UTC is night.
	assert.True(t, ds.Terminator[ds.Data.Index(0, 0, 0)])
	assert.False(t, ds.Terminator[ds.Data.Index(1, 0, 0)])
}

// ----------------------------------------------------------------------------
// Filtering
// ----------------------------------------------------------------------------

func TestFilterTimes(t *testing.T) {
	t.Parallel()
	s, e := FilterTimes(t0, t0.Add(2*time.Hour), time.Minute, 101)
	assert.Equal(t, t0.Add(-3030*time.Second), s)
	assert.Equal(t, t0.Add(2*time.Hour+3030*time.Second), e)
}

func TestDesignBandPass(t *testing.T) {
	t.Parallel()
	fs := 1.0 / 60
	h, err := DesignBandPass(101, 0.0003, 0.0012, fs)
	require.NoError(t, err)
	require.Len(t, h, 101)
	for i := range h {
		assert.InDelta(t, h[i], h[len(h)-1-i], 1e-12, "symmetric tap %d", i)
	}

	response := func(f float64) float64 {
		var s complex128
		for n, v := range h {
			s += complex(v, 0) * cmplx.Exp(complex(0, -2*math.Pi*f/fs*float64(n)))
		}
		return cmplx.Abs(s)
	}
	assert.InDelta(t, 1, response(0.00075), 1e-9)
	assert.InDelta(t, 0.5, response(0.0003), 0.01, "-6 dB at the lower cutoff")
	assert.InDelta(t, 0.5, response(0.0012), 0.01, "-6 dB at the upper cutoff")
	assert.Less(t, response(0), 0.05)
	assert.Less(t, response(0.003), 0.001)

	_, err = DesignBandPass(101, 0.0012, 0.0003, fs)
	assert.Error(t, err)
	_, err = DesignBandPass(2, 0.0003, 0.0012, fs)
	assert.Error(t, err)
}

func TestBandPass(t *testing.T) {
	t.Parallel()
	step := time.Minute
	ws := newSet(400, 1, 2, step, func(tt, _, g int) float64 {
		x := float64(tt) * step.Seconds()
		if g == 0 {
			return math.Sin(2 * math.Pi * 0.00075 * x)
		}
		return math.Sin(2 * math.Pi * 0.003 * x) // stop band
	})
	sTime, eTime := t0.Add(100*step), t0.Add(300*step)

	ds, err := BandPass(ws, 101, 0.0003, 0.0012, sTime, eTime)
	require.NoError(t, err)
	assert.Equal(t, "DS001_filtered", ds.Name)
	require.Len(t, ds.Time, 201)
	assert.Equal(t, sTime, ds.Time[0])
	assert.Equal(t, eTime, ds.Time[200])

	var peak, stop float64
	for i := range ds.Time {
		peak = math.Max(peak, math.Abs(ds.Data.At(i, 0, 0)))
		stop = math.Max(stop, math.Abs(ds.Data.At(i, 0, 1)))
	}
	assert.InDelta(t, 1, peak, 0.05)
	assert.Less(t, stop, 0.01)

	short := newSet(50, 1, 1, step, constant(1))
	_, err = BandPass(short, 101, 0.0003, 0.0012, t0, t0.Add(time.Hour))
	assert.Error(t, err)
}

func TestDetrend(t *testing.T) {
	t.Parallel()
	ws := newSet(20, 2, 2, time.Minute, func(tt, b, g int) float64 { return 3 + 0.5*float64(tt) + float64(b+g) })
	ds := Detrend(ws)
	for _, v := range ds.Data.Values {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

// ----------------------------------------------------------------------------
// Windows and zero padding
// ----------------------------------------------------------------------------

func TestWindowTime(t *testing.T) {
	t.Parallel()
	ws := newSet(9, 1, 1, time.Minute, constant(2))
	ds := WindowTime(ws)
	assert.InDelta(t, 0, ds.Data.At(0, 0, 0), 1e-12)
	assert.InDelta(t, 2, ds.Data.At(4, 0, 0), 1e-12)
	assert.InDelta(t, 0, ds.Data.At(8, 0, 0), 1e-12)
}

func TestWindowBeamGate(t *testing.T) {
	t.Parallel()
	ws := newSet(1, 5, 5, time.Minute, constant(1))
	ds := WindowBeamGate(ws)
	assert.Equal(t, []string{"DS000_originalFit", "DS001_windowed_gate", "DS002_windowed_beam"}, ws.Names())
	assert.InDelta(t, 1, ds.Data.At(0, 2, 2), 1e-12)
	assert.InDelta(t, 0, ds.Data.At(0, 0, 2), 1e-12)
	assert.InDelta(t, 0, ds.Data.At(0, 2, 4), 1e-12)
}

func TestZeroPad(t *testing.T) {
	t.Parallel()
	ws := newSet(4, 1, 1, time.Minute, constant(7))
	ds := ZeroPad(ws)
	require.Len(t, ds.Time, 12)
	for i := 1; i < len(ds.Time); i++ {
		assert.Equal(t, time.Minute, ds.Time[i].Sub(ds.Time[i-1]), "uniform spacing at %d", i)
	}
	assert.Equal(t, t0.Add(-4*time.Minute), ds.Time[0])
	assert.Equal(t, ds.Time[0], ds.Metadata.STime)
	assert.Equal(t, []float64{0, 0, 0, 0, 7, 7, 7, 7, 0, 0, 0, 0}, ds.Data.Values)
}

// ----------------------------------------------------------------------------
// FFT
// ----------------------------------------------------------------------------

func TestCalculateFFT(t *testing.T) {
	t.Parallel()
	n := 64
	step := time.Minute
	ws := newSet(n, 2, 2, step, func(tt, b, g int) float64 {
		return math.Cos(2*math.Pi*5*float64(tt)/float64(n)) + 0.2
	})
	require.NoError(t, CalculateFFT(ws))

	ds := ws.Active()
	require.Len(t, ds.Freqs, n/2+1)
	fs := 1 / step.Seconds()
	assert.InDelta(t, 5*fs/float64(n), ds.DominantFreq, 1e-12)
	assert.InDelta(t, 0.5, cmplx.Abs(SpectrumAt(ds, 5, 1, 1)), 1e-9)
	assert.InDelta(t, 0.2, real(SpectrumAt(ds, 0, 0, 0)), 1e-9)

	assert.Error(t, CalculateFFT(newSet(1, 1, 1, step, constant(0))))
}

// ----------------------------------------------------------------------------
// Data quality and statistics
// ----------------------------------------------------------------------------

func TestCheckDataQuality(t *testing.T) {
	t.Parallel()
	ws := newSet(60, 1, 1, 2*time.Minute, constant(1))
	ds := ws.Active()
	assert.True(t, CheckDataQuality(ds, t0, t0.Add(2*time.Hour), DefaultMaxOffTime))
	assert.True(t, ds.Metadata.GoodPeriod)

	// Drop 15 minutes of samples.
	ds.Time = append(append([]time.Time(nil), ds.Time[:10]...), ds.Time[18:]...)
	assert.False(t, CheckDataQuality(ds, t0, t0.Add(2*time.Hour), DefaultMaxOffTime))
	assert.False(t, ds.Metadata.GoodPeriod)

	// Window extending past the data leaves a trailing gap.
	ws = newSet(30, 1, 1, 2*time.Minute, constant(1))
	assert.False(t, CheckDataQuality(ws.Active(), t0, t0.Add(2*time.Hour), DefaultMaxOffTime))
}

func TestComputeRTIStats(t *testing.T) {
	t.Parallel()
	ws := newSet(4, 3, 4, time.Minute, func(tt, b, g int) float64 {
		if g == 3 {
			return math.NaN()
		}
		return float64(tt + 1)
	})
	DefineLimits(ws, &[2]int{1, 3}, &[2]int{0, 1})

	st := ComputeRTIStats(ws, t0, t0.Add(2*time.Minute))
	// 2 times x 2 beams x 3 gates, one gate all NaN.
	assert.Equal(t, 12.0, st.Possible)
	assert.Equal(t, 8.0, st.Count)
	assert.InDelta(t, 8.0/12, st.Fraction, 1e-12)
	assert.InDelta(t, 1.5, st.Mean, 1e-12)
	assert.InDelta(t, 1.5, st.Median, 1e-12)
	assert.InDelta(t, 0.5, st.Std, 1e-12)

	empty := ComputeRTIStats(ws, t0.Add(time.Hour), t0.Add(2*time.Hour))
	assert.Zero(t, empty.Possible)
	assert.True(t, math.IsNaN(empty.Mean))
}

// ----------------------------------------------------------------------------
// Service
// ----------------------------------------------------------------------------

func TestService_Stages(t *testing.T) {
	t.Parallel()
	step := time.Minute
	ws := newSet(240, 4, 6, step, func(tt, b, g int) float64 {
		return math.Sin(2*math.Pi*0.0008*float64(tt)*step.Seconds() + 0.3*float64(b))
	})
	ws.STime, ws.ETime = t0.Add(60*step), t0.Add(180*step)
	ws.Active().Data.Set(10, 1, 2, math.NaN())

	cfg := config.EmptyRunConfig()
	var svc Service
	require.NoError(t, svc.Interpolate(ws, cfg))
	assert.Equal(t, "DS004_nan_to_num", ws.Active().Name)
	assert.False(t, math.IsNaN(ws.Active().Data.At(10, 1, 2)))
	assert.NotNil(t, ws.Active().Terminator)

	require.NoError(t, svc.Spectrum(ws, cfg))
	ds := ws.Active()
	assert.Equal(t, "DS010_zeropad", ds.Name)
	assert.Equal(t, 3*121, ds.Data.NT)
	assert.NotEmpty(t, ds.Spectrum)
	assert.InDelta(t, 0.0008, ds.DominantFreq, 0.0001)
}
