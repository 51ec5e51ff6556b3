package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mstid/internal/music"
)

// FilterTimes widens [sTime, eTime] by half the filter length on each side,
// so a numtaps-long filter at resolution res has support over the whole
// requested window.
func FilterTimes(sTime, eTime time.Time, res time.Duration, numtaps int) (time.Time, time.Time) {
	half := time.Duration(float64(numtaps) * float64(res) / 2)
	return sTime.Add(-half), eTime.Add(half)
}

// DesignBandPass returns a Blackman-windowed sinc band-pass FIR with cutoffs
// low and high in Hz at sample rate fs. The response is normalised to unit
// gain at the centre of the pass band.
func DesignBandPass(numtaps int, low, high, fs float64) ([]float64, error) {
	nyq := fs / 2
	switch {
	case numtaps < 3:
		return nil, fmt.Errorf("band-pass: need at least 3 taps, got %d", numtaps)
	case !(low > 0 && low < high && high < nyq):
		return nil, fmt.Errorf("band-pass: cutoffs must satisfy 0 < %g < %g < nyquist %g", low, high, nyq)
	}
	fl, fh := low/fs, high/fs // cycles per sample

	h := make([]float64, numtaps)
	mid := float64(numtaps-1) / 2
	for n := range h {
		m := float64(n) - mid
		h[n] = 2*fh*sinc(2*fh*m) - 2*fl*sinc(2*fl*m)
	}
	window.Blackman(h)

	fc := (fl + fh) / 2
	var gain complex128
	for n, v := range h {
		gain += complex(v, 0) * cmplx.Exp(complex(0, -2*math.Pi*fc*(float64(n)-mid)))
	}
	scale := 1 / cmplx.Abs(gain)
	for n := range h {
		h[n] *= scale
	}
	return h, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// BandPass derives "filtered": each cell is convolved with a band-pass FIR,
// keeping only fully supported outputs time-aligned to the filter centre,
// then restricted to [sTime, eTime].
func BandPass(ws *music.WorkingSet, numtaps int, low, high float64, sTime, eTime time.Time) (*music.Dataset, error) {
	ds := ws.Active()
	nt, nb, ng := ds.Data.Shape()
	period := ds.SamplePeriod()
	if period <= 0 {
		return nil, fmt.Errorf("band-pass: cannot determine sample period from %d samples", nt)
	}
	if nt < numtaps {
		return nil, fmt.Errorf("band-pass: %d samples is shorter than %d taps", nt, numtaps)
	}
	h, err := DesignBandPass(numtaps, low, high, 1/period.Seconds())
	if err != nil {
		return nil, err
	}

	delay := (numtaps - 1) / 2
	var keep []int // valid output index -> kept
	for i := 0; i+numtaps <= nt; i++ {
		t := ds.Time[i+delay]
		if !t.Before(sTime) && !t.After(eTime) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("band-pass: no filtered samples inside %s - %s", sTime, eTime)
	}

	out := ds.Copy("filtered", fmt.Sprintf("Filtered %g-%g Hz, %d taps", low, high, numtaps))
	out.Data = music.NewArray3(len(keep), nb, ng)
	out.Time = make([]time.Time, len(keep))
	out.Terminator = nil
	for k, i := range keep {
		out.Time[k] = ds.Time[i+delay]
	}
	for b := 0; b < nb; b++ {
		for g := 0; g < ng; g++ {
			x := ds.Data.Series(b, g)
			for k, i := range keep {
				var acc float64
				for j := 0; j < numtaps; j++ {
					acc += h[j] * x[i+numtaps-1-j]
				}
				out.Data.Set(k, b, g, acc)
			}
		}
	}
	return ws.Add(out), nil
}

// Detrend derives "detrended", removing a least-squares line from each
// cell's time series.
func Detrend(ws *music.WorkingSet) *music.Dataset {
	ds := ws.Active()
	nt, nb, ng := ds.Data.Shape()
	out := ds.Copy("detrended", "Linear Detrend")
	if nt < 2 {
		return ws.Add(out)
	}
	x := make([]float64, nt)
	for i := range x {
		x[i] = float64(i)
	}
	for b := 0; b < nb; b++ {
		for g := 0; g < ng; g++ {
			y := ds.Data.Series(b, g)
			alpha, beta := stat.LinearRegression(x, y, nil, false)
			for i := range y {
				y[i] -= alpha + beta*x[i]
			}
			out.Data.SetSeries(b, g, y)
		}
	}
	return ws.Add(out)
}
