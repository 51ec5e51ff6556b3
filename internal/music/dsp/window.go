package dsp

import (
	"time"

	"gonum.org/v1/gonum/dsp/window"

	"github.com/banshee-data/mstid/internal/music"
)

// hann returns a symmetric Hann window of length n. Lengths below 2 are
// left untapered.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	if n < 2 {
		return w
	}
	return window.Hann(w)
}

// WindowTime derives "windowed", tapering each cell's time series with a
// Hann window.
func WindowTime(ws *music.WorkingSet) *music.Dataset {
	ds := ws.Active()
	nt, nb, ng := ds.Data.Shape()
	out := ds.Copy("windowed", "Windowed Data")
	w := hann(nt)
	for t := 0; t < nt; t++ {
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				out.Data.Set(t, b, g, ds.Data.At(t, b, g)*w[t])
			}
		}
	}
	return ws.Add(out)
}

// WindowBeamGate derives "windowed_gate" then "windowed_beam", tapering the
// gate axis and then the beam axis with Hann windows.
func WindowBeamGate(ws *music.WorkingSet) *music.Dataset {
	ds := ws.Active()
	nt, nb, ng := ds.Data.Shape()

	wg := hann(ng)
	gated := ds.Copy("windowed_gate", "Windowed Gate Dimension")
	for t := 0; t < nt; t++ {
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				gated.Data.Set(t, b, g, ds.Data.At(t, b, g)*wg[g])
			}
		}
	}
	ws.Add(gated)

	wb := hann(nb)
	beamed := gated.Copy("windowed_beam", "Windowed Beam Dimension")
	for t := 0; t < nt; t++ {
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				beamed.Data.Set(t, b, g, gated.Data.At(t, b, g)*wb[b])
			}
		}
	}
	return ws.Add(beamed)
}

// ZeroPad derives "zeropad": the time axis gains one record length of zeros
// before and after the data, on a grid continuing the sample spacing.
func ZeroPad(ws *music.WorkingSet) *music.Dataset {
	ds := ws.Active()
	nt, nb, ng := ds.Data.Shape()
	out := ds.Copy("zeropad", "Zero Padded Signal")
	if nt == 0 {
		return ws.Add(out)
	}

	shift := ds.Time[nt-1].Sub(ds.Time[0]) + ds.SamplePeriod()
	out.Time = make([]time.Time, 0, 3*nt)
	for _, t := range ds.Time {
		out.Time = append(out.Time, t.Add(-shift))
	}
	out.Time = append(out.Time, ds.Time...)
	for _, t := range ds.Time {
		out.Time = append(out.Time, t.Add(shift))
	}

	out.Data = music.NewArray3(3*nt, nb, ng)
	for t := 0; t < nt; t++ {
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				out.Data.Set(nt+t, b, g, ds.Data.At(t, b, g))
			}
		}
	}
	out.Terminator = nil
	out.Metadata.STime = out.Time[0]
	out.Metadata.ETime = out.Time[len(out.Time)-1]
	return ws.Add(out)
}
