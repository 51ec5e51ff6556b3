package dsp

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/banshee-data/mstid/internal/music"
)

// CalculateFFT fills the active dataset's Freqs and Spectrum with the
// one-sided spectrum of every cell, scaled by 1/NT, and records the dominant
// non-zero frequency: the one with the most power summed over all cells.
func CalculateFFT(ws *music.WorkingSet) error {
	ds := ws.Active()
	nt, nb, ng := ds.Data.Shape()
	period := ds.SamplePeriod()
	if nt < 2 || period <= 0 {
		return fmt.Errorf("fft: need at least two evenly spaced samples, got %d", nt)
	}
	fs := 1 / period.Seconds()

	fft := fourier.NewFFT(nt)
	nf := nt/2 + 1
	freqs := make([]float64, nf)
	for i := range freqs {
		freqs[i] = fft.Freq(i) * fs
	}

	spec := make([]complex128, nf*nb*ng)
	power := make([]float64, nf)
	coeff := make([]complex128, nf)
	scale := complex(1/float64(nt), 0)
	for b := 0; b < nb; b++ {
		for g := 0; g < ng; g++ {
			fft.Coefficients(coeff, ds.Data.Series(b, g))
			for f, c := range coeff {
				c *= scale
				spec[(f*nb+b)*ng+g] = c
				a := cmplx.Abs(c)
				power[f] += a * a
			}
		}
	}

	dominant := 0
	for f := 1; f < nf; f++ {
		if dominant == 0 || power[f] > power[dominant] {
			dominant = f
		}
	}

	ds.Freqs = freqs
	ds.Spectrum = spec
	ds.DominantFreq = 0
	if dominant > 0 {
		ds.DominantFreq = freqs[dominant]
	}
	return nil
}

// SpectrumAt returns the coefficient of cell (b, g) at frequency index f.
func SpectrumAt(ds *music.Dataset, f, b, g int) complex128 {
	return ds.Spectrum[(f*ds.Data.NB+b)*ds.Data.NG+g]
}
