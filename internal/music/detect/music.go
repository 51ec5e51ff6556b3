// Package detect estimates the horizontal wavenumber of travelling waves in
// an event's spectrum with the MUSIC (multiple signal classification) method
// and extracts discrete signals from the resulting surface.
package detect

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/mstid/internal/music"
)

// SignalSubspaceFraction is the fraction of the largest eigenvalue an
// eigenvalue must reach for its eigenvector to be counted as signal.
const SignalSubspaceFraction = 0.15

// DefaultKStep is the wavenumber grid spacing in 1/km.
const DefaultKStep = 0.001

// CalculateDlm fills the active dataset's cross-spectral matrix: for every
// pair of cells (l, m), the sum over positive frequencies of S_l * conj(S_m).
// Cells are ordered beam-major.
func CalculateDlm(ws *music.WorkingSet) error {
	ds := ws.Active()
	if len(ds.Spectrum) == 0 || len(ds.Freqs) == 0 {
		return fmt.Errorf("dlm: active dataset %s has no spectrum", ds.Name)
	}
	nb, ng := ds.Data.NB, ds.Data.NG
	nc := nb * ng
	nf := len(ds.Freqs)

	dlm := make([]complex128, nc*nc)
	for f := 0; f < nf; f++ {
		if ds.Freqs[f] <= 0 {
			continue
		}
		row := ds.Spectrum[f*nc : (f+1)*nc]
		for l := 0; l < nc; l++ {
			sl := row[l]
			for m := l; m < nc; m++ {
				dlm[l*nc+m] += sl * cmplx.Conj(row[m])
			}
		}
	}
	for l := 0; l < nc; l++ {
		for m := 0; m < l; m++ {
			dlm[l*nc+m] = cmplx.Conj(dlm[m*nc+l])
		}
	}
	ds.DlmSize = nc
	ds.Dlm = dlm
	return nil
}

// CalculateKarr evaluates the MUSIC pseudo-spectrum of the active dataset's
// cross-spectral matrix over kx in [-kxMax, kxMax] and ky in [-kyMax, kyMax]
// and stores it normalised to a maximum of one.
//
// The Hermitian matrix is decomposed through its real symmetric embedding
// [[Re, -Im], [Im, Re]], whose spectrum holds every eigenvalue twice. The
// pseudo-spectrum at k is 1 / (|e(k)|^2 - |P_s e(k)|^2), where e(k) is the
// steering vector exp(i(kx x + ky y)) over the cell positions and P_s the
// projection onto the signal subspace.
func CalculateKarr(ws *music.WorkingSet, kxMax, kyMax, kStep float64) error {
	ds := ws.Active()
	n := ds.DlmSize
	if n == 0 || len(ds.Dlm) != n*n {
		return fmt.Errorf("karr: active dataset %s has no cross-spectral matrix", ds.Name)
	}
	nb, ng := ds.Data.NB, ds.Data.NG
	if len(ds.FOV.RelX) != nb || len(ds.FOV.RelY) != nb || nb*ng != n {
		return fmt.Errorf("karr: relative cell positions missing for %dx%d cells", nb, ng)
	}
	if kStep <= 0 {
		kStep = DefaultKStep
	}

	sym := mat.NewSymDense(2*n, nil)
	for l := 0; l < n; l++ {
		for m := l; m < n; m++ {
			v := ds.Dlm[l*n+m]
			re, im := real(v), imag(v)
			sym.SetSym(l, m, re)
			sym.SetSym(n+l, n+m, re)
			sym.SetSym(l, n+m, -im)
			sym.SetSym(m, n+l, im)
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return fmt.Errorf("karr: eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	maxEval := floats.Max(values)
	var signal []int
	for i, v := range values {
		if maxEval > 0 && v >= SignalSubspaceFraction*maxEval {
			signal = append(signal, i)
		}
	}

	x := make([]float64, n)
	y := make([]float64, n)
	for b := 0; b < nb; b++ {
		for g := 0; g < ng; g++ {
			x[b*ng+g] = ds.FOV.RelX[b][g]
			y[b*ng+g] = ds.FOV.RelY[b][g]
		}
	}

	kxVec := kGrid(kxMax, kStep)
	kyVec := kGrid(kyMax, kStep)
	karr := make([]float64, len(kyVec)*len(kxVec))
	steer := make([]float64, 2*n)
	for iy, ky := range kyVec {
		for ix, kx := range kxVec {
			for c := 0; c < n; c++ {
				phase := kx*x[c] + ky*y[c]
				steer[c] = math.Cos(phase)
				steer[n+c] = math.Sin(phase)
			}
			var proj float64
			for _, s := range signal {
				var dot float64
				for r := 0; r < 2*n; r++ {
					dot += vecs.At(r, s) * steer[r]
				}
				proj += dot * dot
			}
			karr[iy*len(kxVec)+ix] = 1 / math.Max(float64(n)-proj, 1e-12)
		}
	}
	if peak := floats.Max(karr); peak > 0 {
		floats.Scale(1/peak, karr)
	}

	ds.KxVec, ds.KyVec, ds.Karr = kxVec, kyVec, karr
	return nil
}

// kGrid returns symmetric samples from -kMax to kMax at spacing step.
func kGrid(kMax, step float64) []float64 {
	n := int(math.Round(2*kMax/step)) + 1
	if n < 2 {
		return []float64{0}
	}
	return floats.Span(make([]float64, n), -kMax, kMax)
}
