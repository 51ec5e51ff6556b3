package detect

import (
	"math"
	"sort"

	"github.com/banshee-data/mstid/internal/music"
)

// DetectSignals finds local maxima of the active dataset's normalised Karr
// surface. A pixel is a peak when it equals the maximum of the neighborhood
// window (kx by ky pixels) around it and that window spans more than
// threshold between its minimum and maximum. Peaks inside the window of a
// stronger peak are dropped. Area counts the 4-connected pixels at or above
// threshold around each peak.
//
// The returned descriptors are ranked strongest first and carry the
// dataset's dominant frequency.
func DetectSignals(ds *music.Dataset, threshold float64, neighborhood [2]int) []music.SignalDescriptor {
	nx, ny := len(ds.KxVec), len(ds.KyVec)
	if nx == 0 || ny == 0 || len(ds.Karr) != nx*ny {
		return nil
	}
	wx, wy := max(neighborhood[0], 1), max(neighborhood[1], 1)
	at := func(ix, iy int) float64 { return ds.Karr[iy*nx+ix] }

	type peak struct {
		ix, iy int
		v      float64
	}
	var cands []peak
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			v := at(ix, iy)
			lo, hi := windowExtrema(ds.Karr, nx, ny, ix, iy, wx, wy)
			if v == hi && hi-lo > threshold {
				cands = append(cands, peak{ix, iy, v})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].v > cands[j].v })

	var kept []peak
	for _, c := range cands {
		shadowed := false
		for _, k := range kept {
			if inWindow(c.ix-k.ix, wx) && inWindow(c.iy-k.iy, wy) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			kept = append(kept, c)
		}
	}

	sigs := make([]music.SignalDescriptor, 0, len(kept))
	for _, p := range kept {
		sig := Describe(ds.KxVec[p.ix], ds.KyVec[p.iy], ds.DominantFreq)
		sig.Max = p.v
		sig.Area = float64(regionArea(ds.Karr, nx, ny, p.ix, p.iy, threshold))
		sigs = append(sigs, sig)
	}
	music.Reorder(sigs)
	return sigs
}

// Describe derives the wave parameters of a signal at wavenumber (kx, ky) in
// 1/km oscillating at freq Hz. Azimuth is measured clockwise from north.
// Wavelength and velocity are zero at k = 0 and period is zero at freq = 0.
func Describe(kx, ky, freq float64) music.SignalDescriptor {
	sig := music.SignalDescriptor{
		Kx:   kx,
		Ky:   ky,
		K:    math.Hypot(kx, ky),
		Azm:  math.Mod(math.Atan2(kx, ky)*180/math.Pi+360, 360),
		Freq: freq,
	}
	if sig.K > 0 {
		sig.Lambda = 2 * math.Pi / sig.K
		sig.Vel = sig.Lambda * 1000 * freq
	}
	if freq > 0 {
		sig.Period = 1 / freq
	}
	return sig
}

// inWindow reports whether offset d falls in a window of size w centred the
// way an image maximum filter centres it: offsets -w/2 .. w-1-w/2.
func inWindow(d, w int) bool {
	return d >= -(w/2) && d <= w-1-w/2
}

func windowExtrema(karr []float64, nx, ny, ix, iy, wx, wy int) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for y := max(iy-wy/2, 0); y <= min(iy+wy-1-wy/2, ny-1); y++ {
		for x := max(ix-wx/2, 0); x <= min(ix+wx-1-wx/2, nx-1); x++ {
			v := karr[y*nx+x]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}

// regionArea counts the 4-connected pixels reachable from (ix, iy) whose
// value is at least threshold.
func regionArea(karr []float64, nx, ny, ix, iy int, threshold float64) int {
	seen := make([]bool, len(karr))
	stack := [][2]int{{ix, iy}}
	seen[iy*nx+ix] = true
	area := 0
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		area++
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			x, y := p[0]+d[0], p[1]+d[1]
			if x < 0 || y < 0 || x >= nx || y >= ny {
				continue
			}
			i := y*nx + x
			if !seen[i] && karr[i] >= threshold {
				seen[i] = true
				stack = append(stack, [2]int{x, y})
			}
		}
	}
	return area
}
