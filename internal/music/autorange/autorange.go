// Package autorange selects the contiguous band of range gates that holds
// the bulk of the backscatter energy in an event.
//
// The per-gate energy profile is re-expanded into a synthetic population of
// samples, re-histogrammed over the gate bins and median filtered, so isolated
// spikes do not pull the selection away from the main scatter region. The
// band is then grown outward from the smoothed peak while bins stay above a
// fixed fraction of the peak.
package autorange

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/music"
)

const (
	// GrowthThreshold is the fraction of the peak a bin must exceed to join
	// the band.
	GrowthThreshold = 0.18

	// MedianWindow is the median filter kernel width in bins.
	MedianWindow = 11

	// MinSpan is the largest gate span that is still rejected as too small.
	MinSpan = 5

	// samplesPerUnit is the synthetic sample count for a gate of weight 1.
	samplesPerUnit = 1000
)

// ErrInsufficientData reports an energy profile with no usable peak. It is
// the only auto-range failure treated as a normal rejection.
var ErrInsufficientData = errors.New("insufficient data for auto range")

var logf = monitoring.Component("AutoRange")

// Result holds the selected band and the intermediate profiles.
type Result struct {
	// MinGate and MaxGate are inclusive gate numbers.
	MinGate, MaxGate int

	// MinIndex and MaxIndex are the same bounds as indices into Gates.
	MinIndex, MaxIndex int

	Peak      int // index of the smoothed peak
	Threshold float64

	// ClampIndex is the largest gate index below the minimum physical range,
	// or -1 when the clamp is off or no gate is that close.
	ClampIndex int

	Gates     []int
	Profile   []float64 // normalised energy per gate
	Histogram []float64 // synthetic sample counts per gate
	Smoothed  []float64 // median-filtered histogram
}

// Span returns MaxGate - MinGate.
func (r *Result) Span() int { return r.MaxGate - r.MinGate }

// TooSmall reports whether the band is too narrow to process.
func (r *Result) TooSmall() bool { return r.Span() <= MinSpan }

// Limits returns the band as an inclusive gate-number pair.
func (r *Result) Limits() [2]int { return [2]int{r.MinGate, r.MaxGate} }

// Detect runs the detector over ds restricted to [sTime, eTime). A non-nil
// badRangeKm enables the minimum physical range clamp.
func Detect(ds *music.Dataset, sTime, eTime time.Time, badRangeKm *float64) (*Result, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: no dataset", ErrInsufficientData)
	}
	_, nb, ng := ds.Data.Shape()
	if ng == 0 || nb == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrInsufficientData)
	}
	if len(ds.FOV.Gates) != ng {
		return nil, fmt.Errorf("fov has %d gates, data has %d", len(ds.FOV.Gates), ng)
	}
	tIdx := ds.TimeIndices(sTime, eTime)
	if len(tIdx) == 0 {
		return nil, fmt.Errorf("%w: no samples in window", ErrInsufficientData)
	}

	energy := make([]float64, ng)
	for _, t := range tIdx {
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				if v := ds.Data.At(t, b, g); !math.IsNaN(v) && !math.IsInf(v, 0) {
					energy[g] += v
				}
			}
		}
	}

	clamp := -1
	if badRangeKm != nil {
		clamp = ClampIndex(ds.FOV.SlantRCenter, *badRangeKm)
	}
	res, err := DetectProfile(energy, ds.FOV.Gates, clamp)
	if err != nil {
		return nil, err
	}
	logf("%s: gates %d-%d (peak gate %d, clamp index %d)",
		ds.Metadata.Site, res.MinGate, res.MaxGate, res.Gates[res.Peak], clamp)
	return res, nil
}

// DetectProfile selects the band from a raw per-gate energy profile. gates
// maps profile indices to gate numbers. clamp is the largest index below the
// minimum physical range, or negative to disable the clamp.
func DetectProfile(energy []float64, gates []int, clamp int) (*Result, error) {
	if len(energy) == 0 || len(energy) != len(gates) {
		return nil, fmt.Errorf("%w: profile has %d bins for %d gates", ErrInsufficientData, len(energy), len(gates))
	}

	profile := Normalize(energy)
	if floats.Max(profile) <= 0 {
		return nil, fmt.Errorf("%w: energy profile is zero", ErrInsufficientData)
	}

	hist := Rehistogram(profile)
	smoothed := MedianFilter(hist, MedianWindow)

	// A profile narrower than half the kernel is erased by the filter. Fall
	// back to the raw histogram so a lone peak is still found.
	curve := smoothed
	if floats.Max(smoothed) <= 0 {
		curve = hist
	}

	peak := floats.MaxIdx(curve)
	threshold := GrowthThreshold * curve[peak]
	lo, hi := Grow(curve, peak, threshold)

	if clamp >= 0 && lo <= clamp {
		lo = clamp + 1
	}

	res := &Result{
		MinIndex:   lo,
		Peak:       peak,
		Threshold:  threshold,
		ClampIndex: clamp,
		Gates:      append([]int(nil), gates...),
		Profile:    profile,
		Histogram:  hist,
		Smoothed:   smoothed,
	}
	res.MaxIndex = hi
	res.MaxGate = gates[hi]
	if lo < len(gates) {
		res.MinGate = gates[lo]
	} else {
		// Clamp moved the lower bound past every gate.
		res.MinGate = gates[len(gates)-1] + 1
	}
	return res, nil
}

// Normalize divides by the largest finite value. Non-finite inputs and
// outputs become zero.
func Normalize(energy []float64) []float64 {
	out := make([]float64, len(energy))
	for i, v := range energy {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[i] = v
		}
	}
	max := floats.Max(out)
	if max <= 0 {
		return out
	}
	floats.Scale(1/max, out)
	return out
}

// Rehistogram expands each bin's weight into floor(weight*1000) synthetic
// samples placed at the bin index, then histograms them over the same bins.
func Rehistogram(profile []float64) []float64 {
	var samples []float64
	for i, w := range profile {
		n := int(math.Floor(w * samplesPerUnit))
		for j := 0; j < n; j++ {
			samples = append(samples, float64(i))
		}
	}

	dividers := make([]float64, len(profile)+1)
	for i := range dividers {
		dividers[i] = float64(i) - 0.5
	}
	counts := make([]float64, len(profile))
	if len(samples) == 0 {
		return counts
	}
	return stat.Histogram(counts, dividers, samples, nil)
}

// MedianFilter applies a centred median filter of odd width k, padding the
// edges with zeros.
func MedianFilter(x []float64, k int) []float64 {
	if k < 1 {
		k = 1
	}
	if k%2 == 0 {
		k++
	}
	half := k / 2
	out := make([]float64, len(x))
	win := make([]float64, k)
	for i := range x {
		for j := 0; j < k; j++ {
			idx := i - half + j
			if idx >= 0 && idx < len(x) {
				win[j] = x[idx]
			} else {
				win[j] = 0
			}
		}
		sorted := append([]float64(nil), win...)
		sort.Float64s(sorted)
		out[i] = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	return out
}

// Grow extends [peak, peak] outward while neighbouring bins exceed
// threshold, stopping at the first bin on each side that does not.
func Grow(curve []float64, peak int, threshold float64) (lo, hi int) {
	lo, hi = peak, peak
	for lo-1 >= 0 && curve[lo-1] > threshold {
		lo--
	}
	for hi+1 < len(curve) && curve[hi+1] > threshold {
		hi++
	}
	return lo, hi
}

// ClampIndex returns the largest gate index at which any beam's slant range
// centre is below badRangeKm, or -1 when there is none.
func ClampIndex(slantRCenter [][]float64, badRangeKm float64) int {
	clamp := -1
	for _, row := range slantRCenter {
		for g, r := range row {
			if r < badRangeKm && g > clamp {
				clamp = g
			}
		}
	}
	return clamp
}
