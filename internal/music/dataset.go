package music

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// NoDataMessage is the message a load service records when the requested
// window holds no radar data.
const NoDataMessage = "No data for this time period."

// Array3 is a dense time x beam x gate array stored row-major.
type Array3 struct {
	NT, NB, NG int
	Values     []float64
}

// NewArray3 allocates a zeroed array.
func NewArray3(nt, nb, ng int) Array3 {
	return Array3{NT: nt, NB: nb, NG: ng, Values: make([]float64, nt*nb*ng)}
}

// Index returns the flat offset of (t, b, g).
func (a Array3) Index(t, b, g int) int { return (t*a.NB+b)*a.NG + g }

// At returns the value at (t, b, g).
func (a Array3) At(t, b, g int) float64 { return a.Values[a.Index(t, b, g)] }

// Set stores v at (t, b, g).
func (a Array3) Set(t, b, g int, v float64) { a.Values[a.Index(t, b, g)] = v }

// Shape returns (NT, NB, NG).
func (a Array3) Shape() (int, int, int) { return a.NT, a.NB, a.NG }

// Series copies the time series for one cell.
func (a Array3) Series(b, g int) []float64 {
	out := make([]float64, a.NT)
	for t := 0; t < a.NT; t++ {
		out[t] = a.At(t, b, g)
	}
	return out
}

// SetSeries writes a time series back into one cell. len(s) must equal NT.
func (a Array3) SetSeries(b, g int, s []float64) {
	for t := 0; t < a.NT; t++ {
		a.Set(t, b, g, s[t])
	}
}

// Clone returns a deep copy.
func (a Array3) Clone() Array3 {
	v := make([]float64, len(a.Values))
	copy(v, a.Values)
	return Array3{NT: a.NT, NB: a.NB, NG: a.NG, Values: v}
}

// FOV is the field-of-view geometry for the beams and gates of a dataset.
// Two-dimensional fields are indexed [beam][gate].
type FOV struct {
	Beams        []int
	Gates        []int
	SlantRCenter [][]float64 // km, after the scatter mapping model
	LatCenter    [][]float64
	LonCenter    [][]float64

	// Cell position relative to the array centre in km, set by the
	// relative-position step of the interpolation stage.
	RelX [][]float64
	RelY [][]float64
}

// Clone returns a deep copy.
func (f FOV) Clone() FOV {
	return FOV{
		Beams:        append([]int(nil), f.Beams...),
		Gates:        append([]int(nil), f.Gates...),
		SlantRCenter: clone2(f.SlantRCenter),
		LatCenter:    clone2(f.LatCenter),
		LonCenter:    clone2(f.LonCenter),
		RelX:         clone2(f.RelX),
		RelY:         clone2(f.RelY),
	}
}

// Select returns the sub-geometry for the given beam and gate indices.
func (f FOV) Select(beamIdx, gateIdx []int) FOV {
	out := FOV{
		Beams: make([]int, len(beamIdx)),
		Gates: make([]int, len(gateIdx)),
	}
	for i, b := range beamIdx {
		out.Beams[i] = f.Beams[b]
	}
	for i, g := range gateIdx {
		out.Gates[i] = f.Gates[g]
	}
	out.SlantRCenter = select2(f.SlantRCenter, beamIdx, gateIdx)
	out.LatCenter = select2(f.LatCenter, beamIdx, gateIdx)
	out.LonCenter = select2(f.LonCenter, beamIdx, gateIdx)
	out.RelX = select2(f.RelX, beamIdx, gateIdx)
	out.RelY = select2(f.RelY, beamIdx, gateIdx)
	return out
}

// GateRange returns the smallest and largest gate numbers in the FOV.
func (f FOV) GateRange() (int, int) { return minMax(f.Gates) }

// BeamRange returns the smallest and largest beam numbers in the FOV.
func (f FOV) BeamRange() (int, int) { return minMax(f.Beams) }

// Metadata describes how a dataset was acquired and limited.
type Metadata struct {
	Site       string
	STime      time.Time
	ETime      time.Time
	GoodPeriod bool
	FovModel   string
	Gscat      int

	// Limits are inclusive gate/beam numbers; nil means unlimited.
	GateLimits *[2]int
	BeamLimits *[2]int
}

// Dataset is one named snapshot of the working data. Stages never modify Data
// or Time of a Dataset once it is in a WorkingSet; they derive a new one.
// Derived annotations (relative geometry, terminator, quality flag, spectrum
// and wavenumber results) are filled in on the active dataset.
type Dataset struct {
	Name    string
	Comment string

	Time     []time.Time
	Data     Array3
	FOV      FOV
	Metadata Metadata

	// Terminator is true where the cell is sunlit, shaped like Data.
	Terminator []bool

	// Frequency domain, filled by the fft stage. Spectrum is NF x NB x NG.
	Freqs    []float64
	Spectrum []complex128

	// Wavenumber domain, filled by the music stage.
	DominantFreq float64
	DlmSize      int
	Dlm          []complex128
	KxVec        []float64
	KyVec        []float64
	Karr         []float64 // len(KyVec) rows x len(KxVec) columns
	Signals      []SignalDescriptor
}

// Copy returns a deep copy renamed for the next stage.
func (d *Dataset) Copy(name, comment string) *Dataset {
	out := &Dataset{
		Name:         name,
		Comment:      comment,
		Time:         append([]time.Time(nil), d.Time...),
		Data:         d.Data.Clone(),
		FOV:          d.FOV.Clone(),
		Metadata:     d.Metadata,
		Terminator:   append([]bool(nil), d.Terminator...),
		Freqs:        append([]float64(nil), d.Freqs...),
		Spectrum:     append([]complex128(nil), d.Spectrum...),
		DominantFreq: d.DominantFreq,
		DlmSize:      d.DlmSize,
		Dlm:          append([]complex128(nil), d.Dlm...),
		KxVec:        append([]float64(nil), d.KxVec...),
		KyVec:        append([]float64(nil), d.KyVec...),
		Karr:         append([]float64(nil), d.Karr...),
		Signals:      append([]SignalDescriptor(nil), d.Signals...),
	}
	if d.Metadata.GateLimits != nil {
		gl := *d.Metadata.GateLimits
		out.Metadata.GateLimits = &gl
	}
	if d.Metadata.BeamLimits != nil {
		bl := *d.Metadata.BeamLimits
		out.Metadata.BeamLimits = &bl
	}
	return out
}

// SamplePeriod returns the median spacing of the time vector, or zero when
// there are fewer than two samples.
func (d *Dataset) SamplePeriod() time.Duration {
	if len(d.Time) < 2 {
		return 0
	}
	diffs := make([]time.Duration, len(d.Time)-1)
	for i := 1; i < len(d.Time); i++ {
		diffs[i-1] = d.Time[i].Sub(d.Time[i-1])
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i] < diffs[j] })
	return diffs[len(diffs)/2]
}

// TimeIndices returns the indices with sTime <= t < eTime.
func (d *Dataset) TimeIndices(sTime, eTime time.Time) []int {
	var idx []int
	for i, t := range d.Time {
		if !t.Before(sTime) && t.Before(eTime) {
			idx = append(idx, i)
		}
	}
	return idx
}

// WorkingSet is the ordered history of an event's datasets. The last added
// dataset is active unless SetActive moves the pointer back.
type WorkingSet struct {
	Site     string
	STime    time.Time
	ETime    time.Time
	Messages []string
	Sets     []*Dataset
	Current  int
}

// NewWorkingSet creates an empty history for an event.
func NewWorkingSet(site string, sTime, eTime time.Time) *WorkingSet {
	return &WorkingSet{Site: site, STime: sTime, ETime: eTime, Current: -1}
}

// Add appends ds under the next serial name (DS000_x, DS001_y, ...) and makes
// it active.
func (w *WorkingSet) Add(ds *Dataset) *Dataset {
	base := ds.Name
	if i := strings.Index(base, "_"); strings.HasPrefix(base, "DS") && i > 0 {
		base = base[i+1:]
	}
	ds.Name = fmt.Sprintf("DS%03d_%s", len(w.Sets), base)
	w.Sets = append(w.Sets, ds)
	w.Current = len(w.Sets) - 1
	return ds
}

// Derive copies the active dataset under a new name and adds it.
func (w *WorkingSet) Derive(name, comment string) *Dataset {
	return w.Add(w.Active().Copy(name, comment))
}

// Active returns the active dataset, or nil for an empty history.
func (w *WorkingSet) Active() *Dataset {
	if w == nil || w.Current < 0 || w.Current >= len(w.Sets) {
		return nil
	}
	return w.Sets[w.Current]
}

// Original returns the first dataset in the history.
func (w *WorkingSet) Original() *Dataset {
	if w == nil || len(w.Sets) == 0 {
		return nil
	}
	return w.Sets[0]
}

// Get finds a dataset by full serial name ("DS002_beamInterpolated") or by
// its unprefixed name ("beamInterpolated"). The most recent match wins.
func (w *WorkingSet) Get(name string) *Dataset {
	for i := len(w.Sets) - 1; i >= 0; i-- {
		n := w.Sets[i].Name
		if n == name || strings.HasSuffix(n, "_"+name) {
			return w.Sets[i]
		}
	}
	return nil
}

// SetActive moves the active pointer to the named dataset.
func (w *WorkingSet) SetActive(name string) error {
	for i := len(w.Sets) - 1; i >= 0; i-- {
		n := w.Sets[i].Name
		if n == name || strings.HasSuffix(n, "_"+name) {
			w.Current = i
			return nil
		}
	}
	return fmt.Errorf("dataset %q not found", name)
}

// Names lists the dataset names in history order.
func (w *WorkingSet) Names() []string {
	out := make([]string, len(w.Sets))
	for i, ds := range w.Sets {
		out[i] = ds.Name
	}
	return out
}

// HasMessage reports whether msg was recorded by the load step.
func (w *WorkingSet) HasMessage(msg string) bool {
	if w == nil {
		return false
	}
	for _, m := range w.Messages {
		if m == msg {
			return true
		}
	}
	return false
}

func clone2(src [][]float64) [][]float64 {
	if src == nil {
		return nil
	}
	out := make([][]float64, len(src))
	for i := range src {
		out[i] = append([]float64(nil), src[i]...)
	}
	return out
}

func select2(src [][]float64, rows, cols []int) [][]float64 {
	if len(src) == 0 {
		return nil
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, len(cols))
		for j, c := range cols {
			out[i][j] = src[r][c]
		}
	}
	return out
}

func minMax(v []int) (int, int) {
	if len(v) == 0 {
		return 0, 0
	}
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}
