package dsp

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mstid/internal/music"
)

// DefaultMaxOffTime is the longest data gap a good period may contain.
const DefaultMaxOffTime = 10 * time.Minute

// CheckDataQuality sets ds.Metadata.GoodPeriod: the period is good when no
// gap between consecutive samples inside (sTime, eTime), counting the window
// edges, exceeds maxOff.
func CheckDataQuality(ds *music.Dataset, sTime, eTime time.Time, maxOff time.Duration) bool {
	prev := sTime
	good := true
	for _, t := range ds.Time {
		if !t.After(sTime) || !t.Before(eTime) {
			continue
		}
		if t.Sub(prev) > maxOff {
			good = false
		}
		prev = t
	}
	if eTime.Sub(prev) > maxOff {
		good = false
	}
	ds.Metadata.GoodPeriod = good
	return good
}

// RTIStats summarises the raw data of an event.
type RTIStats struct {
	Count    float64 `json:"orig_rti_cnt"`
	Possible float64 `json:"orig_rti_possible"`
	Fraction float64 `json:"orig_rti_fraction"`
	Mean     float64 `json:"orig_rti_mean"`
	Median   float64 `json:"orig_rti_median"`
	Std      float64 `json:"orig_rti_std"`
}

// ComputeRTIStats summarises the original dataset over [sTime, eTime) and
// the beam and gate span of the active dataset. Mean, Median and Std are NaN
// when no sample is finite.
func ComputeRTIStats(ws *music.WorkingSet, sTime, eTime time.Time) RTIStats {
	orig, active := ws.Original(), ws.Active()
	if orig == nil || active == nil {
		return RTIStats{Mean: math.NaN(), Median: math.NaN(), Std: math.NaN()}
	}

	bLo, bHi := active.FOV.BeamRange()
	gLo, gHi := active.FOV.GateRange()
	if l := active.Metadata.BeamLimits; l != nil {
		bLo, bHi = max(bLo, l[0]), min(bHi, l[1])
	}
	if l := active.Metadata.GateLimits; l != nil {
		gLo, gHi = max(gLo, l[0]), min(gHi, l[1])
	}
	beamIdx := within(orig.FOV.Beams, &[2]int{bLo, bHi})
	gateIdx := within(orig.FOV.Gates, &[2]int{gLo, gHi})
	timeIdx := orig.TimeIndices(sTime, eTime)

	var vals []float64
	possible := len(timeIdx) * len(beamIdx) * len(gateIdx)
	for _, t := range timeIdx {
		for _, b := range beamIdx {
			for _, g := range gateIdx {
				if v := orig.Data.At(t, b, g); isFinite(v) {
					vals = append(vals, v)
				}
			}
		}
	}

	st := RTIStats{Count: float64(len(vals)), Possible: float64(possible)}
	if possible > 0 {
		st.Fraction = st.Count / st.Possible
	}
	if len(vals) == 0 {
		st.Mean, st.Median, st.Std = math.NaN(), math.NaN(), math.NaN()
		return st
	}
	st.Mean, st.Std = stat.PopMeanStdDev(vals, nil)
	st.Median = median(vals)
	return st
}
