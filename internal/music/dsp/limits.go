// Package dsp implements the array transforms that move an event from raw
// range-time data to a frequency-domain spectrum: limits, boxcar despiking,
// beam and time interpolation, band-pass filtering, detrending, tapering,
// zero padding and the FFT. Every transform that changes Data derives a new
// named Dataset in the WorkingSet and makes it active.
package dsp

import (
	"errors"
	"fmt"

	"github.com/banshee-data/mstid/internal/music"
)

// ErrEmptySelection is returned when limits exclude every beam or gate.
var ErrEmptySelection = errors.New("limits select no cells")

// DefineLimits records inclusive gate and beam limits on the active dataset.
// A nil argument leaves that limit unchanged. The data is not touched until
// ApplyLimits.
func DefineLimits(ws *music.WorkingSet, gates, beams *[2]int) {
	ds := ws.Active()
	if ds == nil {
		return
	}
	if gates != nil {
		g := *gates
		ds.Metadata.GateLimits = &g
	}
	if beams != nil {
		b := *beams
		ds.Metadata.BeamLimits = &b
	}
}

// ApplyLimits derives "limitsApplied", keeping only the beams and gates
// inside the active dataset's recorded limits.
func ApplyLimits(ws *music.WorkingSet) (*music.Dataset, error) {
	ds := ws.Active()
	if ds == nil {
		return nil, fmt.Errorf("apply limits: no active dataset")
	}
	beamIdx := within(ds.FOV.Beams, ds.Metadata.BeamLimits)
	gateIdx := within(ds.FOV.Gates, ds.Metadata.GateLimits)
	if len(beamIdx) == 0 || len(gateIdx) == 0 {
		return nil, fmt.Errorf("apply limits (beams %v, gates %v): %w",
			fmtLimits(ds.Metadata.BeamLimits), fmtLimits(ds.Metadata.GateLimits), ErrEmptySelection)
	}

	out := ds.Copy("limitsApplied", "Limits Applied")
	tIdx := make([]int, ds.Data.NT)
	for i := range tIdx {
		tIdx[i] = i
	}
	out.Data = selectCells(ds.Data, tIdx, beamIdx, gateIdx)
	out.FOV = ds.FOV.Select(beamIdx, gateIdx)
	out.Terminator = nil
	return ws.Add(out), nil
}

// within returns the indices of values inside the inclusive limits, or all
// indices when limits is nil.
func within(values []int, limits *[2]int) []int {
	idx := make([]int, 0, len(values))
	for i, v := range values {
		if limits == nil || (v >= limits[0] && v <= limits[1]) {
			idx = append(idx, i)
		}
	}
	return idx
}

func selectCells(a music.Array3, tIdx, bIdx, gIdx []int) music.Array3 {
	out := music.NewArray3(len(tIdx), len(bIdx), len(gIdx))
	for ti, t := range tIdx {
		for bi, b := range bIdx {
			for gi, g := range gIdx {
				out.Set(ti, bi, gi, a.At(t, b, g))
			}
		}
	}
	return out
}

func fmtLimits(l *[2]int) string {
	if l == nil {
		return "none"
	}
	return fmt.Sprintf("%d-%d", l[0], l[1])
}
