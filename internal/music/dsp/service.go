package dsp

import (
	"fmt"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/music"
)

var logf = monitoring.Component("DSP")

// Service runs the transform stages in their fixed order.
type Service struct{}

// Despike applies the boxcar filter.
func (Service) Despike(ws *music.WorkingSet) error {
	if ws.Active() == nil {
		return fmt.Errorf("despike: no active dataset")
	}
	BoxcarFilter(ws)
	return nil
}

// Interpolate moves the active dataset from range-time data to a uniform,
// gap-free grid: limits, beam interpolation, relative geometry, time
// interpolation, NaN removal and the terminator.
func (Service) Interpolate(ws *music.WorkingSet, cfg *config.RunConfig) error {
	if _, err := ApplyLimits(ws); err != nil {
		return err
	}
	BeamInterpolation(ws)
	if err := DetermineRelativePosition(ws); err != nil {
		return err
	}
	if _, err := TimeInterpolation(ws, cfg.GetInterpResolution()); err != nil {
		return err
	}
	NanToNum(ws)
	CalculateTerminator(ws)
	logf("%s: interpolated to %d samples at %s", ws.Site, ws.Active().Data.NT, cfg.GetInterpResolution())
	return nil
}

// Spectrum prepares the interpolated data and computes its spectrum:
// band-pass filter, detrend, time and space tapering, zero padding and FFT,
// each step optional per cfg.
func (Service) Spectrum(ws *music.WorkingSet, cfg *config.RunConfig) error {
	if n := cfg.GetFilterNumtaps(); n > 0 {
		if _, err := BandPass(ws, n, cfg.GetFilterCutoffLow(), cfg.GetFilterCutoffHigh(), ws.STime, ws.ETime); err != nil {
			return err
		}
	}
	if cfg.GetDetrend() {
		Detrend(ws)
	}
	CalculateTerminator(ws)
	if cfg.GetHanningWindowTime() {
		WindowTime(ws)
	}
	if cfg.GetHanningWindowSpace() {
		WindowBeamGate(ws)
	}
	if cfg.GetZeropad() {
		ZeroPad(ws)
	}
	CalculateTerminator(ws)
	if err := CalculateFFT(ws); err != nil {
		return err
	}
	logf("%s: spectrum over %d bins, dominant %.3f mHz", ws.Site, len(ws.Active().Freqs), ws.Active().DominantFreq*1000)
	return nil
}
