// Package plots renders read-only figures for a finished event: the range
// distribution used by the auto-range detector, RTI panels of the raw data
// and an interactive chart of the wavenumber surface.
package plots

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/checkpoint"
)

var logf = monitoring.Component("Plots")

const (
	RangeDistributionFilename = "range_distribution.png"
	KarrChartFilename         = "karr.html"
)

// DefaultRTIBeams are the beams drawn as RTI panels when present.
var DefaultRTIBeams = []int{4, 7, 13}

// RTIFilename names the RTI panel for a beam.
func RTIFilename(beam int) string { return fmt.Sprintf("rti_beam%02d.png", beam) }

// Renderer draws every figure for an event into its directory.
type Renderer struct {
	Beams  []int
	Width  vg.Length
	Height vg.Length
}

// New returns a Renderer with the default beams and a 10x6 inch canvas.
func New() *Renderer {
	return &Renderer{Beams: DefaultRTIBeams, Width: 10 * vg.Inch, Height: 6 * vg.Inch}
}

// Plot renders all figures the working set supports. A figure that cannot be
// drawn does not stop the others; the failures are joined.
func (r *Renderer) Plot(store *checkpoint.Store, k music.EventKey, ws *music.WorkingSet) error {
	var errs []error

	if p, err := RangeDistribution(ws, k); err != nil {
		errs = append(errs, fmt.Errorf("range distribution: %w", err))
	} else if err := r.save(store, k, RangeDistributionFilename, p); err != nil {
		errs = append(errs, err)
	}

	for _, beam := range RTIBeams(ws.Original(), r.Beams) {
		p, err := RTI(ws, k, beam)
		if err != nil {
			errs = append(errs, fmt.Errorf("rti beam %d: %w", beam, err))
			continue
		}
		if err := r.save(store, k, RTIFilename(beam), p); err != nil {
			errs = append(errs, err)
		}
	}

	if act := ws.Active(); act != nil && len(act.Karr) > 0 {
		var buf bytes.Buffer
		if err := KarrChart(act, k).Render(&buf); err != nil {
			errs = append(errs, fmt.Errorf("karr chart: %w", err))
		} else if err := store.WriteFile(k, KarrChartFilename, buf.Bytes()); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		logf("%s: figures written to %s", k, store.EventDir(k))
	}
	return errors.Join(errs...)
}

func (r *Renderer) save(store *checkpoint.Store, k music.EventKey, name string, p *plot.Plot) error {
	w, h := r.Width, r.Height
	if w <= 0 || h <= 0 {
		w, h = 10*vg.Inch, 6*vg.Inch
	}
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return store.WriteFile(k, name, buf.Bytes())
}

// RTIBeams returns the requested beams present in ds, or the first FOV beam
// when none of them is.
func RTIBeams(ds *music.Dataset, want []int) []int {
	if ds == nil || len(ds.FOV.Beams) == 0 {
		return nil
	}
	var out []int
	for _, b := range want {
		if slices.Contains(ds.FOV.Beams, b) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		out = []int{ds.FOV.Beams[0]}
	}
	return out
}

var (
	bandColor   = color.RGBA{R: 255, G: 200, B: 0, A: 80}
	rawColor    = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	smoothColor = color.RGBA{R: 200, G: 30, B: 30, A: 255}
)
