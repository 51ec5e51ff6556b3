package plots

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/autorange"
)

// rangeSource is the dataset the auto-range detector saw: the despiked data
// when present, else the original.
func rangeSource(ws *music.WorkingSet) *music.Dataset {
	if ds := ws.Get("boxcarFiltered"); ds != nil {
		return ds
	}
	return ws.Original()
}

// RangeDistribution plots the normalised energy per gate and its smoothed
// histogram, shading the gate limits selected for the event.
func RangeDistribution(ws *music.WorkingSet, k music.EventKey) (*plot.Plot, error) {
	ds := rangeSource(ws)
	if ds == nil {
		return nil, fmt.Errorf("no data")
	}
	res, err := autorange.Detect(ds, k.STime, k.ETime, nil)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s range distribution %s", k.Site, k.Window())
	p.X.Label.Text = "Range gate"
	p.Y.Label.Text = "Normalized energy"
	p.Y.Min, p.Y.Max = 0, 1.05

	raw := make(plotter.XYs, len(res.Gates))
	smooth := make(plotter.XYs, len(res.Gates))
	peak := floats.Max(res.Smoothed)
	for i, g := range res.Gates {
		raw[i] = plotter.XY{X: float64(g), Y: res.Profile[i]}
		smooth[i] = plotter.XY{X: float64(g), Y: 0}
		if peak > 0 {
			smooth[i].Y = res.Smoothed[i] / peak
		}
	}

	if lim := ws.Active().Metadata.GateLimits; lim != nil {
		lo, hi := float64(lim[0])-0.5, float64(lim[1])+0.5
		band, err := plotter.NewPolygon(plotter.XYs{{X: lo, Y: 0}, {X: hi, Y: 0}, {X: hi, Y: 1.05}, {X: lo, Y: 1.05}})
		if err != nil {
			return nil, err
		}
		band.Color = bandColor
		band.LineStyle.Width = 0
		p.Add(band)
		p.Legend.Add(fmt.Sprintf("gates %d-%d", lim[0], lim[1]), band)
	}

	rawLine, err := plotter.NewLine(raw)
	if err != nil {
		return nil, err
	}
	rawLine.Color = rawColor
	rawLine.Width = vg.Points(1)
	p.Add(rawLine)
	p.Legend.Add("energy", rawLine)

	smoothLine, err := plotter.NewLine(smooth)
	if err != nil {
		return nil, err
	}
	smoothLine.Color = smoothColor
	smoothLine.Width = vg.Points(1.5)
	p.Add(smoothLine)
	p.Legend.Add("median filtered", smoothLine)

	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
