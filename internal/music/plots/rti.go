package plots

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/mstid/internal/music"
)

const (
	// MinRTISpan is the shortest time axis drawn on an RTI panel.
	MinRTISpan = 4 * time.Hour

	// RTIGateMargin is the number of gates drawn either side of the gate limits.
	RTIGateMargin = 10
)

// rtiGrid adapts one beam of a dataset to plotter.GridXYZ. Columns are
// samples, rows are gates.
type rtiGrid struct {
	ds   *music.Dataset
	beam int // index into FOV.Beams
}

func (g rtiGrid) Dims() (c, r int) { return len(g.ds.Time), len(g.ds.FOV.Gates) }
func (g rtiGrid) Z(c, r int) float64 { return g.ds.Data.At(c, g.beam, r) }
func (g rtiGrid) X(c int) float64  { return float64(g.ds.Time[c].Unix()) }
func (g rtiGrid) Y(r int) float64  { return float64(g.ds.FOV.Gates[r]) }

func (g rtiGrid) extent() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	c, r := g.Dims()
	for i := 0; i < c; i++ {
		for j := 0; j < r; j++ {
			v := g.Z(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if lo > hi {
		return 0, 1
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}

func (g rtiGrid) Min() float64 { lo, _ := g.extent(); return lo }
func (g rtiGrid) Max() float64 { _, hi := g.extent(); return hi }

// RTI plots range against time for one beam of the original dataset.
func RTI(ws *music.WorkingSet, k music.EventKey, beam int) (*plot.Plot, error) {
	ds := ws.Original()
	if ds == nil {
		return nil, fmt.Errorf("no data")
	}
	bi := slices.Index(ds.FOV.Beams, beam)
	if bi < 0 {
		return nil, fmt.Errorf("beam %d not in field of view", beam)
	}
	if len(ds.Time) < 2 || len(ds.FOV.Gates) < 2 {
		return nil, fmt.Errorf("too few samples for an RTI panel")
	}

	grid := rtiGrid{ds: ds, beam: bi}
	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	hm.NaN = color.Transparent

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s beam %d %s", k.Site, beam, k.Window())
	p.X.Label.Text = "Time [UT]"
	p.Y.Label.Text = "Range gate"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04"}
	p.Add(hm)

	lo, hi := TimeAxis(ds.Time[0], ds.Time[len(ds.Time)-1])
	p.X.Min, p.X.Max = float64(lo.Unix()), float64(hi.Unix())

	var limits *[2]int
	if act := ws.Active(); act != nil {
		limits = act.Metadata.GateLimits
	}
	gMin, gMax := GateAxis(ds.FOV, limits)
	p.Y.Min, p.Y.Max = float64(gMin)-0.5, float64(gMax)+0.5

	for _, t := range []time.Time{k.STime, k.ETime} {
		x := float64(t.Unix())
		line, err := plotter.NewLine(plotter.XYs{{X: x, Y: p.Y.Min}, {X: x, Y: p.Y.Max}})
		if err != nil {
			return nil, err
		}
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
	}
	return p, nil
}

// TimeAxis returns the drawn time range, widened evenly about its centre to
// at least MinRTISpan.
func TimeAxis(start, end time.Time) (time.Time, time.Time) {
	span := end.Sub(start)
	if span >= MinRTISpan {
		return start, end
	}
	pad := (MinRTISpan - span) / 2
	return start.Add(-pad), end.Add(MinRTISpan - span - pad)
}

// GateAxis returns the drawn gate range: the limits widened by
// RTIGateMargin and clamped to the field of view, or the whole field of view
// without limits.
func GateAxis(fov music.FOV, limits *[2]int) (int, int) {
	lo, hi := fov.GateRange()
	if limits == nil {
		return lo, hi
	}
	return max(lo, limits[0]-RTIGateMargin), min(hi, limits[1]+RTIGateMargin)
}
