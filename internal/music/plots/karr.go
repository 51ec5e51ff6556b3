package plots

import (
	"fmt"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/mstid/internal/music"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// KarrChart draws the wavenumber surface of ds as a heat map with the
// detected signals marked on top.
func KarrChart(ds *music.Dataset, k music.EventKey) *charts.HeatMap {
	nx, ny := len(ds.KxVec), len(ds.KyVec)

	lo, hi := math.Inf(1), math.Inf(-1)
	cells := make([]opts.HeatMapData, 0, nx*ny)
	for yi := 0; yi < ny; yi++ {
		for xi := 0; xi < nx; xi++ {
			i := yi*nx + xi
			if i >= len(ds.Karr) {
				break
			}
			v := ds.Karr[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			cells = append(cells, opts.HeatMapData{Value: [3]any{xi, yi, v}})
		}
	}
	if lo > hi {
		lo, hi = 0, 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "MUSIC " + k.String(), Width: "900px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s MUSIC karr", k.Site), Subtitle: fmt.Sprintf("%s dominant %.3f mHz, %d signals", k.Window(), ds.DominantFreq*1e3, len(ds.Signals))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "kx [1/km]", NameLocation: "middle", NameGap: 30, Data: axisLabels(ds.KxVec)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "ky [1/km]", NameLocation: "middle", NameGap: 45, Data: axisLabels(ds.KyVec)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(axisLabels(ds.KxVec))
	hm.AddSeries("karr", cells)

	if len(ds.Signals) > 0 {
		marks := make([]opts.ScatterData, 0, len(ds.Signals))
		for _, s := range ds.Signals {
			marks = append(marks, opts.ScatterData{
				Name:  fmt.Sprintf("#%d %.0f km %.0f deg", s.Order, s.Lambda, s.Azm),
				Value: []any{nearest(ds.KxVec, s.Kx), nearest(ds.KyVec, s.Ky), hi},
			})
		}
		sc := charts.NewScatter()
		sc.AddSeries("signals", marks,
			charts.WithScatterChartOpts(opts.ScatterChart{Symbol: "diamond", SymbolSize: 12}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ffffff"}),
		)
		hm.Overlap(sc)
	}
	return hm
}

func axisLabels(v []float64) []string {
	out := make([]string, len(v))
	for i, x := range v {
		out[i] = fmt.Sprintf("%.3f", x)
	}
	return out
}

// nearest returns the index of the element of v closest to x.
func nearest(v []float64, x float64) int {
	best, bestD := 0, math.Inf(1)
	for i, y := range v {
		if d := math.Abs(y - x); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
