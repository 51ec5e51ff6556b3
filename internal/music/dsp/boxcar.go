package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mstid/internal/music"
)

// boxcarMinValid is the number of finite cells a 3x3x3 neighbourhood must
// hold for its centre to survive the boxcar filter.
const boxcarMinValid = 4

// BoxcarFilter derives "boxcarFiltered": each cell becomes the median of the
// finite values in its 3x3x3 time/beam/gate neighbourhood, or NaN when fewer
// than four of them are finite. Isolated returns are removed and small gaps
// inside scatter regions are filled.
func BoxcarFilter(ws *music.WorkingSet) *music.Dataset {
	ds := ws.Active()
	nt, nb, ng := ds.Data.Shape()
	out := ds.Copy("boxcarFiltered", "Boxcar Filtered")
	out.Data = music.NewArray3(nt, nb, ng)

	win := make([]float64, 0, 27)
	for t := 0; t < nt; t++ {
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				win = win[:0]
				for dt := -1; dt <= 1; dt++ {
					for db := -1; db <= 1; db++ {
						for dg := -1; dg <= 1; dg++ {
							tt, bb, gg := t+dt, b+db, g+dg
							if tt < 0 || tt >= nt || bb < 0 || bb >= nb || gg < 0 || gg >= ng {
								continue
							}
							if v := ds.Data.At(tt, bb, gg); isFinite(v) {
								win = append(win, v)
							}
						}
					}
				}
				if len(win) < boxcarMinValid {
					out.Data.Set(t, b, g, math.NaN())
					continue
				}
				out.Data.Set(t, b, g, median(win))
			}
		}
	}
	return ws.Add(out)
}

// median sorts x in place and returns its median, averaging the two middle
// values for even lengths.
func median(x []float64) float64 {
	sort.Float64s(x)
	n := len(x)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, x, nil)
	}
	return (x[n/2-1] + x[n/2]) / 2
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
