package dsp

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/mstid/internal/music"
)

// EarthRadiusKm is the mean Earth radius used for cell geometry.
const EarthRadiusKm = 6371.0

// BeamInterpolation derives "beamInterpolated": for every time and gate,
// missing cells between two valid beams are filled by linear interpolation
// over beam number. Cells outside the valid span stay NaN.
func BeamInterpolation(ws *music.WorkingSet) *music.Dataset {
	ds := ws.Active()
	nt, nb, ng := ds.Data.Shape()
	out := ds.Copy("beamInterpolated", "Beam Linear Interpolation")

	xs := make([]float64, nb)
	for i, b := range ds.FOV.Beams {
		xs[i] = float64(b)
	}
	ys := make([]float64, nb)
	for t := 0; t < nt; t++ {
		for g := 0; g < ng; g++ {
			for b := 0; b < nb; b++ {
				ys[b] = ds.Data.At(t, b, g)
			}
			filled := interpMissing(xs, ys, xs)
			for b := 0; b < nb; b++ {
				out.Data.Set(t, b, g, filled[b])
			}
		}
	}
	return ws.Add(out)
}

// TimeInterpolation derives "timeInterpolated", resampling every cell onto a
// uniform grid of step res starting at the first sample. Grid points outside
// a cell's valid samples are NaN.
func TimeInterpolation(ws *music.WorkingSet, res time.Duration) (*music.Dataset, error) {
	if res <= 0 {
		return nil, fmt.Errorf("time interpolation: resolution must be positive, got %s", res)
	}
	ds := ws.Active()
	nt, nb, ng := ds.Data.Shape()
	if nt == 0 {
		return nil, fmt.Errorf("time interpolation: no samples")
	}

	t0 := ds.Time[0]
	span := ds.Time[nt-1].Sub(t0)
	n := int(span/res) + 1
	grid := make([]time.Time, n)
	gx := make([]float64, n)
	for i := range grid {
		grid[i] = t0.Add(time.Duration(i) * res)
		gx[i] = grid[i].Sub(t0).Seconds()
	}
	xs := make([]float64, nt)
	for i, t := range ds.Time {
		xs[i] = t.Sub(t0).Seconds()
	}

	out := ds.Copy("timeInterpolated", "Time Linear Interpolation")
	out.Time = grid
	out.Data = music.NewArray3(n, nb, ng)
	out.Terminator = nil
	for b := 0; b < nb; b++ {
		for g := 0; g < ng; g++ {
			out.Data.SetSeries(b, g, interpMissing(xs, ds.Data.Series(b, g), gx))
		}
	}
	return ws.Add(out), nil
}

// NanToNum derives "nan_to_num", replacing NaN with zero and infinities with
// the largest finite values.
func NanToNum(ws *music.WorkingSet) *music.Dataset {
	out := ws.Active().Copy("nan_to_num", "Converted NaN to Number")
	for i, v := range out.Data.Values {
		switch {
		case math.IsNaN(v):
			out.Data.Values[i] = 0
		case math.IsInf(v, 1):
			out.Data.Values[i] = math.MaxFloat64
		case math.IsInf(v, -1):
			out.Data.Values[i] = -math.MaxFloat64
		}
	}
	return ws.Add(out)
}

// DetermineRelativePosition fills FOV.RelX and FOV.RelY of the active
// dataset with each cell's east and north offset in km from the centre cell.
func DetermineRelativePosition(ws *music.WorkingSet) error {
	ds := ws.Active()
	nb, ng := len(ds.FOV.Beams), len(ds.FOV.Gates)
	if len(ds.FOV.LatCenter) != nb || len(ds.FOV.LonCenter) != nb || nb == 0 || ng == 0 {
		return fmt.Errorf("relative position: fov has no cell coordinates")
	}
	ctrB, ctrG := nb/2, ng/2
	lat0, lon0 := ds.FOV.LatCenter[ctrB][ctrG], ds.FOV.LonCenter[ctrB][ctrG]

	relX := make([][]float64, nb)
	relY := make([][]float64, nb)
	for b := 0; b < nb; b++ {
		relX[b] = make([]float64, ng)
		relY[b] = make([]float64, ng)
		for g := 0; g < ng; g++ {
			d, az := GreatCircle(lat0, lon0, ds.FOV.LatCenter[b][g], ds.FOV.LonCenter[b][g])
			relX[b][g] = d * math.Sin(az)
			relY[b][g] = d * math.Cos(az)
		}
	}
	ds.FOV.RelX, ds.FOV.RelY = relX, relY
	return nil
}

// GreatCircle returns the distance in km and the initial bearing in radians
// east of north from (lat1, lon1) to (lat2, lon2), all in degrees.
func GreatCircle(lat1, lon1, lat2, lon2 float64) (distKm, azimuth float64) {
	p1, p2 := lat1*math.Pi/180, lat2*math.Pi/180
	dl := (lon2 - lon1) * math.Pi / 180
	dp := p2 - p1

	a := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	distKm = 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))

	y := math.Sin(dl) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dl)
	azimuth = math.Atan2(y, x)
	return distKm, azimuth
}

// interpMissing linearly interpolates the finite (x, y) pairs at each point
// of at. xs must be increasing. Points outside the finite span are NaN.
func interpMissing(xs, ys, at []float64) []float64 {
	fx := make([]float64, 0, len(xs))
	fy := make([]float64, 0, len(ys))
	for i := range xs {
		if isFinite(ys[i]) {
			fx = append(fx, xs[i])
			fy = append(fy, ys[i])
		}
	}
	out := make([]float64, len(at))
	j := 0
	for i, x := range at {
		if len(fx) == 0 || x < fx[0] || x > fx[len(fx)-1] {
			out[i] = math.NaN()
			continue
		}
		for j+1 < len(fx) && fx[j+1] < x {
			j++
		}
		if fx[j] == x || j+1 >= len(fx) {
			out[i] = fy[j]
			continue
		}
		if fx[j+1] == x {
			out[i] = fy[j+1]
			continue
		}
		w := (x - fx[j]) / (fx[j+1] - fx[j])
		out[i] = fy[j] + w*(fy[j+1]-fy[j])
	}
	return out
}
