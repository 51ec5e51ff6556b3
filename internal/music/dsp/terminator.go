package dsp

import (
	"math"
	"time"

	"github.com/banshee-data/mstid/internal/music"
)

// CalculateTerminator fills the active dataset's Terminator with the
// sunlit flag of every (time, beam, gate) cell. Datasets without cell
// coordinates get a nil Terminator.
func CalculateTerminator(ws *music.WorkingSet) {
	ds := ws.Active()
	if ds == nil {
		return
	}
	nt, nb, ng := ds.Data.Shape()
	if len(ds.FOV.LatCenter) != nb || len(ds.FOV.LonCenter) != nb {
		ds.Terminator = nil
		return
	}
	term := make([]bool, nt*nb*ng)
	for t := 0; t < nt; t++ {
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				z := SolarZenith(ds.Time[t], ds.FOV.LatCenter[b][g], ds.FOV.LonCenter[b][g])
				term[ds.Data.Index(t, b, g)] = z < 90
			}
		}
	}
	ds.Terminator = term
}

// SolarZenith returns the solar zenith angle in degrees at a ground point,
// using the low-precision NOAA solar position approximation.
func SolarZenith(t time.Time, latDeg, lonDeg float64) float64 {
	t = t.UTC()
	doy := float64(t.YearDay())
	hours := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600

	// Fractional year in radians.
	g := 2 * math.Pi / 365 * (doy - 1 + (hours-12)/24)

	decl := 0.006918 - 0.399912*math.Cos(g) + 0.070257*math.Sin(g) -
		0.006758*math.Cos(2*g) + 0.000907*math.Sin(2*g) -
		0.002697*math.Cos(3*g) + 0.00148*math.Sin(3*g)
	eqTime := 229.18 * (0.000075 + 0.001868*math.Cos(g) - 0.032077*math.Sin(g) -
		0.014615*math.Cos(2*g) - 0.040849*math.Sin(2*g)) // minutes

	trueSolarMin := hours*60 + eqTime + 4*lonDeg
	ha := (trueSolarMin/4 - 180) * math.Pi / 180

	lat := latDeg * math.Pi / 180
	cosZ := math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Cos(ha)
	cosZ = math.Max(-1, math.Min(1, cosZ))
	return math.Acos(cosZ) * 180 / math.Pi
}
