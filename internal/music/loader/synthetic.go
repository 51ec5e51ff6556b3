package loader

import (
	"math"
	"strings"
	"time"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/dsp"
)

// Site is a radar location and its boresight in degrees east of north.
type Site struct {
	Lat, Lon, Boresight float64
}

// Sites holds the locations the synthetic generator knows by name.
var Sites = map[string]Site{
	"bks": {37.10, -77.95, -40},
	"cve": {43.27, -120.36, 54},
	"cvw": {43.27, -120.36, -34},
	"fhe": {38.86, -99.39, 45},
	"fhw": {38.86, -99.39, -25},
	"gbr": {53.32, -60.46, 5},
	"kap": {49.39, -82.32, -12},
	"pgr": {53.98, -122.59, -5},
	"sas": {52.16, -106.53, 23},
	"wal": {37.93, -75.47, 35},
}

// Wave is a travelling plane wave in backscatter power.
type Wave struct {
	Kx, Ky    float64 // 1/km, east and north
	Freq      float64 // Hz
	Amplitude float64
}

// Synthetic generates deterministic backscatter for any site and window:
// a constant background with travelling waves on the gates inside Band and
// no scatter elsewhere.
type Synthetic struct {
	Beams      int
	Gates      int
	Step       time.Duration
	Band       [2]int
	Background float64
	Waves      []Wave

	// Gaps are [start, end) intervals with no samples.
	Gaps [][2]time.Time
}

// DefaultSynthetic is a 16 beam, 75 gate radar scanning every two minutes
// with one 280 km, 21 minute wave between gates 20 and 50.
func DefaultSynthetic() Synthetic {
	return Synthetic{
		Beams:      16,
		Gates:      75,
		Step:       2 * time.Minute,
		Band:       [2]int{20, 50},
		Background: 20,
		Waves:      []Wave{{Kx: 0.01, Ky: 0.02, Freq: 0.0008, Amplitude: 5}},
	}
}

const (
	beamSepDeg   = 3.24
	firstRangeKm = 180
	rangeSepKm   = 45
)

// Load generates the load window of k and assembles it like archived data.
func (s Synthetic) Load(k music.EventKey, cfg *config.RunConfig) (*music.WorkingSet, error) {
	loadS, loadE := LoadWindow(k, cfg)
	return Assemble(k, cfg, []*Archive{s.Generate(k.Site, loadS, loadE)})
}

// Generate returns an archive with samples on the Step grid in [sTime, eTime].
func (s Synthetic) Generate(site string, sTime, eTime time.Time) *Archive {
	loc, ok := Sites[strings.ToLower(site)]
	if !ok {
		loc = Site{Lat: 40, Lon: -100}
	}
	step := s.Step
	if step <= 0 {
		step = 2 * time.Minute
	}
	nb, ng := max(s.Beams, 1), max(s.Gates, 1)

	fov := music.FOV{Beams: make([]int, nb), Gates: make([]int, ng)}
	fov.SlantRCenter = make([][]float64, nb)
	fov.LatCenter = make([][]float64, nb)
	fov.LonCenter = make([][]float64, nb)
	x := make([][]float64, nb)
	y := make([][]float64, nb)
	for b := 0; b < nb; b++ {
		fov.Beams[b] = b
		fov.SlantRCenter[b] = make([]float64, ng)
		fov.LatCenter[b] = make([]float64, ng)
		fov.LonCenter[b] = make([]float64, ng)
		x[b] = make([]float64, ng)
		y[b] = make([]float64, ng)
		az := loc.Boresight + (float64(b)-float64(nb-1)/2)*beamSepDeg
		for g := 0; g < ng; g++ {
			r := firstRangeKm + rangeSepKm*float64(g)
			lat, lon := destination(loc.Lat, loc.Lon, az, r)
			fov.SlantRCenter[b][g] = r
			fov.LatCenter[b][g] = lat
			fov.LonCenter[b][g] = lon
			x[b][g] = r * math.Sin(az*math.Pi/180)
			y[b][g] = r * math.Cos(az*math.Pi/180)
		}
	}
	for g := range fov.Gates {
		fov.Gates[g] = g
	}

	var times []time.Time
	t := sTime.Truncate(step)
	if t.Before(sTime) {
		t = t.Add(step)
	}
	for ; !t.After(eTime); t = t.Add(step) {
		if !s.inGap(t) {
			times = append(times, t.UTC())
		}
	}

	data := music.NewArray3(len(times), nb, ng)
	for i, ts := range times {
		sec := float64(ts.Unix())
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				if g < s.Band[0] || g > s.Band[1] {
					data.Set(i, b, g, math.NaN())
					continue
				}
				v := s.Background
				for _, w := range s.Waves {
					v += w.Amplitude * math.Cos(2*math.Pi*w.Freq*sec-(w.Kx*x[b][g]+w.Ky*y[b][g]))
				}
				data.Set(i, b, g, v)
			}
		}
	}
	return &Archive{Site: strings.ToLower(site), FovModel: "GS", Time: times, FOV: fov, Data: data}
}

func (s Synthetic) inGap(t time.Time) bool {
	for _, g := range s.Gaps {
		if !t.Before(g[0]) && t.Before(g[1]) {
			return true
		}
	}
	return false
}

// destination returns the point distKm from (lat, lon) along bearing azDeg.
func destination(lat, lon, azDeg, distKm float64) (float64, float64) {
	p1 := lat * math.Pi / 180
	l1 := lon * math.Pi / 180
	az := azDeg * math.Pi / 180
	d := distKm / dsp.EarthRadiusKm

	p2 := math.Asin(math.Sin(p1)*math.Cos(d) + math.Cos(p1)*math.Sin(d)*math.Cos(az))
	l2 := l1 + math.Atan2(math.Sin(az)*math.Sin(d)*math.Cos(p1), math.Cos(d)-math.Sin(p1)*math.Sin(p2))
	return p2 * 180 / math.Pi, math.Mod(l2*180/math.Pi+540, 360) - 180
}
