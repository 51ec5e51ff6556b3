package music

import "sort"

// SignalDescriptor is one wave signal found in the wavenumber-domain surface.
type SignalDescriptor struct {
	Order  int     `json:"order"`
	Kx     float64 `json:"kx"`     // 1/km
	Ky     float64 `json:"ky"`     // 1/km
	K      float64 `json:"k"`      // 1/km
	Lambda float64 `json:"lambda"` // km
	Azm    float64 `json:"azm"`    // degrees east of north
	Freq   float64 `json:"freq"`   // Hz
	Period float64 `json:"period"` // s
	Vel    float64 `json:"vel"`    // m/s
	Max    float64 `json:"max"`
	Area   float64 `json:"area"` // pixels
}

// SortByOrder sorts signals by their Order field, stable for equal orders.
func SortByOrder(sigs []SignalDescriptor) {
	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].Order < sigs[j].Order })
}

// Reorder ranks signals by detection maximum, strongest first, and rewrites
// Order as 1..n.
func Reorder(sigs []SignalDescriptor) {
	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].Max > sigs[j].Max })
	for i := range sigs {
		sigs[i].Order = i + 1
	}
}
