// Package quality holds the ordered checks that decide whether a freshly
// loaded event is worth processing.
package quality

import (
	"errors"

	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/autorange"
)

// Rejection reasons, as written to the message log.
const (
	ReasonNoData         = music.NoDataMessage
	ReasonBadPeriod      = "Bad data period as determined by checkDataQuality()."
	ReasonBeamMismatch   = "Number of FOV beams != number of beams in data array. Rejecting observation window."
	ReasonGateMismatch   = "Number of FOV gates != number of gates in data array.  Radar probably running a non-standard mode that this code is not equipped to handle."
	ReasonAutoRangeErr   = "auto_range() computation error."
	ReasonAutoRangeSmall = "auto_range() too small."
)

// Gate is one named check. Fails returns true when the event must be rejected.
type Gate struct {
	Name   string
	Reason string
	Fails  func(ws *music.WorkingSet) bool
}

// LoadGates returns the checks applied to every loaded event, in order.
func LoadGates() []Gate {
	return []Gate{
		{
			Name:   "no_data",
			Reason: ReasonNoData,
			Fails: func(ws *music.WorkingSet) bool {
				return ws.Active() == nil || ws.HasMessage(music.NoDataMessage)
			},
		},
		{
			Name:   "good_period",
			Reason: ReasonBadPeriod,
			Fails: func(ws *music.WorkingSet) bool {
				return !ws.Active().Metadata.GoodPeriod
			},
		},
		{
			Name:   "beam_count",
			Reason: ReasonBeamMismatch,
			Fails: func(ws *music.WorkingSet) bool {
				ds := ws.Active()
				return len(ds.FOV.Beams) != ds.Data.NB
			},
		},
		{
			Name:   "gate_count",
			Reason: ReasonGateMismatch,
			Fails: func(ws *music.WorkingSet) bool {
				ds := ws.Active()
				return len(ds.FOV.Gates) != ds.Data.NG
			},
		},
	}
}

// Check runs gates in order and returns the first failing gate's reason.
// Later gates are not evaluated, so each may assume the earlier ones passed.
func Check(ws *music.WorkingSet, gates []Gate) (reason string, ok bool) {
	for _, g := range gates {
		if g.Fails(ws) {
			return g.Reason, false
		}
	}
	return "", true
}

// CheckAutoRange classifies the outcome of the auto-range detector. An
// insufficient-data error or a too-narrow band is a rejection; any other
// error is returned as fatal.
func CheckAutoRange(res *autorange.Result, err error) (reason string, ok bool, fatal error) {
	switch {
	case errors.Is(err, autorange.ErrInsufficientData):
		return ReasonAutoRangeErr, false, nil
	case err != nil:
		return "", false, err
	case res.TooSmall():
		return ReasonAutoRangeSmall, false, nil
	}
	return "", true, nil
}
