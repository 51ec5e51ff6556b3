package detect

import (
	"fmt"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/music"
)

var logf = monitoring.Component("MUSIC")

// Service is the default detection service.
type Service struct {
	// KStep overrides the wavenumber grid spacing; zero uses DefaultKStep.
	KStep float64
}

// Detect runs the cross-spectral matrix, the wavenumber surface and peak
// detection on the active dataset. Results are stored on the active dataset
// and the signals are also returned, strongest first.
func (s Service) Detect(ws *music.WorkingSet, cfg *config.RunConfig) ([]music.SignalDescriptor, error) {
	if ws.Active() == nil {
		return nil, fmt.Errorf("detect: no active dataset")
	}
	if err := CalculateDlm(ws); err != nil {
		return nil, err
	}
	if err := CalculateKarr(ws, cfg.GetKxMax(), cfg.GetKyMax(), s.KStep); err != nil {
		return nil, err
	}
	ds := ws.Active()
	sigs := DetectSignals(ds, cfg.GetAutodetectThreshold(), cfg.GetNeighborhood())
	ds.Signals = sigs
	logf("%s: %d signal(s) above %.2f", ws.Site, len(sigs), cfg.GetAutodetectThreshold())
	return sigs, nil
}
