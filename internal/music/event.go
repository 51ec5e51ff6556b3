package music

import (
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/mstid/internal/security"
)

// keyTimeFormat is the compact time format used in event paths.
const keyTimeFormat = "20060102.1504"

// EventKey identifies one processing unit: a site observed over [STime, ETime).
type EventKey struct {
	Site  string
	STime time.Time
	ETime time.Time
}

// NewEventKey normalises the site name to lower case and times to UTC.
func NewEventKey(site string, sTime, eTime time.Time) EventKey {
	return EventKey{Site: strings.ToLower(site), STime: sTime.UTC(), ETime: eTime.UTC()}
}

// Window returns the "<start>-<end>" path component.
func (k EventKey) Window() string {
	return k.STime.UTC().Format(keyTimeFormat) + "-" + k.ETime.UTC().Format(keyTimeFormat)
}

// BaseName returns "<site>-<start>-<end>", the stem of every per-event file.
func (k EventKey) BaseName() string {
	return strings.ToLower(k.Site) + "-" + k.Window()
}

// Validate checks the key describes a non-empty window.
func (k EventKey) Validate() error {
	if k.Site == "" {
		return fmt.Errorf("event key: empty site")
	}
	if err := security.ValidateFileName(k.Site); err != nil {
		return fmt.Errorf("event key site: %w", err)
	}
	if !k.ETime.After(k.STime) {
		return fmt.Errorf("event key %s: end %s is not after start %s", k.Site, k.ETime, k.STime)
	}
	return nil
}

func (k EventKey) String() string { return k.BaseName() }
