// Package loader reads raw backscatter power for an event window and turns
// it into the first dataset of a working set. Two sources are provided:
// archived daily files on disk (Loader) and a deterministic generator for
// demos and tests (Synthetic).
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/fsutil"
	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/dsp"
)

var logf = monitoring.Component("Loader")

// OriginalName is the name of the first dataset in every loaded working set.
const OriginalName = "originalFit"

// Loader reads archives from cfg's srcPath override, or from
// <fitacf_dir>/<site>/ when no override is set. The override may name a
// single archive file or a directory of daily archives.
type Loader struct {
	FS fsutil.FileSystem
}

// New returns a Loader on fsys; nil uses the OS.
func New(fsys fsutil.FileSystem) *Loader {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Loader{FS: fsys}
}

// Load reads the event window, widened for the band-pass filter when one is
// configured. A window without samples is not an error: the working set is
// returned empty with NoDataMessage recorded.
func (l *Loader) Load(k music.EventKey, cfg *config.RunConfig) (*music.WorkingSet, error) {
	loadS, loadE := LoadWindow(k, cfg)

	var paths []string
	if src := cfg.GetSrcPath(); src != "" {
		info, err := l.FS.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src, err)
		}
		if info.IsDir() {
			paths = ArchivePaths(src, k.Site, loadS, loadE)
		} else {
			paths = []string{src}
		}
	} else {
		dir := filepath.Join(cfg.GetFitacfDir(), strings.ToLower(k.Site))
		paths = ArchivePaths(dir, k.Site, loadS, loadE)
	}

	var archives []*Archive
	for _, p := range paths {
		a, err := ReadArchive(l.FS, p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}
	return Assemble(k, cfg, archives)
}

// LoadWindow returns the raw-data window for an event: the event window
// widened by half the filter length on each side when both the
// interpolation resolution and the tap count are set.
func LoadWindow(k music.EventKey, cfg *config.RunConfig) (time.Time, time.Time) {
	res, taps := cfg.GetInterpResolution(), cfg.GetFilterNumtaps()
	if res > 0 && taps > 0 {
		return dsp.FilterTimes(k.STime, k.ETime, res, taps)
	}
	return k.STime, k.ETime
}

// Assemble merges the samples of archives that fall inside the load window
// into a new working set and assesses the event window's data quality.
func Assemble(k music.EventKey, cfg *config.RunConfig, archives []*Archive) (*music.WorkingSet, error) {
	loadS, loadE := LoadWindow(k, cfg)
	ws := music.NewWorkingSet(k.Site, k.STime, k.ETime)

	type sample struct {
		t   time.Time
		src *Archive
		idx int
	}
	var samples []sample
	var ref *Archive
	for _, a := range archives {
		if ref == nil {
			ref = a
		} else if a.Data.NB != ref.Data.NB || a.Data.NG != ref.Data.NG {
			return nil, fmt.Errorf("archives for %s disagree on shape: %dx%d vs %dx%d",
				k.Site, a.Data.NB, a.Data.NG, ref.Data.NB, ref.Data.NG)
		}
		for i, t := range a.Time {
			if !t.Before(loadS) && !t.After(loadE) {
				samples = append(samples, sample{t, a, i})
			}
		}
	}
	if len(samples) == 0 {
		ws.Messages = append(ws.Messages, music.NoDataMessage)
		logf("%s: no data between %s and %s", k, loadS.Format(time.RFC3339), loadE.Format(time.RFC3339))
		return ws, nil
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].t.Before(samples[j].t) })

	nb, ng := ref.Data.NB, ref.Data.NG
	ds := &music.Dataset{
		Name:    OriginalName,
		Comment: "Original Fit Data",
		Data:    music.NewArray3(len(samples), nb, ng),
		FOV:     ref.FOV.Clone(),
		Time:    make([]time.Time, len(samples)),
		Metadata: music.Metadata{
			Site:     k.Site,
			STime:    loadS,
			ETime:    loadE,
			FovModel: cfg.GetFovModel(),
			Gscat:    cfg.GetGscat(),
		},
	}
	for i, s := range samples {
		ds.Time[i] = s.t
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				ds.Data.Set(i, b, g, s.src.Data.At(s.idx, b, g))
			}
		}
	}
	good := dsp.CheckDataQuality(ds, k.STime, k.ETime, dsp.DefaultMaxOffTime)
	ws.Add(ds)
	logf("%s: loaded %d samples from %d archive(s), good period %t", k, len(samples), len(archives), good)
	return ws, nil
}
