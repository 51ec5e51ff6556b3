// Package pipeline drives one event through the processing stages
// (rti, rti_interp, fft, music), applying the quality gates and the
// auto-range detector and checkpointing after every stage.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/db"
	"github.com/banshee-data/mstid/internal/fsutil"
	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/autorange"
	"github.com/banshee-data/mstid/internal/music/checkpoint"
	"github.com/banshee-data/mstid/internal/music/detect"
	"github.com/banshee-data/mstid/internal/music/dsp"
	"github.com/banshee-data/mstid/internal/music/loader"
	"github.com/banshee-data/mstid/internal/music/quality"
	"github.com/banshee-data/mstid/internal/music/report"
	"github.com/banshee-data/mstid/internal/timeutil"
)

var logf = monitoring.Component("Pipeline")

// Loader produces the raw working set for an event. A window without data
// is reported through ws.Messages, not as an error.
type Loader interface {
	Load(k music.EventKey, cfg *config.RunConfig) (*music.WorkingSet, error)
}

// Transformer runs the signal-processing stages. Each call derives new
// datasets on ws and makes the last one active.
type Transformer interface {
	Despike(ws *music.WorkingSet) error
	Interpolate(ws *music.WorkingSet, cfg *config.RunConfig) error
	Spectrum(ws *music.WorkingSet, cfg *config.RunConfig) error
}

// Detector finds wave signals in the active dataset's spectrum.
type Detector interface {
	Detect(ws *music.WorkingSet, cfg *config.RunConfig) ([]music.SignalDescriptor, error)
}

// SummaryStore receives one reporting row per event.
type SummaryStore interface {
	UpsertRunSummary(s *db.RunSummary) error
}

// Plotter renders read-only figures from a finished working set into the
// event directory.
type Plotter interface {
	Plot(store *checkpoint.Store, k music.EventKey, ws *music.WorkingSet) error
}

// ResumeMode selects what a run does with existing checkpoints.
type ResumeMode int

const (
	// ResumeRecompute clears the event directory and starts from raw data.
	ResumeRecompute ResumeMode = iota
	// ResumeSkip returns early when the marker already reaches the target.
	ResumeSkip
	// ResumeSnapshot skips like ResumeSkip and otherwise continues from the
	// last snapshot when the marker is past rti. Earlier markers recompute.
	ResumeSnapshot
)

var resumeLabels = [...]string{
	ResumeRecompute: "recompute",
	ResumeSkip:      "skip",
	ResumeSnapshot:  "snapshot",
}

func (m ResumeMode) String() string {
	if int(m) < 0 || int(m) >= len(resumeLabels) {
		return fmt.Sprintf("ResumeMode(%d)", int(m))
	}
	return resumeLabels[m]
}

// ParseResumeMode maps a label to its mode. The empty string is recompute.
func ParseResumeMode(s string) (ResumeMode, error) {
	if s == "" {
		return ResumeRecompute, nil
	}
	for i, l := range resumeLabels {
		if l == strings.ToLower(s) {
			return ResumeMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown resume mode %q", s)
}

// Options wires the collaborators of a Pipeline. Nil fields get the default
// implementations; a nil Store or Plotter disables that step.
type Options struct {
	FS          fsutil.FileSystem
	Loader      Loader
	Transformer Transformer
	Detector    Detector
	Store       SummaryStore
	Plotter     Plotter
	Resume      ResumeMode
	Clock       timeutil.Clock
}

// Pipeline runs events. It holds no per-event state, so one Pipeline may run
// different events concurrently; the same event must not run twice at once.
type Pipeline struct {
	fs          fsutil.FileSystem
	loader      Loader
	transformer Transformer
	detector    Detector
	store       SummaryStore
	plotter     Plotter
	resume      ResumeMode
	clock       timeutil.Clock
}

// New returns a Pipeline with defaults filled in.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		fs:          opts.FS,
		loader:      opts.Loader,
		transformer: opts.Transformer,
		detector:    opts.Detector,
		store:       opts.Store,
		plotter:     opts.Plotter,
		resume:      opts.Resume,
		clock:       opts.Clock,
	}
	if p.clock == nil {
		p.clock = timeutil.RealClock{}
	}
	if p.fs == nil {
		p.fs = fsutil.OSFileSystem{}
	}
	if p.loader == nil {
		p.loader = loader.New(p.fs)
	}
	if p.transformer == nil {
		p.transformer = dsp.Service{}
	}
	if p.detector == nil {
		p.detector = detect.Service{}
	}
	return p
}

// Result describes how far an event got.
type Result struct {
	Key   music.EventKey
	Level music.Level

	// Rejection is set when a quality gate or the auto-range check dropped
	// the event. Level is then music, so it is not reprocessed.
	Rejection *music.Rejection

	// Skipped is true when existing checkpoints already met the target.
	Skipped bool
	// Resumed is the level a snapshot resume started from, or none.
	Resumed music.Level

	Signals []music.SignalDescriptor

	// Elapsed is the wall time Run spent on the event.
	Elapsed time.Duration
}

// run carries the state of one event through the stages.
type run struct {
	k     music.EventKey
	cfg   *config.RunConfig
	store *checkpoint.Store
	ws    *music.WorkingSet
	res   *Result
}

// Run processes k up to cfg's process level. Rejections are returned in the
// Result; any other failure is returned as an error and leaves the marker at
// the last completed stage.
func (p *Pipeline) Run(ctx context.Context, k music.EventKey, cfg *config.RunConfig) (*Result, error) {
	if cfg == nil {
		cfg = config.EmptyRunConfig()
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	target := cfg.GetProcessLevel()
	store := checkpoint.NewStore(p.fs, cfg.GetDataPath()).WithMarkerFilename(cfg.GetMarkerFilename())
	r := &run{k: k, cfg: cfg, store: store, res: &Result{Key: k}}
	start := p.clock.Now()
	defer func() { r.res.Elapsed = p.clock.Since(start) }()

	done, err := store.ReadCompleted(k)
	if err != nil {
		return nil, err
	}
	if p.resume != ResumeRecompute && done >= target {
		logf("%s: already at %s (target %s), skipping", k, done, target)
		r.res.Level, r.res.Skipped = done, true
		return r.res, nil
	}

	if p.resume == ResumeSnapshot && done > music.LevelRTI {
		ws, ok, err := store.LoadSnapshot(k)
		if err != nil {
			return nil, err
		}
		if ok {
			logf("%s: resuming from %s snapshot", k, done)
			r.ws = ws
			r.res.Level, r.res.Resumed = done, done
			return p.advance(ctx, r, target)
		}
		logf("%s: marker at %s but no snapshot, recomputing", k, done)
	}

	if err := p.load(r); err != nil {
		return nil, err
	}
	if r.res.Rejection.Rejected() {
		if err := p.reject(r); err != nil {
			return nil, err
		}
		return r.res, nil
	}
	if err := p.checkpoint(r, music.LevelRTI); err != nil {
		return nil, err
	}
	return p.advance(ctx, r, target)
}

// load runs the entry stage: raw data, quality gates, despiking, gate and
// beam limit selection and the run record.
func (p *Pipeline) load(r *run) error {
	k, cfg, store := r.k, r.cfg, r.store
	if err := store.PrepareEventDir(k, p.resume == ResumeRecompute); err != nil {
		return err
	}
	ws, err := p.loader.Load(k, cfg)
	if err != nil {
		return fmt.Errorf("%s: load: %w", k, err)
	}
	if ws == nil {
		ws = music.NewWorkingSet(k.Site, k.STime, k.ETime)
	}
	r.ws = ws
	r.res.Rejection = &music.Rejection{}

	if reason, ok := quality.Check(ws, quality.LoadGates()); !ok {
		r.res.Rejection.Add(reason)
	}

	var gates, beams *[2]int
	if !r.res.Rejection.Rejected() {
		if cfg.GetBoxcarFilter() {
			if err := p.transformer.Despike(ws); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		fov := ws.Active().FOV
		gates = resolveLimits(cfg.GetGateLimits(), fov.GateRange)
		beams = resolveLimits(cfg.GetBeamLimits(), fov.BeamRange)

		if cfg.GetAutoRangeOn() {
			var badRange *float64
			if km, ok := cfg.GetBadRangeKm(); ok {
				badRange = &km
			}
			res, err := autorange.Detect(ws.Active(), k.STime, k.ETime, badRange)
			reason, ok, fatal := quality.CheckAutoRange(res, err)
			switch {
			case fatal != nil:
				return fmt.Errorf("%s: auto range: %w", k, fatal)
			case !ok:
				r.res.Rejection.Add(reason)
			default:
				l := res.Limits()
				gates = &l
			}
		}
		if !r.res.Rejection.Rejected() {
			dsp.DefineLimits(ws, gates, beams)
		}
	}

	rec := store.NewRunRecord(k, pointerPair(beams), pointerPair(gates), cfg)
	if err := store.WriteRunRecord(k, rec); err != nil {
		return err
	}
	r.res.Level = music.LevelRTI
	return nil
}

// reject records a dropped event: messages, snapshot, terminal marker and
// summary row.
func (p *Pipeline) reject(r *run) error {
	logf("%s: rejected: %s", r.k, r.res.Rejection)
	lines := append(r.messages(), r.res.Rejection.Reasons...)
	if err := r.store.WriteMessages(r.k, lines); err != nil {
		return err
	}
	if err := r.store.SaveSnapshot(r.k, r.ws); err != nil {
		return err
	}
	if err := r.store.MarkCompleted(r.k, music.LevelMUSIC); err != nil {
		return err
	}
	r.res.Level = music.LevelMUSIC
	return p.summarize(r)
}

type stage struct {
	level music.Level
	run   func(r *run) error
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{music.LevelRTIInterp, func(r *run) error { return p.transformer.Interpolate(r.ws, r.cfg) }},
		{music.LevelFFT, func(r *run) error { return p.transformer.Spectrum(r.ws, r.cfg) }},
		{music.LevelMUSIC, p.detect},
	}
}

// advance runs every stage after r.res.Level up to target, then writes the
// summary and plots.
func (p *Pipeline) advance(ctx context.Context, r *run, target music.Level) (*Result, error) {
	if r.res.Level == music.LevelRTI {
		if err := r.store.WriteMessages(r.k, r.messages()); err != nil {
			return nil, err
		}
	}
	for _, st := range p.stages() {
		if st.level <= r.res.Level {
			continue
		}
		if st.level > target {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: before %s: %w", r.k, st.level, err)
		}
		if err := st.run(r); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", r.k, st.level, err)
		}
		if err := p.checkpoint(r, st.level); err != nil {
			return nil, err
		}
	}
	if act := r.ws.Active(); act != nil && r.res.Signals == nil {
		r.res.Signals = act.Signals
	}
	if err := p.summarize(r); err != nil {
		return nil, err
	}
	p.plot(r)
	return r.res, nil
}

func (p *Pipeline) detect(r *run) error {
	sigs, err := p.detector.Detect(r.ws, r.cfg)
	if err != nil {
		return err
	}
	r.res.Signals = sigs
	return r.store.WriteFile(r.k, checkpoint.ReportFilename, report.FormatSignals(sigs))
}

// checkpoint makes level a resume point: snapshot first, then the marker.
func (p *Pipeline) checkpoint(r *run, level music.Level) error {
	if err := r.store.SaveSnapshot(r.k, r.ws); err != nil {
		return err
	}
	if err := r.store.MarkCompleted(r.k, level); err != nil {
		return err
	}
	r.res.Level = level
	logf("%s: completed %s", r.k, level)
	return nil
}

func (p *Pipeline) summarize(r *run) error {
	if p.store == nil {
		return nil
	}
	cfg := r.cfg
	s := &db.RunSummary{
		Site:         r.k.Site,
		STime:        r.k.STime,
		ETime:        r.k.ETime,
		ListName:     cfg.GetListName(),
		StorePort:    cfg.GetStorePort(),
		Level:        r.res.Level,
		RTI:          dsp.ComputeRTIStats(r.ws, r.k.STime, r.k.ETime),
		Signals:      r.res.Signals,
	}
	if rec, ok, err := r.store.ReadRunRecord(r.k); err == nil && ok {
		s.RunID = rec.RunID
	}
	if r.res.Rejection != nil {
		s.RejectMessages = r.res.Rejection.Reasons
	}
	if orig := r.ws.Original(); orig != nil {
		good := orig.Metadata.GoodPeriod
		s.GoodPeriod = &good
	}
	if act := r.ws.Active(); act != nil {
		s.GateLimits = act.Metadata.GateLimits
		s.BeamLimits = act.Metadata.BeamLimits
		s.DominantFreq = act.DominantFreq
	}
	if err := p.store.UpsertRunSummary(s); err != nil {
		return fmt.Errorf("%s: summary: %w", r.k, err)
	}
	return nil
}

// plot renders figures when requested. Failures are logged only.
func (p *Pipeline) plot(r *run) {
	if p.plotter == nil || !r.cfg.GetMakePlots() || r.ws.Active() == nil {
		return
	}
	if err := p.plotter.Plot(r.store, r.k, r.ws); err != nil {
		logf("%s: plotting failed: %v", r.k, err)
	}
}

// messages is the message-log preamble: the event directory, then anything
// the loader reported.
func (r *run) messages() []string {
	lines := []string{r.store.EventDir(r.k)}
	if r.ws != nil {
		lines = append(lines, r.ws.Messages...)
	}
	return lines
}

// resolveLimits completes a partly open limit pair from the available range.
// A fully open pair is nil (unlimited).
func resolveLimits(l *config.Limits, avail func() (int, int)) *[2]int {
	if l.Open() {
		return nil
	}
	lo, hi := l.Resolve(avail())
	return &[2]int{lo, hi}
}

func pointerPair(l *[2]int) [2]*int {
	if l == nil {
		return [2]*int{}
	}
	lo, hi := l[0], l[1]
	return [2]*int{&lo, &hi}
}
