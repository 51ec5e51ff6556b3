package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/db"
	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/checkpoint"
	"github.com/banshee-data/mstid/internal/music/loader"
	"github.com/banshee-data/mstid/internal/music/pipeline"
	"github.com/banshee-data/mstid/internal/music/plots"
	"github.com/banshee-data/mstid/internal/version"
)

const defaultInitParamsDir = "music_init_params"

// inputTimeLayouts are accepted for event times on the command line and in
// manifests.
var inputTimeLayouts = []string{
	checkpoint.RecordTimeFormat,
	"2006-01-02 15:04",
	"20060102.1504",
	time.RFC3339,
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want e.g. %q)", s, checkpoint.RecordTimeFormat)
}

// eventFlags selects one event by site and window.
type eventFlags struct {
	site, start, end string
}

func (e *eventFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&e.site, "site", "", "Radar site code (e.g. bks)")
	fs.StringVar(&e.start, "start", "", "Event start time (UT)")
	fs.StringVar(&e.end, "end", "", "Event end time (UT)")
}

func (e *eventFlags) set() bool { return e.site != "" || e.start != "" || e.end != "" }

func (e *eventFlags) key() (music.EventKey, error) {
	if e.site == "" || e.start == "" || e.end == "" {
		return music.EventKey{}, fmt.Errorf("-site, -start and -end are all required")
	}
	s, err := parseTime(e.start)
	if err != nil {
		return music.EventKey{}, err
	}
	end, err := parseTime(e.end)
	if err != nil {
		return music.EventKey{}, err
	}
	k := music.NewEventKey(e.site, s, end)
	return k, k.Validate()
}

// configFlags builds a RunConfig from an optional JSON file plus overrides.
type configFlags struct {
	path, level, dataPath, listName string
}

func (c *configFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.path, "config", "", "Run configuration JSON file")
	fs.StringVar(&c.level, "level", "", "Process level override (rti, rti_interp, fft, music)")
	fs.StringVar(&c.dataPath, "data-path", "", "Output data path override")
	fs.StringVar(&c.listName, "list", "", "Summary list name override")
}

func (c *configFlags) load() (*config.RunConfig, error) {
	cfg := config.EmptyRunConfig()
	if c.path != "" {
		var err error
		if cfg, err = config.LoadRunConfig(c.path); err != nil {
			return nil, err
		}
	}
	if c.level != "" {
		cfg.ProcessLevel = &c.level
	}
	if c.dataPath != "" {
		cfg.DataPath = &c.dataPath
	}
	if c.listName != "" {
		cfg.ListName = &c.listName
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// storeFlags locate the run-summary store.
type storeFlags struct {
	dir, name string
	disabled  bool
}

func (s *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.dir, "store-dir", config.GetEnvStr(config.EnvStorePath, ""), "Directory of the run-summary store")
	fs.StringVar(&s.name, "db", "", "Store name override (default: db_name from the run config)")
	fs.BoolVar(&s.disabled, "no-store", false, "Do not record run summaries")
}

// open returns the store for cfg, or nil when summaries are disabled.
func (s *storeFlags) open(cfg *config.RunConfig) (*db.DB, error) {
	if s.disabled {
		return nil, nil
	}
	name := s.name
	if name == "" && cfg != nil {
		name = cfg.GetDBName()
	}
	if name == "" {
		return nil, nil
	}
	return db.NewDB(db.StorePath(s.dir, name))
}

// openBatch opens the one summary store shared by jobs. Jobs naming different
// stores are rejected unless -db or -no-store settles the choice.
func (s *storeFlags) openBatch(jobs []pipeline.Job) (*db.DB, error) {
	if s.disabled || s.name != "" {
		return s.open(nil)
	}
	var names []string
	for _, j := range jobs {
		if name := j.Config.GetDBName(); !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	if len(names) > 1 {
		for i, n := range names {
			if n == "" {
				names[i] = "(disabled)"
			}
		}
		return nil, fmt.Errorf("pending runs name different summary stores (%s); pass -db or -no-store", strings.Join(names, ", "))
	}
	return s.open(jobs[0].Config)
}

func newPipeline(synthetic bool, mode pipeline.ResumeMode, store *db.DB) *pipeline.Pipeline {
	opts := pipeline.Options{Resume: mode, Plotter: plots.New()}
	if synthetic {
		opts.Loader = loader.DefaultSynthetic()
	}
	if store != nil {
		opts.Store = store
	}
	return pipeline.New(opts)
}

func printResult(w io.Writer, r *pipeline.Result) {
	switch {
	case r.Skipped:
		fmt.Fprintf(w, "%s: skipped (completed %s)\n", r.Key, r.Level)
	case r.Rejection.Rejected():
		fmt.Fprintf(w, "%s: rejected: %s\n", r.Key, strings.Join(r.Rejection.Reasons, "; "))
	case r.Level == music.LevelMUSIC:
		fmt.Fprintf(w, "%s: %s, %d signal(s)\n", r.Key, r.Level, len(r.Signals))
	default:
		fmt.Fprintf(w, "%s: %s\n", r.Key, r.Level)
	}
}

// ----------------------------------------------------------------------------
// init
// ----------------------------------------------------------------------------

func handleInit(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(w)
	var ev eventFlags
	var cf configFlags
	ev.register(fs)
	cf.register(fs)
	events := fs.String("events", "", "YAML manifest of events")
	dir := fs.String("dir", config.GetEnvStr(config.EnvInitParamsDir, defaultInitParamsDir), "Pending-run directory")
	prefix := fs.String("prefix", "", "File name prefix for the written files")
	reset := fs.Bool("clear", false, "Remove existing pending-run files first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*events == "") == !ev.set() {
		return fmt.Errorf("give either -events or -site/-start/-end")
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}

	var params []*checkpoint.InitParams
	if *events != "" {
		m, err := LoadManifest(*events)
		if err != nil {
			return err
		}
		if params, err = m.InitParams(cfg); err != nil {
			return err
		}
	} else {
		k, err := ev.key()
		if err != nil {
			return err
		}
		params = append(params, checkpoint.NewInitParams(k.Site, k.STime, k.ETime, cfg))
	}

	out := checkpoint.NewInitParamsDir(nil, *dir)
	if *reset {
		if err := out.Reset(); err != nil {
			return err
		}
	}
	for _, p := range params {
		path, err := out.Write(p, *prefix)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, path)
	}
	return nil
}

// ----------------------------------------------------------------------------
// run
// ----------------------------------------------------------------------------

func handleRun(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(w)
	var ev eventFlags
	var cf configFlags
	var sf storeFlags
	ev.register(fs)
	cf.register(fs)
	sf.register(fs)
	paramsFile := fs.String("params", "", "Pending-run (init) file to run instead of -site/-start/-end")
	resume := fs.String("resume", "recompute", "Resume mode: recompute, skip or snapshot")
	synthetic := fs.Bool("synthetic", false, "Generate synthetic radar data instead of reading archives")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mode, err := pipeline.ParseResumeMode(*resume)
	if err != nil {
		return err
	}

	var job pipeline.Job
	if *paramsFile != "" {
		p, err := checkpoint.NewInitParamsDir(nil, "").Read(*paramsFile)
		if err != nil {
			return err
		}
		job = pipeline.JobFromInitParams(p, *paramsFile)
	} else {
		k, err := ev.key()
		if err != nil {
			return err
		}
		cfg, err := cf.load()
		if err != nil {
			return err
		}
		job = pipeline.Job{Key: k, Config: cfg}
	}

	store, err := sf.open(job.Config)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	res, err := newPipeline(*synthetic, mode, store).Run(ctx, job.Key, job.Config)
	if err != nil {
		return err
	}
	printResult(w, res)
	return nil
}

// ----------------------------------------------------------------------------
// batch
// ----------------------------------------------------------------------------

func handleBatch(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(w)
	var sf storeFlags
	sf.register(fs)
	dir := fs.String("dir", config.GetEnvStr(config.EnvInitParamsDir, defaultInitParamsDir), "Pending-run directory")
	workers := fs.Int("workers", config.GetEnvInt(config.EnvWorkers, runtime.NumCPU()), "Events processed concurrently")
	resume := fs.String("resume", "recompute", "Resume mode: recompute, skip or snapshot")
	synthetic := fs.Bool("synthetic", false, "Generate synthetic radar data instead of reading archives")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mode, err := pipeline.ParseResumeMode(*resume)
	if err != nil {
		return err
	}

	in := checkpoint.NewInitParamsDir(nil, *dir)
	paths, err := in.List()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintf(w, "no pending runs in %s\n", *dir)
		return nil
	}
	jobs, err := pipeline.LoadJobs(in, paths)
	if err != nil {
		return err
	}

	store, err := sf.openBatch(jobs)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	results, err := newPipeline(*synthetic, mode, store).RunBatch(ctx, jobs, *workers)
	for _, r := range results {
		if r != nil {
			printResult(w, r)
		}
	}
	return err
}

// ----------------------------------------------------------------------------
// status
// ----------------------------------------------------------------------------

func handleStatus(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(w)
	var ev eventFlags
	var cf configFlags
	var sf storeFlags
	ev.register(fs)
	cf.register(fs)
	sf.register(fs)
	paramsFile := fs.String("params", "", "Pending-run (init) file naming the event")
	summary := fs.Bool("summary", false, "Also print the stored run summary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var k music.EventKey
	var cfg *config.RunConfig
	if *paramsFile != "" {
		p, err := checkpoint.NewInitParamsDir(nil, "").Read(*paramsFile)
		if err != nil {
			return err
		}
		k, cfg = p.Key(), &p.RunConfig
	} else {
		var err error
		if k, err = ev.key(); err != nil {
			return err
		}
		if cfg, err = cf.load(); err != nil {
			return err
		}
	}

	store := checkpoint.NewStore(nil, cfg.GetDataPath()).WithMarkerFilename(cfg.GetMarkerFilename())
	level, err := store.ReadCompleted(k)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s (%s)\n", k, level, store.EventDir(k))

	if !*summary {
		return nil
	}
	sdb, err := sf.open(cfg)
	if err != nil {
		return err
	}
	if sdb == nil {
		return fmt.Errorf("summary store disabled")
	}
	defer sdb.Close()
	s, ok, err := sdb.GetRunSummary(k)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "  no stored summary")
		return nil
	}
	fmt.Fprintf(w, "  level:        %s\n", s.Level)
	if s.GoodPeriod != nil {
		fmt.Fprintf(w, "  good period:  %t\n", *s.GoodPeriod)
	}
	if s.GateLimits != nil {
		fmt.Fprintf(w, "  gates:        %d-%d\n", s.GateLimits[0], s.GateLimits[1])
	}
	for _, msg := range s.RejectMessages {
		fmt.Fprintf(w, "  rejected:     %s\n", msg)
	}
	fmt.Fprintf(w, "  signals:      %d\n", len(s.Signals))
	fmt.Fprintf(w, "  updated:      %s\n", s.UpdatedAt.Format(time.RFC3339))
	return nil
}

// ----------------------------------------------------------------------------
// migrate, version
// ----------------------------------------------------------------------------

func handleMigrate(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(w)
	dir := fs.String("store-dir", config.GetEnvStr(config.EnvStorePath, ""), "Directory of the run-summary store")
	name := fs.String("db", config.EmptyRunConfig().GetDBName(), "Store name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(w, fs.Args(), db.StorePath(*dir, *name))
}

func handleVersion(w io.Writer) error {
	fmt.Fprintln(w, version.String("music"))
	return nil
}
