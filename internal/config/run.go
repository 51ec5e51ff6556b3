package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/mstid/internal/music"
)

// DefaultMarkerFilename is the completion-marker file written in each event
// directory.
const DefaultMarkerFilename = "processing_level_completed.txt"

// Limits is an inclusive (min, max) pair where either end may be left open.
type Limits [2]*int

// NewLimits returns a closed limit pair.
func NewLimits(lo, hi int) *Limits { return &Limits{&lo, &hi} }

// Open reports whether neither end of the pair is set.
func (l *Limits) Open() bool { return l == nil || (l[0] == nil && l[1] == nil) }

// Resolve fills open ends from the available range.
func (l *Limits) Resolve(lo, hi int) (int, int) {
	if l != nil && l[0] != nil {
		lo = *l[0]
	}
	if l != nil && l[1] != nil {
		hi = *l[1]
	}
	return lo, hi
}

// RunConfig holds every parameter of one MUSIC run. All fields are optional
// in JSON; the Get* methods supply defaults for anything omitted. The same
// document is embedded in pending-run (init param) files.
type RunConfig struct {
	ProcessLevel *string `json:"process_level,omitempty"`
	MakePlots    *bool   `json:"make_plots,omitempty"`
	DataPath     *string `json:"data_path,omitempty"`

	// Load
	FovModel  *string `json:"fovModel,omitempty"`
	Gscat     *int    `json:"gscat,omitempty"`
	SrcPath   *string `json:"srcPath,omitempty"`
	FitacfDir *string `json:"fitacf_dir,omitempty"`

	// Gating
	BoxcarFilter *bool    `json:"boxcar_filter,omitempty"`
	AutoRangeOn  *bool    `json:"auto_range_on,omitempty"`
	BadRangeKm   *float64 `json:"bad_range_km,omitempty"` // nil disables the clamp
	BeamLimits   *Limits  `json:"beam_limits,omitempty"`
	GateLimits   *Limits  `json:"gate_limits,omitempty"`

	// rti_interp / fft
	InterpResolution   *float64 `json:"interp_resolution,omitempty"` // seconds
	FilterNumtaps      *int     `json:"filter_numtaps,omitempty"`    // 0 skips the filter
	FilterCutoffLow    *float64 `json:"filter_cutoff_low,omitempty"` // Hz
	FilterCutoffHigh   *float64 `json:"filter_cutoff_high,omitempty"`
	Detrend            *bool    `json:"detrend,omitempty"`
	HanningWindowSpace *bool    `json:"hanning_window_space,omitempty"`
	HanningWindowTime  *bool    `json:"hanning_window_time,omitempty"`
	Zeropad            *bool    `json:"zeropad,omitempty"`

	// music
	KxMax               *float64 `json:"kx_max,omitempty"`
	KyMax               *float64 `json:"ky_max,omitempty"`
	AutodetectThreshold *float64 `json:"autodetect_threshold,omitempty"`
	Neighborhood        *[2]int  `json:"neighborhood,omitempty"`

	// Summary store
	ListName  *string `json:"mstid_list,omitempty"`
	DBName    *string `json:"db_name,omitempty"` // "" disables the store
	StorePort *int    `json:"mongo_port,omitempty"`

	MarkerFilename *string `json:"marker_filename,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyRunConfig returns a RunConfig with all fields set to nil.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// DefaultRunConfig returns a RunConfig with every field populated from the
// Get* defaults. Useful when writing a fully explicit init param file.
func DefaultRunConfig() *RunConfig {
	e := EmptyRunConfig()
	return &RunConfig{
		ProcessLevel:        ptrString(e.GetProcessLevel().String()),
		MakePlots:           ptrBool(e.GetMakePlots()),
		DataPath:            ptrString(e.GetDataPath()),
		FovModel:            ptrString(e.GetFovModel()),
		Gscat:               ptrInt(e.GetGscat()),
		FitacfDir:           ptrString(e.GetFitacfDir()),
		BoxcarFilter:        ptrBool(e.GetBoxcarFilter()),
		AutoRangeOn:         ptrBool(e.GetAutoRangeOn()),
		BeamLimits:          &Limits{},
		GateLimits:          e.GetGateLimits(),
		InterpResolution:    ptrFloat64(e.GetInterpResolution().Seconds()),
		FilterNumtaps:       ptrInt(e.GetFilterNumtaps()),
		FilterCutoffLow:     ptrFloat64(e.GetFilterCutoffLow()),
		FilterCutoffHigh:    ptrFloat64(e.GetFilterCutoffHigh()),
		Detrend:             ptrBool(e.GetDetrend()),
		HanningWindowSpace:  ptrBool(e.GetHanningWindowSpace()),
		HanningWindowTime:   ptrBool(e.GetHanningWindowTime()),
		Zeropad:             ptrBool(e.GetZeropad()),
		KxMax:               ptrFloat64(e.GetKxMax()),
		KyMax:               ptrFloat64(e.GetKyMax()),
		AutodetectThreshold: ptrFloat64(e.GetAutodetectThreshold()),
		Neighborhood:        &[2]int{10, 10},
		DBName:              ptrString(e.GetDBName()),
		StorePort:           ptrInt(e.GetStorePort()),
		MarkerFilename:      ptrString(e.GetMarkerFilename()),
	}
}

// LoadRunConfig loads a RunConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults, so partial configs are safe.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *RunConfig) Validate() error {
	if c.ProcessLevel != nil {
		if _, err := music.ParseLevel(*c.ProcessLevel); err != nil {
			return fmt.Errorf("process_level: %w", err)
		}
	}
	if c.FovModel != nil && *c.FovModel != "GS" && *c.FovModel != "IS" {
		return fmt.Errorf("fovModel must be GS or IS, got %q", *c.FovModel)
	}
	if c.Gscat != nil && (*c.Gscat < 0 || *c.Gscat > 3) {
		return fmt.Errorf("gscat must be between 0 and 3, got %d", *c.Gscat)
	}
	for name, l := range map[string]*Limits{"gate_limits": c.GateLimits, "beam_limits": c.BeamLimits} {
		if l != nil && l[0] != nil && l[1] != nil && *l[0] > *l[1] {
			return fmt.Errorf("%s min %d exceeds max %d", name, *l[0], *l[1])
		}
	}
	if c.InterpResolution != nil && *c.InterpResolution <= 0 {
		return fmt.Errorf("interp_resolution must be positive, got %f", *c.InterpResolution)
	}
	if c.FilterNumtaps != nil && *c.FilterNumtaps < 0 {
		return fmt.Errorf("filter_numtaps must be non-negative, got %d", *c.FilterNumtaps)
	}
	if lo, hi := c.GetFilterCutoffLow(), c.GetFilterCutoffHigh(); c.GetFilterNumtaps() > 0 && (lo <= 0 || hi <= lo) {
		return fmt.Errorf("filter cutoffs must satisfy 0 < low < high, got %g, %g", lo, hi)
	}
	if c.KxMax != nil && *c.KxMax <= 0 {
		return fmt.Errorf("kx_max must be positive, got %f", *c.KxMax)
	}
	if c.KyMax != nil && *c.KyMax <= 0 {
		return fmt.Errorf("ky_max must be positive, got %f", *c.KyMax)
	}
	if c.AutodetectThreshold != nil && (*c.AutodetectThreshold < 0 || *c.AutodetectThreshold > 1) {
		return fmt.Errorf("autodetect_threshold must be between 0 and 1, got %f", *c.AutodetectThreshold)
	}
	if c.Neighborhood != nil && (c.Neighborhood[0] < 1 || c.Neighborhood[1] < 1) {
		return fmt.Errorf("neighborhood must be at least (1, 1), got %v", *c.Neighborhood)
	}
	return nil
}

// GetProcessLevel returns the requested level. Validate rejects unknown
// labels, so an invalid value only reaches here from an unvalidated config.
func (c *RunConfig) GetProcessLevel() music.Level {
	if c.ProcessLevel == nil {
		return music.LevelMUSIC
	}
	return music.LevelOf(*c.ProcessLevel)
}

// GetMakePlots returns the make_plots value or the default.
func (c *RunConfig) GetMakePlots() bool {
	if c.MakePlots == nil {
		return true
	}
	return *c.MakePlots
}

// GetDataPath returns the base output path or the default.
func (c *RunConfig) GetDataPath() string {
	if c.DataPath == nil || *c.DataPath == "" {
		return "music_data/music"
	}
	return *c.DataPath
}

// GetFovModel returns the scatter mapping model or the default (ground scatter).
func (c *RunConfig) GetFovModel() string {
	if c.FovModel == nil {
		return "GS"
	}
	return *c.FovModel
}

// GetGscat returns the ground scatter flag or the default.
func (c *RunConfig) GetGscat() int {
	if c.Gscat == nil {
		return 1
	}
	return *c.Gscat
}

// GetSrcPath returns the source override path; empty means load from FitacfDir.
func (c *RunConfig) GetSrcPath() string {
	if c.SrcPath == nil {
		return ""
	}
	return *c.SrcPath
}

// GetFitacfDir returns the raw data directory or the default.
func (c *RunConfig) GetFitacfDir() string {
	if c.FitacfDir == nil {
		return "/sd-data"
	}
	return *c.FitacfDir
}

// GetBoxcarFilter returns the boxcar_filter value or the default.
func (c *RunConfig) GetBoxcarFilter() bool {
	if c.BoxcarFilter == nil {
		return true
	}
	return *c.BoxcarFilter
}

// GetAutoRangeOn returns the auto_range_on value or the default.
func (c *RunConfig) GetAutoRangeOn() bool {
	if c.AutoRangeOn == nil {
		return true
	}
	return *c.AutoRangeOn
}

// GetBadRangeKm returns the minimum physical range and whether the clamp is on.
func (c *RunConfig) GetBadRangeKm() (float64, bool) {
	if c.BadRangeKm == nil {
		return 0, false
	}
	return *c.BadRangeKm, true
}

// GetBeamLimits returns the beam limits; the default leaves both ends open.
func (c *RunConfig) GetBeamLimits() *Limits {
	if c.BeamLimits == nil {
		return &Limits{}
	}
	return c.BeamLimits
}

// GetGateLimits returns the gate limits or the default (0, 80).
func (c *RunConfig) GetGateLimits() *Limits {
	if c.GateLimits == nil {
		return NewLimits(0, 80)
	}
	return c.GateLimits
}

// GetInterpResolution returns the uniform time grid spacing.
func (c *RunConfig) GetInterpResolution() time.Duration {
	if c.InterpResolution == nil {
		return 60 * time.Second
	}
	return time.Duration(*c.InterpResolution * float64(time.Second))
}

// GetFilterNumtaps returns the FIR tap count; zero means no filter.
func (c *RunConfig) GetFilterNumtaps() int {
	if c.FilterNumtaps == nil {
		return 101
	}
	return *c.FilterNumtaps
}

// GetFilterCutoffLow returns the band-pass lower cutoff in Hz.
func (c *RunConfig) GetFilterCutoffLow() float64 {
	if c.FilterCutoffLow == nil {
		return 0.0003
	}
	return *c.FilterCutoffLow
}

// GetFilterCutoffHigh returns the band-pass upper cutoff in Hz.
func (c *RunConfig) GetFilterCutoffHigh() float64 {
	if c.FilterCutoffHigh == nil {
		return 0.0012
	}
	return *c.FilterCutoffHigh
}

// GetDetrend returns the detrend value or the default.
func (c *RunConfig) GetDetrend() bool {
	if c.Detrend == nil {
		return true
	}
	return *c.Detrend
}

// GetHanningWindowSpace returns the hanning_window_space value or the default.
func (c *RunConfig) GetHanningWindowSpace() bool {
	if c.HanningWindowSpace == nil {
		return true
	}
	return *c.HanningWindowSpace
}

// GetHanningWindowTime returns the hanning_window_time value or the default.
func (c *RunConfig) GetHanningWindowTime() bool {
	if c.HanningWindowTime == nil {
		return true
	}
	return *c.HanningWindowTime
}

// GetZeropad returns the zeropad value or the default.
func (c *RunConfig) GetZeropad() bool {
	if c.Zeropad == nil {
		return true
	}
	return *c.Zeropad
}

// GetKxMax returns the kx bound of the wavenumber surface (1/km).
func (c *RunConfig) GetKxMax() float64 {
	if c.KxMax == nil {
		return 0.05
	}
	return *c.KxMax
}

// GetKyMax returns the ky bound of the wavenumber surface (1/km).
func (c *RunConfig) GetKyMax() float64 {
	if c.KyMax == nil {
		return 0.05
	}
	return *c.KyMax
}

// GetAutodetectThreshold returns the signal detection threshold.
func (c *RunConfig) GetAutodetectThreshold() float64 {
	if c.AutodetectThreshold == nil {
		return 0.35
	}
	return *c.AutodetectThreshold
}

// GetNeighborhood returns the detection neighbourhood (kx, ky) in pixels.
func (c *RunConfig) GetNeighborhood() [2]int {
	if c.Neighborhood == nil {
		return [2]int{10, 10}
	}
	return *c.Neighborhood
}

// GetListName returns the summary-store grouping list, if any.
func (c *RunConfig) GetListName() string {
	if c.ListName == nil {
		return ""
	}
	return *c.ListName
}

// GetDBName returns the summary store name; empty disables the store.
func (c *RunConfig) GetDBName() string {
	if c.DBName == nil {
		return "mstid"
	}
	return *c.DBName
}

// GetStorePort returns the summary store port.
func (c *RunConfig) GetStorePort() int {
	if c.StorePort == nil {
		return 27017
	}
	return *c.StorePort
}

// GetMarkerFilename returns the completion-marker file name.
func (c *RunConfig) GetMarkerFilename() string {
	if c.MarkerFilename == nil || *c.MarkerFilename == "" {
		return DefaultMarkerFilename
	}
	return *c.MarkerFilename
}
