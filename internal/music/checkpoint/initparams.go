package checkpoint

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/fsutil"
	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/security"
)

const initParamsSuffix = ".init.json"

// InitParams describes one pending run: the event plus the configuration it
// should run with.
type InitParams struct {
	Radar string    `json:"radar"`
	STime Timestamp `json:"sTime"`
	ETime Timestamp `json:"eTime"`
	config.RunConfig
}

// Key returns the event key the params describe.
func (p *InitParams) Key() music.EventKey {
	return music.NewEventKey(p.Radar, p.STime.Time, p.ETime.Time)
}

// NewInitParams builds pending-run params for an event. A nil cfg uses
// defaults for every parameter.
func NewInitParams(site string, sTime, eTime time.Time, cfg *config.RunConfig) *InitParams {
	p := &InitParams{
		Radar: strings.ToLower(site),
		STime: NewTimestamp(sTime),
		ETime: NewTimestamp(eTime),
	}
	if cfg != nil {
		p.RunConfig = *cfg
	}
	return p
}

// InitParamsDir holds pending-run descriptors, one JSON file per event.
type InitParamsDir struct {
	fs  fsutil.FileSystem
	dir string
}

// NewInitParamsDir opens dir. A nil fsys uses the OS.
func NewInitParamsDir(fsys fsutil.FileSystem, dir string) *InitParamsDir {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &InitParamsDir{fs: fsys, dir: dir}
}

// Dir returns the directory path.
func (d *InitParamsDir) Dir() string { return d.dir }

// Reset removes every pending descriptor and recreates an empty directory.
func (d *InitParamsDir) Reset() error {
	if err := d.fs.RemoveAll(d.dir); err != nil {
		return fmt.Errorf("clear init params: %w", err)
	}
	return d.fs.MkdirAll(d.dir, 0755)
}

// Write stores p as <prefix><site>-<start>-<end>.init.json and returns the path.
func (d *InitParamsDir) Write(p *InitParams, prefix string) (string, error) {
	if err := p.Key().Validate(); err != nil {
		return "", err
	}
	if err := p.RunConfig.Validate(); err != nil {
		return "", fmt.Errorf("init params %s: %w", p.Key(), err)
	}
	if prefix != "" {
		if err := security.ValidateFileName(prefix); err != nil {
			return "", fmt.Errorf("init params prefix: %w", err)
		}
	}
	if err := d.fs.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("create init params dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode init params: %w", err)
	}
	path := filepath.Join(d.dir, prefix+p.Key().BaseName()+initParamsSuffix)
	if err := fsutil.WriteFileAtomic(d.fs, path, data, 0644); err != nil {
		return "", fmt.Errorf("write init params: %w", err)
	}
	return path, nil
}

// Read loads and validates one descriptor.
func (d *InitParamsDir) Read(path string) (*InitParams, error) {
	data, err := d.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read init params: %w", err)
	}
	var p InitParams
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse init params %s: %w", path, err)
	}
	if err := p.Key().Validate(); err != nil {
		return nil, fmt.Errorf("init params %s: %w", path, err)
	}
	if err := p.RunConfig.Validate(); err != nil {
		return nil, fmt.Errorf("init params %s: %w", path, err)
	}
	return &p, nil
}

// List returns the paths of all descriptors in name order.
func (d *InitParamsDir) List() ([]string, error) {
	names, err := d.fs.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("list init params: %w", err)
	}
	var paths []string
	for _, n := range names {
		if strings.HasSuffix(n, initParamsSuffix) {
			paths = append(paths, filepath.Join(d.dir, n))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
