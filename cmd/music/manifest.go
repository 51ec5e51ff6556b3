package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/music/checkpoint"
	"github.com/banshee-data/mstid/internal/security"
)

// Manifest lists events to queue as pending runs.
//
//	list_name: winter_2012
//	config: run.json
//	process_level: music
//	events:
//	  - radar: bks
//	    start: 2012-12-01 14:00
//	    end: 2012-12-01 16:00
type Manifest struct {
	ListName     string          `yaml:"list_name"`
	Config       string          `yaml:"config"` // relative to the manifest
	ProcessLevel string          `yaml:"process_level"`
	Events       []ManifestEvent `yaml:"events"`

	dir string
}

// ManifestEvent is one event in a manifest. ProcessLevel overrides the
// manifest-wide level.
type ManifestEvent struct {
	Radar        string `yaml:"radar"`
	Start        string `yaml:"start"`
	End          string `yaml:"end"`
	ProcessLevel string `yaml:"process_level"`
}

// LoadManifest reads a YAML event manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := &Manifest{dir: filepath.Dir(path)}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Events) == 0 {
		return nil, fmt.Errorf("manifest %s lists no events", path)
	}
	return m, nil
}

// InitParams builds one pending run per event. base supplies parameters the
// manifest does not set; a config file named by the manifest replaces it.
func (m *Manifest) InitParams(base *config.RunConfig) ([]*checkpoint.InitParams, error) {
	cfg := base
	if cfg == nil {
		cfg = config.EmptyRunConfig()
	}
	if m.Config != "" {
		path := m.Config
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.dir, path)
			if err := security.ValidatePathWithinDirectory(path, m.dir); err != nil {
				return nil, fmt.Errorf("manifest config: %w", err)
			}
		}
		var err error
		if cfg, err = config.LoadRunConfig(path); err != nil {
			return nil, err
		}
	}

	out := make([]*checkpoint.InitParams, 0, len(m.Events))
	for i, ev := range m.Events {
		s, err := parseTime(ev.Start)
		if err != nil {
			return nil, fmt.Errorf("event %d: start: %w", i, err)
		}
		e, err := parseTime(ev.End)
		if err != nil {
			return nil, fmt.Errorf("event %d: end: %w", i, err)
		}
		p := checkpoint.NewInitParams(ev.Radar, s, e, cfg)
		if m.ListName != "" {
			name := m.ListName
			p.ListName = &name
		}
		level := ev.ProcessLevel
		if level == "" {
			level = m.ProcessLevel
		}
		if level != "" {
			p.ProcessLevel = &level
		}
		if err := p.Key().Validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}
