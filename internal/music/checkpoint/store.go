// Package checkpoint persists per-event processing state so an interrupted
// batch can be resumed: the run record, the completion marker, the working
// set snapshot, the message log and the text report. Pending-run descriptors
// live in a separate init-params directory (see InitParamsDir).
//
// Layout under the data path:
//
//	<data_path>/<site>/<start>-<end>/
//	    <site>-<start>-<end>.snapshot.gz
//	    <site>-<start>-<end>.runfile.msgpack
//	    <site>-<start>-<end>.runfile.json
//	    processing_level_completed.txt
//	    messages.txt
//	    karr.txt
//
// A Store assumes one writer per event key. Nothing here locks.
package checkpoint

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/banshee-data/mstid/internal/fsutil"
	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/security"
)

// File names inside an event directory.
const (
	DefaultMarkerFilename = "processing_level_completed.txt"
	MessagesFilename      = "messages.txt"
	ReportFilename        = "karr.txt"

	snapshotSuffix    = ".snapshot.gz"
	runfileSuffix     = ".runfile.msgpack"
	runfileJSONSuffix = ".runfile.json"
)

var logf = monitoring.Component("Checkpoint")

// Store reads and writes checkpoint files for events under one data path.
type Store struct {
	fs             fsutil.FileSystem
	dataPath       string
	markerFilename string
}

// NewStore creates a Store rooted at dataPath. A nil fsys uses the OS.
func NewStore(fsys fsutil.FileSystem, dataPath string) *Store {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Store{fs: fsys, dataPath: dataPath, markerFilename: DefaultMarkerFilename}
}

// WithMarkerFilename returns a copy of the store using a different marker file.
func (s *Store) WithMarkerFilename(name string) *Store {
	cp := *s
	if name != "" {
		cp.markerFilename = name
	}
	return &cp
}

// DataPath returns the root the store writes under.
func (s *Store) DataPath() string { return s.dataPath }

// EventDir returns <data_path>/<site>/<start>-<end>.
func (s *Store) EventDir(k music.EventKey) string {
	return filepath.Join(s.dataPath, strings.ToLower(k.Site), k.Window())
}

// SnapshotPath returns the path of the working-set snapshot.
func (s *Store) SnapshotPath(k music.EventKey) string {
	return filepath.Join(s.EventDir(k), k.BaseName()+snapshotSuffix)
}

// RunfilePath returns the path of the reloadable run record.
func (s *Store) RunfilePath(k music.EventKey) string {
	return filepath.Join(s.EventDir(k), k.BaseName()+runfileSuffix)
}

// RunfileJSONPath returns the path of the human-readable run record.
func (s *Store) RunfileJSONPath(k music.EventKey) string {
	return filepath.Join(s.EventDir(k), k.BaseName()+runfileJSONSuffix)
}

// MarkerPath returns the path of the completion marker.
func (s *Store) MarkerPath(k music.EventKey) string {
	return filepath.Join(s.EventDir(k), s.markerFilename)
}

// FilePath returns the path of an arbitrary file in the event directory.
func (s *Store) FilePath(k music.EventKey, name string) string {
	return filepath.Join(s.EventDir(k), name)
}

// PrepareEventDir creates the event directory. With clear set, any previous
// contents are removed first.
func (s *Store) PrepareEventDir(k music.EventKey, clear bool) error {
	dir := s.EventDir(k)
	if clear {
		if err := s.fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
	}
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// MarkCompleted overwrites the completion marker with level. The marker holds
// a single label; no history is kept.
func (s *Store) MarkCompleted(k music.EventKey, level music.Level) error {
	if err := s.PrepareEventDir(k, false); err != nil {
		return err
	}
	label, err := level.MarshalText()
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.fs, s.MarkerPath(k), label, 0644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// ReadCompleted returns the level recorded in the marker, or LevelNone when
// no marker exists. A marker holding an unknown label is an error.
func (s *Store) ReadCompleted(k music.EventKey) (music.Level, error) {
	data, err := s.fs.ReadFile(s.MarkerPath(k))
	if errors.Is(err, fs.ErrNotExist) {
		return music.LevelNone, nil
	}
	if err != nil {
		return music.LevelNone, fmt.Errorf("read marker: %w", err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	level, err := music.ParseLevel(line)
	if err != nil {
		return music.LevelNone, fmt.Errorf("marker %s: %w", s.MarkerPath(k), err)
	}
	return level, nil
}

// SaveSnapshot writes the working set as gzip-compressed gob.
func (s *Store) SaveSnapshot(k music.EventKey, ws *music.WorkingSet) error {
	if ws == nil {
		return fmt.Errorf("save snapshot %s: nil working set", k)
	}
	if err := s.PrepareEventDir(k, false); err != nil {
		return err
	}
	blob, err := encodeSnapshot(ws)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.fs, s.SnapshotPath(k), blob, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logf("saved snapshot %s: datasets=%d size=%d bytes", k, len(ws.Sets), len(blob))
	return nil
}

// LoadSnapshot reads the working set. ok is false when no snapshot exists.
func (s *Store) LoadSnapshot(k music.EventKey) (ws *music.WorkingSet, ok bool, err error) {
	blob, err := s.fs.ReadFile(s.SnapshotPath(k))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	ws, err = decodeSnapshot(blob)
	if err != nil {
		return nil, false, err
	}
	return ws, true, nil
}

// WriteMessages replaces the event message log.
func (s *Store) WriteMessages(k music.EventKey, lines []string) error {
	return s.WriteFile(k, MessagesFilename, []byte(strings.Join(lines, "\n")))
}

// WriteFile writes a named file into the event directory.
func (s *Store) WriteFile(k music.EventKey, name string, data []byte) error {
	if err := security.ValidateFileName(name); err != nil {
		return err
	}
	if err := s.PrepareEventDir(k, false); err != nil {
		return err
	}
	if err := s.fs.WriteFile(s.FilePath(k, name), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadFile reads a named file from the event directory.
func (s *Store) ReadFile(k music.EventKey, name string) ([]byte, error) {
	if err := security.ValidateFileName(name); err != nil {
		return nil, err
	}
	return s.fs.ReadFile(s.FilePath(k, name))
}

func encodeSnapshot(ws *music.WorkingSet) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(ws); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(blob []byte) (*music.WorkingSet, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty snapshot blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var ws music.WorkingSet
	if err := gob.NewDecoder(gz).Decode(&ws); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &ws, nil
}
