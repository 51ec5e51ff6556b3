package loader

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/mstid/internal/fsutil"
	"github.com/banshee-data/mstid/internal/music"
)

// ArchiveSuffix ends every archived raw-data file name.
const ArchiveSuffix = ".rti.gz"

// Archive is one file of raw backscatter power for a site, usually one UT day.
// Data is NT x NB x NG with NaN where no scatter was recorded.
type Archive struct {
	Site     string
	FovModel string
	Time     []time.Time
	FOV      music.FOV
	Data     music.Array3
}

// ArchiveName returns "<YYYYMMDD>.<site>.rti.gz" for the day containing t.
func ArchiveName(site string, t time.Time) string {
	return t.UTC().Format("20060102") + "." + strings.ToLower(site) + ArchiveSuffix
}

// ArchivePaths lists the daily archive paths under dir that may hold samples
// in [sTime, eTime].
func ArchivePaths(dir, site string, sTime, eTime time.Time) []string {
	var out []string
	day := sTime.UTC().Truncate(24 * time.Hour)
	for !day.After(eTime) {
		out = append(out, filepath.Join(dir, ArchiveName(site, day)))
		day = day.Add(24 * time.Hour)
	}
	return out
}

// Validate checks the array and time vector agree.
func (a *Archive) Validate() error {
	if a.Data.NT != len(a.Time) {
		return fmt.Errorf("archive %s: %d samples but %d times", a.Site, a.Data.NT, len(a.Time))
	}
	if len(a.Data.Values) != a.Data.NT*a.Data.NB*a.Data.NG {
		return fmt.Errorf("archive %s: array holds %d values, want %dx%dx%d",
			a.Site, len(a.Data.Values), a.Data.NT, a.Data.NB, a.Data.NG)
	}
	return nil
}

// WriteArchive stores a as gzip-compressed gob.
func WriteArchive(fsys fsutil.FileSystem, path string, a *Archive) error {
	if err := a.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(a); err != nil {
		gz.Close()
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0644)
}

// ReadArchive loads an archive written by WriteArchive.
func ReadArchive(fsys fsutil.FileSystem, path string) (*Archive, error) {
	blob, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer gz.Close()

	var a Archive
	if err := gob.NewDecoder(gz).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
