package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/fsutil"
	"github.com/banshee-data/mstid/internal/music"
)

// RecordTimeFormat is how times appear in the human-readable run record and
// in init param files.
const RecordTimeFormat = "2006-01-02 15:04:05"

// Timestamp is a UTC time that renders as RecordTimeFormat in JSON and as a
// native timestamp in msgpack.
type Timestamp struct{ time.Time }

// NewTimestamp wraps t in UTC.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{t.UTC()} }

// MarshalJSON renders the time as "YYYY-MM-DD HH:MM:SS".
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(RecordTimeFormat))
}

// UnmarshalJSON parses RecordTimeFormat.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(RecordTimeFormat, s, time.UTC)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

var (
	_ msgpack.CustomEncoder = Timestamp{}
	_ msgpack.CustomDecoder = (*Timestamp)(nil)
)

// EncodeMsgpack writes the msgpack timestamp extension.
func (t Timestamp) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeTime(t.UTC())
}

// DecodeMsgpack reads the msgpack timestamp extension.
func (t *Timestamp) DecodeMsgpack(dec *msgpack.Decoder) error {
	tm, err := dec.DecodeTime()
	if err != nil {
		return err
	}
	t.Time = tm.UTC()
	return nil
}

// RunRecord captures every parameter of one event run, so the run can be
// reproduced and audited. It is written before any stage executes.
type RunRecord struct {
	RunID string    `json:"run_id" msgpack:"run_id"`
	Radar string    `json:"radar" msgpack:"radar"`
	STime Timestamp `json:"sTime" msgpack:"sTime"`
	ETime Timestamp `json:"eTime" msgpack:"eTime"`

	BeamLimits [2]*int `json:"beam_limits" msgpack:"beam_limits"`
	GateLimits [2]*int `json:"gate_limits" msgpack:"gate_limits"`

	InterpResolution float64 `json:"interp_resolution" msgpack:"interp_resolution"`
	FilterNumtaps    int     `json:"filter_numtaps" msgpack:"filter_numtaps"`
	FilterCutoffLow  float64 `json:"filter_cutoff_low" msgpack:"filter_cutoff_low"`
	FilterCutoffHigh float64 `json:"filter_cutoff_high" msgpack:"filter_cutoff_high"`

	Detrend            bool `json:"detrend" msgpack:"detrend"`
	HanningWindowSpace bool `json:"hanning_window_space" msgpack:"hanning_window_space"`
	HanningWindowTime  bool `json:"hanning_window_time" msgpack:"hanning_window_time"`
	Zeropad            bool `json:"zeropad" msgpack:"zeropad"`

	KxMax               float64 `json:"kx_max" msgpack:"kx_max"`
	KyMax               float64 `json:"ky_max" msgpack:"ky_max"`
	AutodetectThreshold float64 `json:"autodetect_threshold" msgpack:"autodetect_threshold"`
	Neighborhood        [2]int  `json:"neighborhood" msgpack:"neighborhood"`

	MusicPath   string `json:"music_path" msgpack:"music_path"`
	DataPath    string `json:"data_path" msgpack:"data_path"`
	PicklePath  string `json:"pickle_path" msgpack:"pickle_path"`
	RunfilePath string `json:"runfile_path" msgpack:"runfile_path"`
}

// NewRunRecord fills a record from the event key, the final gate and beam
// limits and the run configuration. Paths are filled from the store.
func (s *Store) NewRunRecord(k music.EventKey, beams, gates [2]*int, cfg *config.RunConfig) *RunRecord {
	return &RunRecord{
		RunID:               uuid.NewString(),
		Radar:               k.Site,
		STime:               NewTimestamp(k.STime),
		ETime:               NewTimestamp(k.ETime),
		BeamLimits:          beams,
		GateLimits:          gates,
		InterpResolution:    cfg.GetInterpResolution().Seconds(),
		FilterNumtaps:       cfg.GetFilterNumtaps(),
		FilterCutoffLow:     cfg.GetFilterCutoffLow(),
		FilterCutoffHigh:    cfg.GetFilterCutoffHigh(),
		Detrend:             cfg.GetDetrend(),
		HanningWindowSpace:  cfg.GetHanningWindowSpace(),
		HanningWindowTime:   cfg.GetHanningWindowTime(),
		Zeropad:             cfg.GetZeropad(),
		KxMax:               cfg.GetKxMax(),
		KyMax:               cfg.GetKyMax(),
		AutodetectThreshold: cfg.GetAutodetectThreshold(),
		Neighborhood:        cfg.GetNeighborhood(),
		MusicPath:           s.EventDir(k),
		DataPath:            s.dataPath,
		PicklePath:          s.SnapshotPath(k),
		RunfilePath:         s.RunfilePath(k),
	}
}

// WriteRunRecord writes the record in its reloadable msgpack form and as
// indented JSON with sorted keys. A later write for the same event replaces
// both files.
func (s *Store) WriteRunRecord(k music.EventKey, rec *RunRecord) error {
	if err := s.PrepareEventDir(k, false); err != nil {
		return err
	}
	bin, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.fs, s.RunfilePath(k), bin, 0644); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}

	text, err := sortedJSON(rec)
	if err != nil {
		return fmt.Errorf("render run record: %w", err)
	}
	if err := s.fs.WriteFile(s.RunfileJSONPath(k), text, 0644); err != nil {
		return fmt.Errorf("write run record json: %w", err)
	}
	return nil
}

// ReadRunRecord reloads the msgpack run record. ok is false when none exists.
func (s *Store) ReadRunRecord(k music.EventKey) (rec *RunRecord, ok bool, err error) {
	bin, err := s.fs.ReadFile(s.RunfilePath(k))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read run record: %w", err)
	}
	rec = &RunRecord{}
	if err := msgpack.Unmarshal(bin, rec); err != nil {
		return nil, false, fmt.Errorf("decode run record: %w", err)
	}
	return rec, true, nil
}

// sortedJSON renders v with four-space indentation and keys in sorted order.
// Round-tripping through a map sorts the keys.
func sortedJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return json.MarshalIndent(m, "", "    ")
}
