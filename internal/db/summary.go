package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/dsp"
)

// timeFormat is how event times are keyed in the store.
const timeFormat = "2006-01-02 15:04:05"

// RunSummary is the reporting row for one event.
type RunSummary struct {
	Site      string
	STime     time.Time
	ETime     time.Time
	ListName  string
	StorePort int
	RunID     string

	Level          music.Level
	GoodPeriod     *bool
	RejectMessages []string
	GateLimits     *[2]int
	BeamLimits     *[2]int

	RTI          dsp.RTIStats
	DominantFreq float64
	Signals      []music.SignalDescriptor

	UpdatedAt time.Time
}

// Key returns the event key the summary belongs to.
func (s *RunSummary) Key() music.EventKey {
	return music.NewEventKey(s.Site, s.STime, s.ETime)
}

// UpsertRunSummary inserts or replaces the row for (site, sTime, eTime).
func (db *DB) UpsertRunSummary(s *RunSummary) error {
	rejects, err := json.Marshal(nonNil(s.RejectMessages))
	if err != nil {
		return fmt.Errorf("encode reject messages: %w", err)
	}
	sigs := s.Signals
	if sigs == nil {
		sigs = []music.SignalDescriptor{}
	}
	signals, err := json.Marshal(sigs)
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	k := s.Key()

	_, err = db.Exec(`
		INSERT INTO run_summaries (
			site, s_time, e_time, list_name, store_port, run_id, level,
			good_period, reject_message, gate_min, gate_max, beam_min, beam_max,
			orig_rti_cnt, orig_rti_possible, orig_rti_fraction,
			orig_rti_mean, orig_rti_median, orig_rti_std,
			signals, dominant_freq, signal_count, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (site, s_time, e_time) DO UPDATE SET
			list_name = excluded.list_name,
			store_port = excluded.store_port,
			run_id = excluded.run_id,
			level = excluded.level,
			good_period = excluded.good_period,
			reject_message = excluded.reject_message,
			gate_min = excluded.gate_min,
			gate_max = excluded.gate_max,
			beam_min = excluded.beam_min,
			beam_max = excluded.beam_max,
			orig_rti_cnt = excluded.orig_rti_cnt,
			orig_rti_possible = excluded.orig_rti_possible,
			orig_rti_fraction = excluded.orig_rti_fraction,
			orig_rti_mean = excluded.orig_rti_mean,
			orig_rti_median = excluded.orig_rti_median,
			orig_rti_std = excluded.orig_rti_std,
			signals = excluded.signals,
			dominant_freq = excluded.dominant_freq,
			signal_count = excluded.signal_count,
			updated_at = CURRENT_TIMESTAMP`,
		k.Site, k.STime.Format(timeFormat), k.ETime.Format(timeFormat),
		s.ListName, s.StorePort, s.RunID, s.Level.String(),
		nullBool(s.GoodPeriod), string(rejects),
		lo(s.GateLimits), hi(s.GateLimits), lo(s.BeamLimits), hi(s.BeamLimits),
		nullFloat(s.RTI.Count), nullFloat(s.RTI.Possible), nullFloat(s.RTI.Fraction),
		nullFloat(s.RTI.Mean), nullFloat(s.RTI.Median), nullFloat(s.RTI.Std),
		string(signals), nullFloat(s.DominantFreq), len(s.Signals),
	)
	if err != nil {
		return fmt.Errorf("upsert run summary %s: %w", k, err)
	}
	logf("upserted %s level=%s rejects=%d signals=%d", k, s.Level, len(s.RejectMessages), len(s.Signals))
	return nil
}

const summaryColumns = `
	site, s_time, e_time, list_name, store_port, run_id, level,
	good_period, reject_message, gate_min, gate_max, beam_min, beam_max,
	orig_rti_cnt, orig_rti_possible, orig_rti_fraction,
	orig_rti_mean, orig_rti_median, orig_rti_std,
	signals, dominant_freq, updated_at`

// GetRunSummary returns the row for an event. ok is false when none exists.
func (db *DB) GetRunSummary(k music.EventKey) (s *RunSummary, ok bool, err error) {
	row := db.QueryRow(`SELECT `+summaryColumns+` FROM run_summaries
		WHERE site = ? AND s_time = ? AND e_time = ?`,
		k.Site, k.STime.Format(timeFormat), k.ETime.Format(timeFormat))
	s, err = scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// ListRunSummaries returns every row of a grouping list ordered by site and
// start time. An empty listName returns all rows.
func (db *DB) ListRunSummaries(listName string) ([]*RunSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM run_summaries`
	var args []any
	if listName != "" {
		query += ` WHERE list_name = ?`
		args = append(args, listName)
	}
	query += ` ORDER BY site, s_time`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list run summaries: %w", err)
	}
	defer rows.Close()

	var out []*RunSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LevelCounts returns the number of events per completion level in a list.
func (db *DB) LevelCounts(listName string) (map[music.Level]int, error) {
	rows, err := db.Query(`SELECT level, COUNT(*) FROM run_summaries
		WHERE (? = '' OR list_name = ?) GROUP BY level`, listName, listName)
	if err != nil {
		return nil, fmt.Errorf("count levels: %w", err)
	}
	defer rows.Close()

	counts := make(map[music.Level]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[music.LevelOf(label)] += n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (*RunSummary, error) {
	var (
		s                          RunSummary
		sTime, eTime, level        string
		rejects, signals           string
		good                       sql.NullBool
		gMin, gMax, bMin, bMax     sql.NullInt64
		cnt, poss, frac, mean, med sql.NullFloat64
		std, dom                   sql.NullFloat64
		updated                    sql.NullString
	)
	err := row.Scan(&s.Site, &sTime, &eTime, &s.ListName, &s.StorePort, &s.RunID, &level,
		&good, &rejects, &gMin, &gMax, &bMin, &bMax,
		&cnt, &poss, &frac, &mean, &med, &std,
		&signals, &dom, &updated)
	if err != nil {
		return nil, err
	}
	if s.STime, err = time.Parse(timeFormat, sTime); err != nil {
		return nil, fmt.Errorf("parse s_time %q: %w", sTime, err)
	}
	if s.ETime, err = time.Parse(timeFormat, eTime); err != nil {
		return nil, fmt.Errorf("parse e_time %q: %w", eTime, err)
	}
	s.Level = music.LevelOf(level)
	if good.Valid {
		g := good.Bool
		s.GoodPeriod = &g
	}
	if err := json.Unmarshal([]byte(rejects), &s.RejectMessages); err != nil {
		return nil, fmt.Errorf("decode reject messages: %w", err)
	}
	if err := json.Unmarshal([]byte(signals), &s.Signals); err != nil {
		return nil, fmt.Errorf("decode signals: %w", err)
	}
	s.GateLimits = pair(gMin, gMax)
	s.BeamLimits = pair(bMin, bMax)
	s.RTI = dsp.RTIStats{
		Count: floatOrNaN(cnt), Possible: floatOrNaN(poss), Fraction: floatOrNaN(frac),
		Mean: floatOrNaN(mean), Median: floatOrNaN(med), Std: floatOrNaN(std),
	}
	s.DominantFreq = floatOrNaN(dom)
	if updated.Valid {
		s.UpdatedAt = parseUpdated(updated.String)
	}
	return &s, nil
}

// parseUpdated accepts the driver's RFC 3339 rendering of a TIMESTAMP column
// as well as SQLite's own CURRENT_TIMESTAMP text.
func parseUpdated(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, timeFormat} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// nullFloat maps non-finite values to NULL; SQLite has no NaN.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func lo(l *[2]int) sql.NullInt64 {
	if l == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(l[0]), Valid: true}
}

func hi(l *[2]int) sql.NullInt64 {
	if l == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(l[1]), Valid: true}
}

func pair(a, b sql.NullInt64) *[2]int {
	if !a.Valid || !b.Valid {
		return nil
	}
	return &[2]int{int(a.Int64), int(b.Int64)}
}
