package music

import (
	"errors"
	"fmt"
	"strings"
)

// Level is a processing stage. Levels are totally ordered: a larger Level has
// completed (or is requesting) strictly more of the pipeline than a smaller one.
type Level int

const (
	LevelNone Level = iota
	LevelRTI
	LevelRTIInterp
	LevelFFT
	LevelMUSIC
)

// ErrUnknownLevel is returned by ParseLevel for labels outside the stage list.
var ErrUnknownLevel = errors.New("unknown process level")

var levelLabels = [...]string{
	LevelNone:      "none",
	LevelRTI:       "rti",
	LevelRTIInterp: "rti_interp",
	LevelFFT:       "fft",
	LevelMUSIC:     "music",
}

// Levels returns every stage in processing order.
func Levels() []Level {
	return []Level{LevelNone, LevelRTI, LevelRTIInterp, LevelFFT, LevelMUSIC}
}

// String returns the label written to completion markers.
func (l Level) String() string {
	if l < LevelNone || l > LevelMUSIC {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelLabels[l]
}

// Rank is the index of the level in the stage list.
func (l Level) Rank() int { return int(l) }

// Valid reports whether l is one of the five stages.
func (l Level) Valid() bool { return l >= LevelNone && l <= LevelMUSIC }

// ParseLevel maps a label to its Level. "None" (the label older marker files
// carry) and an empty string both parse as LevelNone. Anything else outside
// the stage list is an error.
func ParseLevel(label string) (Level, error) {
	s := strings.TrimSpace(label)
	if s == "" || s == "None" {
		return LevelNone, nil
	}
	for i, name := range levelLabels {
		if s == name {
			return Level(i), nil
		}
	}
	return LevelNone, fmt.Errorf("%w: %q", ErrUnknownLevel, label)
}

// LevelOf is the lenient form of ParseLevel: unrecognised labels rank as
// LevelNone, so LevelOf("bogus") == LevelOf("none").
func LevelOf(label string) Level {
	l, err := ParseLevel(label)
	if err != nil {
		return LevelNone
	}
	return l
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
