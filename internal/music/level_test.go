package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelOrdering(t *testing.T) {
	t.Parallel()

	labels := []string{"none", "rti", "rti_interp", "fft", "music"}
	for i, a := range labels {
		for j, b := range labels {
			la, lb := LevelOf(a), LevelOf(b)
			assert.Equal(t, i < j, la < lb, "%s < %s", a, b)
			assert.Equal(t, i == j, la == lb, "%s == %s", a, b)
			assert.Equal(t, i >= j, la >= lb, "%s >= %s", a, b)
		}
	}
}

func TestLevelOf_UnknownRanksAsNone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LevelOf("none"), LevelOf("bogus"))
	assert.Equal(t, LevelOf("bogus"), LevelOf("also-bogus"))
	assert.Equal(t, 0, LevelOf("bogus").Rank())
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label   string
		want    Level
		wantErr bool
	}{
		{"none", LevelNone, false},
		{"None", LevelNone, false},
		{"", LevelNone, false},
		{"rti", LevelRTI, false},
		{"rti_interp\n", LevelRTIInterp, false},
		{"fft", LevelFFT, false},
		{"music", LevelMUSIC, false},
		{"MUSIC", LevelNone, true},
		{"bogus", LevelNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseLevel(tt.label)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelText(t *testing.T) {
	t.Parallel()

	for _, l := range Levels() {
		b, err := l.MarshalText()
		require.NoError(t, err)

		var back Level
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, l, back)
	}

	_, err := Level(9).MarshalText()
	assert.ErrorIs(t, err, ErrUnknownLevel)
	assert.Equal(t, "level(9)", Level(9).String())
}
