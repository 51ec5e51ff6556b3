package music

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventKey(t *testing.T) {
	t.Parallel()

	s := time.Date(2014, 11, 1, 14, 0, 0, 0, time.UTC)
	k := NewEventKey("BKS", s, s.Add(2*time.Hour))

	assert.Equal(t, "bks", k.Site)
	assert.Equal(t, "20141101.1400-20141101.1600", k.Window())
	assert.Equal(t, "bks-20141101.1400-20141101.1600", k.BaseName())
	assert.NoError(t, k.Validate())

	assert.Error(t, NewEventKey("", s, s.Add(time.Hour)).Validate())
	assert.Error(t, NewEventKey("bks", s, s).Validate())
	assert.Error(t, NewEventKey("../bks", s, s.Add(time.Hour)).Validate())
}
