package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/checkpoint"
)

func TestRunBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(testRadar())
	p := f.pipeline(ResumeRecompute)

	var jobs []Job
	for i := 0; i < 4; i++ {
		s := sTime.Add(time.Duration(i) * 24 * time.Hour)
		jobs = append(jobs, Job{Key: music.NewEventKey("bks", s, s.Add(2*time.Hour)), Config: testConfig(music.LevelRTI)})
	}
	bad := testConfig(music.LevelRTI)
	bad.KyMax = ptr(0.0)
	jobs = append(jobs, Job{Key: music.NewEventKey("fhe", sTime, eTime), Config: bad, Source: "bad.init.json"})

	results, err := p.RunBatch(context.Background(), jobs, 3)
	require.Error(t, err, "the invalid job fails")
	assert.ErrorContains(t, err, "ky_max")
	require.Len(t, results, 5)
	for i := 0; i < 4; i++ {
		require.NotNil(t, results[i], "job %d", i)
		assert.Equal(t, jobs[i].Key, results[i].Key)
		assert.Equal(t, music.LevelRTI, results[i].Level)
	}
	assert.Nil(t, results[4])
	assert.Equal(t, 4, f.loader.calls)
}

func TestRunBatch_DuplicateKeys(t *testing.T) {
	t.Parallel()

	f := newFixture(testRadar())
	jobs := []Job{
		{Key: key, Config: testConfig(music.LevelRTI), Source: "a.init.json"},
		{Key: music.NewEventKey("BKS", sTime, eTime), Config: testConfig(music.LevelMUSIC), Source: "b.init.json"},
	}
	_, err := f.pipeline(ResumeRecompute).RunBatch(context.Background(), jobs, 2)
	require.ErrorIs(t, err, ErrDuplicateEvent)
	assert.ErrorContains(t, err, "a.init.json")
	assert.Zero(t, f.loader.calls, "nothing runs when the batch is invalid")
}

func TestRunBatch_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(testRadar())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := f.pipeline(ResumeRecompute).RunBatch(ctx, []Job{{Key: key, Config: testConfig(music.LevelRTI)}}, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results[0])
	assert.Zero(t, f.loader.calls)
}

func TestRunInitParamFile(t *testing.T) {
	t.Parallel()

	f := newFixture(testRadar())
	dir := checkpoint.NewInitParamsDir(f.fs, "/init")
	path, err := dir.Write(checkpoint.NewInitParams("BKS", sTime, eTime, testConfig(music.LevelRTI)), "run1_")
	require.NoError(t, err)

	res, err := f.pipeline(ResumeRecompute).RunInitParamFile(context.Background(), dir, path)
	require.NoError(t, err)
	assert.Equal(t, key, res.Key)
	assert.Equal(t, music.LevelRTI, res.Level)

	_, err = f.pipeline(ResumeRecompute).RunInitParamFile(context.Background(), dir, "/init/missing.init.json")
	assert.Error(t, err)
}

func TestLoadJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(testRadar())
	dir := checkpoint.NewInitParamsDir(f.fs, "/init")
	for i := 0; i < 3; i++ {
		s := sTime.Add(time.Duration(i) * time.Hour)
		_, err := dir.Write(checkpoint.NewInitParams("bks", s, s.Add(2*time.Hour), testConfig(music.LevelRTI)), "")
		require.NoError(t, err)
	}
	paths, err := dir.List()
	require.NoError(t, err)

	jobs, err := LoadJobs(dir, paths)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, key, jobs[0].Key)
	assert.Equal(t, paths[0], jobs[0].Source)
	assert.Equal(t, music.LevelRTI, jobs[0].Config.GetProcessLevel())
	assert.Equal(t, "/music", jobs[0].Config.GetDataPath())
}
