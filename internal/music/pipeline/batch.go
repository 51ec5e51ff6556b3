package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/music"
	"github.com/banshee-data/mstid/internal/music/checkpoint"
)

// ErrDuplicateEvent is returned by RunBatch when two jobs share an event key.
var ErrDuplicateEvent = errors.New("duplicate event in batch")

// Job is one event to run.
type Job struct {
	Key    music.EventKey
	Config *config.RunConfig
	Source string // init-params file the job came from, if any
}

// JobFromInitParams turns a pending-run descriptor into a job.
func JobFromInitParams(p *checkpoint.InitParams, source string) Job {
	cfg := p.RunConfig
	return Job{Key: p.Key(), Config: &cfg, Source: source}
}

// LoadJobs reads every path from dir into jobs.
func LoadJobs(dir *checkpoint.InitParamsDir, paths []string) ([]Job, error) {
	jobs := make([]Job, 0, len(paths))
	for _, path := range paths {
		p, err := dir.Read(path)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, JobFromInitParams(p, path))
	}
	return jobs, nil
}

// RunInitParamFile reads one pending-run descriptor and runs it.
func (p *Pipeline) RunInitParamFile(ctx context.Context, dir *checkpoint.InitParamsDir, path string) (*Result, error) {
	params, err := dir.Read(path)
	if err != nil {
		return nil, err
	}
	job := JobFromInitParams(params, path)
	return p.Run(ctx, job.Key, job.Config)
}

// RunBatch runs jobs with at most workers events in flight. Each event is
// independent: a failure is collected and the remaining events still run.
// Results are in job order; a failed job leaves a nil entry. The returned
// error joins every per-event failure.
func (p *Pipeline) RunBatch(ctx context.Context, jobs []Job, workers int) ([]*Result, error) {
	seen := make(map[string]string, len(jobs))
	for _, j := range jobs {
		id := j.Key.String()
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s (%s and %s)", ErrDuplicateEvent, id, prev, j.Source)
		}
		seen[id] = j.Source
	}
	if workers < 1 {
		workers = 1
	}

	start := p.clock.Now()
	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", j.Key, err)
				return nil
			}
			res, err := p.Run(ctx, j.Key, j.Config)
			if err != nil {
				logf("%s: failed: %v", j.Key, err)
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	var done, rejected, skipped int
	for _, r := range results {
		switch {
		case r == nil:
		case r.Skipped:
			skipped++
		case r.Rejection.Rejected():
			rejected++
		default:
			done++
		}
	}
	logf("batch finished in %s: %d events, %d processed, %d rejected, %d skipped, %d failed",
		p.clock.Since(start).Round(time.Millisecond), len(jobs), done, rejected, skipped, len(jobs)-done-rejected-skipped)
	return results, errors.Join(errs...)
}
