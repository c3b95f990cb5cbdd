// Package broker coordinates pipeline runs coming from the CLI, the HTTP API
// and NATS run requests. It caps how many runs execute at once and records
// the outcome of every run in the store and on the event bus.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/MikeSquared-Agency/Prioritizer/internal/hermes"
	"github.com/MikeSquared-Agency/Prioritizer/internal/pipeline"
	"github.com/MikeSquared-Agency/Prioritizer/internal/store"
)

// Job is one requested run.
type Job struct {
	Input pipeline.Input
	// Params replace the broker defaults when set.
	Params *pipeline.Params
	// Sinks receive the result in addition to the store and event sinks.
	Sinks []pipeline.Sink
}

type Options struct {
	Concurrency int
	Timeout     time.Duration
}

type Broker struct {
	store  store.Store
	hermes hermes.Client
	params pipeline.Params
	opts   Options
	logger *slog.Logger

	sem *semaphore.Weighted
}

// New builds a broker. s and h may be nil to run without persistence or
// events. params are validated here so a bad configuration fails at startup.
func New(s store.Store, h hermes.Client, params pipeline.Params, opts Options, logger *slog.Logger) (*Broker, error) {
	if _, err := pipeline.New(params, logger); err != nil {
		return nil, err
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &Broker{
		store:  s,
		hermes: h,
		params: params,
		opts:   opts,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(opts.Concurrency)),
	}, nil
}

// Params returns the default run parameters.
func (b *Broker) Params() pipeline.Params { return b.params }

// Run executes job once a run slot is free. A sink failure is returned
// together with the result.
func (b *Broker) Run(ctx context.Context, job Job) (*pipeline.Result, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)

	params := b.params
	if job.Params != nil {
		params = *job.Params
	}
	var sinks []pipeline.Sink
	if b.store != nil {
		sinks = append(sinks, store.Sink{Store: b.store})
	}
	if b.hermes != nil {
		sinks = append(sinks, hermes.Publisher{Client: b.hermes})
	}
	sinks = append(sinks, job.Sinks...)

	p, err := pipeline.New(params, b.logger, sinks...)
	if err != nil {
		b.fail(ctx, job.Input.Name, err)
		return nil, err
	}
	runCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	res, err := p.Run(runCtx, job.Input)
	if res == nil {
		b.fail(ctx, job.Input.Name, err)
		return nil, err
	}
	return res, err
}

// RunAll runs every job with at most Concurrency in flight. A failing job
// does not stop the others; its error is joined into the returned error and
// its result slot is nil.
func (b *Broker) RunAll(ctx context.Context, jobs []Job) ([]*pipeline.Result, error) {
	results := make([]*pipeline.Result, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(b.opts.Concurrency)
	for i := range jobs {
		i := i
		g.Go(func() error {
			res, err := b.Run(ctx, jobs[i])
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", jobName(jobs[i], i), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

// Listen serves run requests from NATS until the client is closed.
func (b *Broker) Listen() error {
	if b.hermes == nil {
		return errors.New("no event client configured")
	}
	return hermes.ListenRunRequests(b.hermes, b.opts.Timeout, b.logger, func(ctx context.Context, req hermes.RunRequestEvent) error {
		params, err := b.params.Overlay(req.Params)
		if err != nil {
			b.fail(ctx, req.Input.Name, err)
			return err
		}
		_, err = b.Run(ctx, Job{Input: req.Input, Params: &params})
		return err
	})
}

// fail records a run that produced no result.
func (b *Broker) fail(ctx context.Context, name string, err error) {
	if err == nil {
		return
	}
	run := store.FailedRun(name, err)
	b.logger.Warn("run failed", "run_id", run.ID, "name", name, "error", err)
	if b.store != nil {
		if serr := b.store.SaveRun(context.WithoutCancel(ctx), run); serr != nil {
			b.logger.Error("failed to record failed run", "run_id", run.ID, "error", serr)
		}
	}
	if b.hermes != nil {
		if perr := (hermes.Publisher{Client: b.hermes}).Failed(run.ID.String(), name, err); perr != nil {
			b.logger.Error("failed to publish run failure", "run_id", run.ID, "error", perr)
		}
	}
}

func jobName(j Job, i int) string {
	if j.Input.Name != "" {
		return j.Input.Name
	}
	return fmt.Sprintf("job %d", i)
}
