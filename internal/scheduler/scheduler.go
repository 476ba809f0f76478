// Package scheduler runs the integration jobs on a fixed interval and on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

var ErrUnknownJob = errors.New("unknown job")

const DefaultInterval = time.Hour

// Job is one independently runnable unit, e.g. "fi09-outbound".
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type Scheduler struct {
	jobs     []Job
	interval time.Duration
	log      *slog.Logger
}

// New checks that job names are unique. A zero interval means DefaultInterval.
func New(interval time.Duration, log *slog.Logger, jobs ...Job) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	if log == nil {
		log = slog.Default()
	}

	seen := make(map[string]bool, len(jobs))

	for _, j := range jobs {
		if seen[j.Name] {
			return nil, fmt.Errorf("duplicate job %q", j.Name)
		}

		seen[j.Name] = true
	}

	return &Scheduler{jobs: jobs, interval: interval, log: log}, nil
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}

	return names
}

// RunJob runs a single job by name.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	i := slices.IndexFunc(s.jobs, func(j Job) bool { return j.Name == name })
	if i < 0 {
		return fmt.Errorf("%q: %w", name, ErrUnknownJob)
	}

	return s.run(ctx, s.jobs[i])
}

// RunAll starts every job at once and waits for all of them. A failing job
// does not cancel the others; the first failure is returned.
func (s *Scheduler) RunAll(ctx context.Context) error {
	var g errgroup.Group

	for _, j := range s.jobs {
		g.Go(func() error { return s.run(ctx, j) })
	}

	return g.Wait()
}

func (s *Scheduler) run(ctx context.Context, j Job) error {
	start := time.Now()
	log := s.log.With("job", j.Name)

	log.Info("job started")

	if err := j.Run(ctx); err != nil {
		log.Error("job failed", "duration", time.Since(start), "error", err)
		return fmt.Errorf("job %s: %w", j.Name, err)
	}

	log.Info("job finished", "duration", time.Since(start))

	return nil
}

// Start runs every job immediately and then once per interval until ctx is
// done. Ticks that arrive while a round is still running are dropped.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "interval", s.interval, "jobs", len(s.jobs))

	for {
		_ = s.RunAll(ctx)

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DocJobs builds one job per document, named "<doc>-<kind>" in lower case.
func DocJobs(kind string, docs []sap.DocType, run func(ctx context.Context, doc sap.DocType) error) []Job {
	jobs := make([]Job, len(docs))

	for i, doc := range docs {
		jobs[i] = Job{
			Name: strings.ToLower(doc.String()) + "-" + kind,
			Run:  func(ctx context.Context) error { return run(ctx, doc) },
		}
	}

	return jobs
}

// Enabled keeps the jobs named in names. An empty list keeps all of them.
func Enabled(jobs []Job, names []string) ([]Job, error) {
	if len(names) == 0 {
		return jobs, nil
	}

	var out []Job

	for _, n := range names {
		n = strings.TrimSpace(n)

		i := slices.IndexFunc(jobs, func(j Job) bool { return j.Name == n })
		if i < 0 {
			return nil, fmt.Errorf("%q: %w", n, ErrUnknownJob)
		}

		out = append(out, jobs[i])
	}

	return out, nil
}
