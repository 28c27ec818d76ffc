package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"mediashelf/internal/config"
	"mediashelf/internal/logging"
	"mediashelf/internal/metrics"
	"mediashelf/internal/registry"
)

// Job names, used as the metrics label
const (
	JobTrashPurge = "trash-purge"
)

// LibrarySource lists the libraries the jobs run against
type LibrarySource interface {
	Libraries() []*registry.Library
}

// Scheduler runs periodic maintenance over every open library
type Scheduler struct {
	cron      *cron.Cron
	libs      LibrarySource
	retention time.Duration
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewScheduler registers the jobs enabled by cfg. A zero trash retention
// disables the trash purge.
func NewScheduler(libs LibrarySource, cfg config.JobsConfig, m *metrics.Metrics) (*Scheduler, error) {
	if m == nil {
		m = metrics.Default()
	}
	s := &Scheduler{
		libs:      libs,
		retention: cfg.TrashRetention,
		metrics:   m,
		log:       *logging.WithModule("jobs"),
	}
	clog := cronLogger{log: s.log}
	s.cron = cron.New(cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)), cron.WithLogger(clog))

	if s.retention > 0 {
		if cfg.PurgeSchedule == "" {
			return nil, errors.New("trash purge needs a schedule")
		}
		if _, err := s.cron.AddFunc(cfg.PurgeSchedule, func() {
			_, _ = s.PurgeTrash(context.Background())
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Jobs returns how many jobs are scheduled
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx ends
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PurgeTrash permanently deletes media trashed longer than the retention from
// every library. Failures in one library do not stop the others.
func (s *Scheduler) PurgeTrash(ctx context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	start := time.Now()

	var (
		total int
		errs  []error
	)
	for _, lib := range s.libs.Libraries() {
		n, err := lib.Store.PurgeTrash(ctx, s.retention)
		total += n
		if err != nil {
			s.log.Error().Err(err).Str("library", lib.Root).Msg("Trash purge failed")
			errs = append(errs, err)
			continue
		}
		if n > 0 {
			s.log.Info().Str("library", lib.Root).Int("purged", n).Msg("Purged trash")
		}
	}

	status := "success"
	err := errors.Join(errs...)
	if err != nil {
		status = "error"
	}
	s.metrics.TrashPurgedTotal.Add(float64(total))
	s.metrics.JobDurationSeconds.WithLabelValues(JobTrashPurge, status).Observe(time.Since(start).Seconds())
	return total, err
}

// cronLogger routes cron's own logging to zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
