package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StagingSweep removes staged uploads older than MaxAge. Files that match
// Pattern and are still young belong to in-flight requests and are kept.
type StagingSweep struct {
	Dir     string
	Pattern string
	MaxAge  time.Duration
}

type Scheduler struct {
	cron  *cron.Cron
	sweep StagingSweep
	log   zerolog.Logger
	now   func() time.Time
}

func NewScheduler(sweep StagingSweep, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		sweep: sweep,
		log:   log,
		now:   time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.sweep.Dir == "" || s.sweep.MaxAge <= 0 {
		return nil
	}

	if _, err := s.cron.AddFunc("0 0 */1 * * *", s.sweepStaging); err != nil { // hourly
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron and waits for a running sweep, at most five seconds.
func (s *Scheduler) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) sweepStaging() {
	removed, err := s.SweepStaging()
	if err != nil {
		s.log.Error().Err(err).Msg("staging sweep failed")
		return
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("staging sweep")
	}
}

// SweepStaging deletes expired staged files and reports how many went.
func (s *Scheduler) SweepStaging() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.sweep.Dir, s.sweep.Pattern))
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.sweep.MaxAge)

	removed := 0
	var errs []error
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, err)
			}
			continue
		}
		if info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
