// Package jobs runs the server's scheduled maintenance work.
package jobs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"
	"github.com/robfig/cron/v3"
	"github.com/siahsang/portfolio/internal/media"
	"github.com/siahsang/portfolio/internal/utils/collectionutils"
)

// UploadReferences lists the upload paths records still point to.
type UploadReferences interface {
	ReferencedUploads(ctx context.Context) ([]string, error)
}

// Sweeper deletes upload directories that no record references.
type Sweeper struct {
	refs   UploadReferences
	dir    string
	grace  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper keeps anything younger than grace so that a file saved just
// before its record is written survives.
func NewSweeper(refs UploadReferences, dir string, grace time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		refs:   refs,
		dir:    dir,
		grace:  grace,
		logger: logger,
		now:    time.Now,
	}
}

// Sweep returns the number of removed upload directories.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	paths, err := s.refs.ReferencedUploads(ctx)
	if err != nil {
		return 0, err
	}
	referenced := collectionutils.Associate(paths, func(p string) (string, bool) {
		return uploadDir(p), true
	})

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, xerrors.New(err)
	}

	cutoff := s.now().Add(-s.grace)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || referenced[entry.Name()] {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Error("failed to remove orphaned upload", "dir", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// uploadDir extracts <uuid> from /uploads/<uuid>/<name>.
func uploadDir(publicPath string) string {
	rest := strings.TrimPrefix(publicPath, media.PublicPrefix)
	dir, _, _ := strings.Cut(rest, "/")
	return dir
}

// Pruner is implemented by the login rate limiter.
type Pruner interface {
	Prune(idle time.Duration)
}

// Scheduler wraps the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// AddSweep schedules the upload sweep with a cron spec such as "@daily".
func (s *Scheduler) AddSweep(spec string, sweeper *Sweeper) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		removed, err := sweeper.Sweep(ctx)
		if err != nil {
			s.logger.Error("upload sweep failed", "error", xerrors.Sprint(err))
			return
		}
		s.logger.Info("upload sweep finished", "removed", removed)
	})
	if err != nil {
		return xerrors.Newf("invalid sweep schedule %q: %w", spec, err)
	}
	return nil
}

// AddPrune drops idle limiter entries every interval.
func (s *Scheduler) AddPrune(every time.Duration, pruner Pruner) error {
	_, err := s.cron.AddFunc("@every "+every.String(), func() {
		pruner.Prune(every)
	})
	if err != nil {
		return xerrors.New(err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
