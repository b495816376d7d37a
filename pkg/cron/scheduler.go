package cron

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"github.com/robfig/cron/v3"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/trace"
)

// Scheduler runs the housekeeping job that prunes old trace logs
type Scheduler struct {
	traceDir      string
	schedule      string
	retentionDays int
	cron          *cron.Cron
	mu            sync.Mutex // one prune at a time
	now           func() time.Time
	logger        log.Logger
}

// NewScheduler creates a housekeeping scheduler for a trace directory
func NewScheduler(cfg model.HousekeepingConfig, traceDir string) *Scheduler {
	return &Scheduler{
		traceDir:      traceDir,
		schedule:      cfg.Schedule,
		retentionDays: cfg.RetentionDays,
		cron:          cron.New(),
		now:           time.Now,
		logger:        log.DefaultLogger.With("component", "cron"),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if err := model.ValidateCronExpression(s.schedule); err != nil {
		return err
	}
	entryID, err := s.cron.AddFunc(s.schedule, s.runPrune)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	next, _ := s.NextRun(s.now())
	s.logger.Info("[CRON] Housekeeping started",
		"schedule", s.schedule,
		"entry_id", entryID,
		"retention_days", s.retentionDays,
		"next_run", next.Format(time.RFC3339),
	)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("[CRON] Housekeeping stopped")
}

// NextRun returns the next firing of the schedule after from
func (s *Scheduler) NextRun(from time.Time) (time.Time, error) {
	expr, err := cronexpr.Parse(s.schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression '%s': %w", s.schedule, err)
	}
	return expr.Next(from).Truncate(time.Second), nil
}

func (s *Scheduler) runPrune() {
	removed, err := s.Prune()
	if err != nil {
		s.logger.Error("[CRON] Trace log pruning failed", "dir", s.traceDir, "error", err)
		return
	}
	s.logger.Info("[CRON] Trace logs pruned", "dir", s.traceDir, "removed", removed)
}

// Prune deletes daily trace logs older than the retention period. The day is read from the file name.
// Files whose name does not carry a date are left alone.
func (s *Scheduler) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retentionDays <= 0 {
		return 0, nil
	}

	files, err := filepath.Glob(filepath.Join(s.traceDir, trace.FilePrefix+"*.log"))
	if err != nil {
		return 0, err
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	cutoff := today.AddDate(0, 0, -s.retentionDays)

	removed := 0
	for _, path := range files {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), trace.FilePrefix), ".log")
		day, err := time.ParseInLocation("20060102", stamp, now.Location())
		if err != nil {
			s.logger.Debug("[CRON] Skipping file without date", "file", path)
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}
