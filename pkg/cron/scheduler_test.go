package cron

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

func TestPruneRemovesExpiredTraceLogs(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"trace_reporting_20261018.log",
		"trace_reporting_20260918.log",
		"trace_reporting_20260917.log",
		"trace_reporting_20250101.log",
		"trace_reporting_backup.log",
		"other.log",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	s := NewScheduler(model.HousekeepingConfig{Schedule: "0 3 * * *", RetentionDays: 30}, dir)
	s.now = func() time.Time { return time.Date(2026, 10, 18, 10, 15, 0, 0, time.UTC) }

	removed, err := s.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 files removed, got %d", removed)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	sort.Strings(left)
	want := []string{"other.log", "trace_reporting_20260918.log", "trace_reporting_20261018.log", "trace_reporting_backup.log"}
	if len(left) != len(want) {
		t.Fatalf("expected %v, got %v", want, left)
	}
	for i := range want {
		if left[i] != want[i] {
			t.Errorf("expected %v, got %v", want, left)
			break
		}
	}
}

func TestPruneMissingDirectory(t *testing.T) {
	s := NewScheduler(model.HousekeepingConfig{Schedule: "0 3 * * *", RetentionDays: 30}, filepath.Join(t.TempDir(), "absent"))
	removed, err := s.Prune()
	if err != nil || removed != 0 {
		t.Fatalf("expected nothing to do, got %d, %v", removed, err)
	}
}

func TestNextRun(t *testing.T) {
	tests := []struct {
		schedule string
		from     time.Time
		want     time.Time
	}{
		{"0 3 * * *", time.Date(2026, 10, 18, 10, 15, 0, 0, time.UTC), time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)},
		{"0 3 * * *", time.Date(2026, 10, 18, 2, 59, 0, 0, time.UTC), time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)},
		{"30 1 * * 1", time.Date(2026, 10, 18, 10, 15, 0, 0, time.UTC), time.Date(2026, 10, 19, 1, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		s := NewScheduler(model.HousekeepingConfig{Schedule: tt.schedule}, "")
		got, err := s.NextRun(tt.from)
		if err != nil {
			t.Fatalf("NextRun(%q) failed: %v", tt.schedule, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("NextRun(%q) = %s, want %s", tt.schedule, got, tt.want)
		}
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(model.HousekeepingConfig{Schedule: "every day", RetentionDays: 30}, t.TempDir())
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected an error for an invalid schedule")
	}
}

func TestStartAndStop(t *testing.T) {
	s := NewScheduler(model.HousekeepingConfig{Schedule: "0 3 * * *", RetentionDays: 30}, t.TempDir())
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()
}
