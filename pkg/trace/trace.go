package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
)

// FilePrefix is the name prefix of daily trace log files
const FilePrefix = "trace_reporting_"

// Writer appends trace lines to a daily log file when tracing is enabled
type Writer struct {
	dir     string
	enabled bool
	mu      sync.Mutex
	now     func() time.Time
	logger  log.Logger
}

// NewWriter creates a trace writer. Nothing is written to disk unless enabled.
func NewWriter(dir string, enabled bool) *Writer {
	return &Writer{
		dir:     dir,
		enabled: enabled,
		now:     time.Now,
		logger:  log.DefaultLogger.With("component", "trace"),
	}
}

// Enabled reports whether trace lines are persisted
func (w *Writer) Enabled() bool { return w != nil && w.enabled }

// Dir returns the trace directory
func (w *Writer) Dir() string { return w.dir }

// FileName returns the trace file for a given day
func (w *Writer) FileName(day time.Time) string {
	return filepath.Join(w.dir, FilePrefix+day.Format("20060102")+".log")
}

func (w *Writer) write(id, msg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.FileName(now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s | %s | %s\n", now.Format("2006-01-02 15:04:05"), id, msg)
	return err
}

// NewTracer starts a trace for one request
func (w *Writer) NewTracer() *Tracer {
	return &Tracer{id: NewID(), w: w}
}

// NewID returns a fresh 20 character hexadecimal trace id
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// Tracer writes trace lines tagged with one request's trace id.
// A nil Tracer discards everything.
type Tracer struct {
	id string
	w  *Writer
}

// ID returns the trace id
func (t *Tracer) ID() string {
	if t == nil {
		return ""
	}
	return t.id
}

// Tracef records one trace line
func (t *Tracer) Tracef(format string, args ...interface{}) {
	if t == nil || t.w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	t.w.logger.Debug(msg, "trace_id", t.id)
	if !t.w.enabled {
		return
	}
	if err := t.w.write(t.id, msg); err != nil {
		t.w.logger.Warn("Failed to write trace line", "trace_id", t.id, "error", err)
	}
}
