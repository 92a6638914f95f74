package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"platesim/internal/sim/tectonics"
)

// DefaultSegmentSteps is the segment span used when none is configured.
const DefaultSegmentSteps = 5000

// SegmentWriter appends step-stamped records as JSONL to zstd files that each
// cover a fixed, aligned range of steps:
//
//	<prefix>-<first>-<last>.jsonl.zst
//
// Bounds are zero-padded so lexical order is step order. Reopening a segment
// appends a new zstd frame, which readers decode transparently.
type SegmentWriter struct {
	dir    string
	prefix string
	span   uint64

	mu    sync.Mutex
	first uint64
	open  bool
	f     *os.File
	enc   *zstd.Encoder
	bw    *bufio.Writer
}

func NewSegmentWriter(dir, prefix string, span int) *SegmentWriter {
	if span <= 0 {
		span = DefaultSegmentSteps
	}
	return &SegmentWriter{dir: dir, prefix: prefix, span: uint64(span)}
}

// Write appends v to the segment holding step. Records for an earlier
// segment (after a model load) reopen that segment.
func (w *SegmentWriter) Write(step uint64, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if first := step - step%w.span; !w.open || first != w.first {
		if err := w.openLocked(first); err != nil {
			return err
		}
	}
	b = append(b, '\n')
	if _, err := w.bw.Write(b); err != nil {
		return err
	}
	return w.bw.Flush()
}

func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *SegmentWriter) openLocked(first uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, SegmentName(w.prefix, first, first+w.span-1))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc = f, enc
	w.bw = bufio.NewWriterSize(enc, 64*1024)
	w.first, w.open = first, true
	return nil
}

func (w *SegmentWriter) closeLocked() error {
	if !w.open {
		return nil
	}
	w.open = false
	err := w.bw.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f, w.enc, w.bw = nil, nil, nil
	return err
}

// SegmentName formats the file name for the inclusive step range.
func SegmentName(prefix string, first, last uint64) string {
	return fmt.Sprintf("%s-%012d-%012d.jsonl.zst", prefix, first, last)
}

// StepLogger writes one entry per step into steps/ segments.
type StepLogger struct{ w *SegmentWriter }

// NewStepLogger segments by span steps; span usually follows the epoch
// archive interval so a segment lines up with an archived snapshot.
func NewStepLogger(modelDir string, span int) *StepLogger {
	return &StepLogger{w: NewSegmentWriter(filepath.Join(modelDir, "steps"), "steps", span)}
}

func (l *StepLogger) WriteStep(e tectonics.StepLogEntry) error { return l.w.Write(e.Step, e) }
func (l *StepLogger) Close() error                             { return l.w.Close() }

// AuditEntry records an operator action applied between steps.
type AuditEntry struct {
	Step   uint64 `json:"step"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // e.g. "LOAD_MODEL", "SET_FIELD_TYPE"
	Detail string `json:"detail,omitempty"`
	At     string `json:"at"`
}

// AuditLogger files audit entries into audit/ segments by the step they
// were applied at.
type AuditLogger struct{ w *SegmentWriter }

func NewAuditLogger(modelDir string, span int) *AuditLogger {
	return &AuditLogger{w: NewSegmentWriter(filepath.Join(modelDir, "audit"), "audit", span)}
}

func (l *AuditLogger) WriteAudit(e AuditEntry) error { return l.w.Write(e.Step, e) }
func (l *AuditLogger) Close() error                  { return l.w.Close() }
