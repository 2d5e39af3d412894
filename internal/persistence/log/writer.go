// Package log writes and reads hourly-rotated, zstd-compressed JSONL files.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
)

const hourLayout = "2006-01-02-15"

// segment is the open file for one hour. Everything written to it lands in
// a single zstd frame that ends when the segment is finished.
type segment struct {
	hour string
	f    *os.File
	zw   *zstd.Encoder
	bw   *bufio.Writer
}

func openSegment(path, hour string) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{hour: hour, f: f, zw: zw, bw: bufio.NewWriterSize(zw, 128*1024)}, nil
}

func (s *segment) writeLine(b []byte) error {
	if _, err := s.bw.Write(b); err != nil {
		return err
	}
	return s.bw.WriteByte('\n')
}

// finish ends the frame and closes the file.
func (s *segment) finish() error {
	return errors.Join(s.bw.Flush(), s.zw.Close(), s.f.Close())
}

// WriterStats counts lines written, frames finished and files opened.
type WriterStats struct {
	Lines  uint64 `json:"lines"`
	Frames uint64 `json:"frames"`
	Opens  uint64 `json:"opens"`
}

// JSONLZstdWriter appends one JSON value per line to <dir>/<prefix>-<hour>.jsonl.zst.
// A file may hold several frames: every Sync or Close ends the current one,
// and the next Write opens a new frame in append mode.
type JSONLZstdWriter struct {
	dir    string
	prefix string

	mu  sync.Mutex
	now func() time.Time
	seg *segment

	lines, frames, opens atomic.Uint64
}

func NewJSONLZstdWriter(dir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, prefix: prefix, now: time.Now}
}

// WithClock replaces the clock used to pick the hourly file.
func (w *JSONLZstdWriter) WithClock(now func() time.Time) *JSONLZstdWriter {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
	return w
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	hour := w.now().UTC().Format(hourLayout)
	if w.seg != nil && w.seg.hour != hour {
		if err := w.finishLocked(); err != nil {
			return err
		}
	}
	if w.seg == nil {
		seg, err := openSegment(w.path(hour), hour)
		if err != nil {
			return err
		}
		w.seg = seg
		w.opens.Add(1)
	}
	if err := w.seg.writeLine(b); err != nil {
		return err
	}
	w.lines.Add(1)
	return nil
}

// Sync ends the current frame so readers see every line written so far.
func (w *JSONLZstdWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finishLocked()
}

func (w *JSONLZstdWriter) Close() error { return w.Sync() }

func (w *JSONLZstdWriter) Stats() WriterStats {
	return WriterStats{Lines: w.lines.Load(), Frames: w.frames.Load(), Opens: w.opens.Load()}
}

func (w *JSONLZstdWriter) finishLocked() error {
	if w.seg == nil {
		return nil
	}
	err := w.seg.finish()
	w.seg = nil
	w.frames.Add(1)
	return err
}

func (w *JSONLZstdWriter) path(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}
