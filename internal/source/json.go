package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// JSONSource reads newline-delimited JSON heap dumps, optionally
// gzip-compressed (.json.gz). Each line carries one record:
//
//	{"meta":{"pid":4242,"timestamp":"2026-08-06T10:00:00Z"}}
//	{"object":{"address":4096,"type":"System.String","size":40,"references":[...]}}
//	{"root":{"kind":"Stack","root":16,"target":4096,"name":"main thread"}}
//
// The file is re-opened for every walk, so walks may be repeated even
// though any single walk is a one-shot forward scan. Undecodable lines
// are logged and skipped; only I/O failures abort a walk.
type JSONSource struct {
	path   string
	logger *slog.Logger

	pid      int
	captured time.Time
}

var _ snapshot.HeapSource = (*JSONSource)(nil)

type jsonMeta struct {
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
}

type jsonRoot struct {
	Kind   string `json:"kind"`
	Root   uint64 `json:"root"`
	Target uint64 `json:"target"`
	Name   string `json:"name,omitempty"`
}

type jsonLine struct {
	Meta   *jsonMeta              `json:"meta,omitempty"`
	Object *snapshot.ObjectRecord `json:"object,omitempty"`
	Root   *jsonRoot              `json:"root,omitempty"`
}

// OpenJSON validates that path is readable and scans ahead for the meta
// record so that ProcessID and CaptureTime are available before the
// first walk.
func OpenJSON(path string, logger *slog.Logger) (*JSONSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	src := &JSONSource{path: path, logger: logger}

	err := src.scan(func(line jsonLine) error {
		if line.Meta != nil {
			src.pid = line.Meta.PID
			src.captured = line.Meta.Timestamp
			return errStopWalk
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if src.captured.IsZero() {
		src.captured = time.Now()
	}
	return src, nil
}

func (s *JSONSource) ProcessID() int         { return s.pid }
func (s *JSONSource) CaptureTime() time.Time { return s.captured }

func (s *JSONSource) WalkObjects(fn func(snapshot.ObjectRecord) error) error {
	return s.scan(func(line jsonLine) error {
		if line.Object == nil {
			return nil
		}
		return fn(*line.Object)
	})
}

func (s *JSONSource) WalkRoots(fn func(snapshot.RootRecord) error) error {
	return s.scan(func(line jsonLine) error {
		if line.Root == nil {
			return nil
		}
		return fn(snapshot.RootRecord{
			Kind:   snapshot.ParseRootKind(line.Root.Kind),
			Root:   line.Root.Root,
			Target: line.Root.Target,
			Name:   line.Root.Name,
		})
	})
}

var errStopWalk = fmt.Errorf("stop walk")

// scan opens the dump file, streams it line by line and hands each
// decoded record to fn. fn returning errStopWalk ends the scan cleanly.
func (s *JSONSource) scan(fn func(jsonLine) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open heap dump: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(s.path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip heap dump: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var line jsonLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			s.logger.Warn("skipping undecodable dump line", "line", lineNo, "err", err)
			continue
		}
		if err := fn(line); err != nil {
			if err == errStopWalk {
				return nil
			}
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read heap dump: %w", err)
	}
	return nil
}
