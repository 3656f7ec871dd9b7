// Package journal implements the append-only record journal and run
// metadata file described in spec.md 4.6. It generalizes
// audit/file_storage.go's append-mode, one-JSON-object-per-line file
// handling from a hash-chained audit log to a plain, order-agnostic
// capture journal (spec.md §5: "append order is not guaranteed to follow
// response-receipt order").
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/jnd-labs/webcapture/internal/models"
)

// Log owns the three artifacts under <outDir>/<runId>/: run.json,
// index.jsonl, and (indirectly, via bodystore) bodies/.
type Log struct {
	dir  string
	file *os.File
	mu   sync.Mutex
}

// Open creates dir (and bodies/ beneath it) if needed, writes run.json
// once, and opens index.jsonl for appending. The file is created even if
// the run ends up capturing nothing, per spec.md 4.6.
func Open(dir string, meta models.RunMetadata) (*Log, error) {
	if err := os.MkdirAll(filepath.Join(dir, "bodies"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.json"), metaBytes, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write run.json: %w", err)
	}

	indexPath := filepath.Join(dir, "index.jsonl")
	file, err := os.OpenFile(indexPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open index.jsonl: %w", err)
	}

	return &Log{dir: dir, file: file}, nil
}

// BodiesDir returns the directory BodyStore should write externalized
// bodies into.
func (l *Log) BodiesDir() string {
	return filepath.Join(l.dir, "bodies")
}

// Dir returns the run directory.
func (l *Log) Dir() string {
	return l.dir
}

// Append writes one complete JSON line to index.jsonl. The write is a
// single os.File.Write call so it lands atomically at the line level even
// under concurrent callers (spec.md §5: "appends must be atomic at the
// line level").
func (l *Log) Append(rec *models.CaptureRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal capture record: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("failed to append to index.jsonl: %w", err)
	}
	return nil
}

// Close flushes and closes index.jsonl.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ReadRecords streams every well-formed line of an index.jsonl file at
// path, invoking fn for each. A malformed or partial trailing line is
// skipped rather than aborting the scan, per spec.md invariant (g).
func ReadRecords(path string, fn func(*models.CaptureRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index.jsonl: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	const maxLine = 16 * 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.CaptureRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	// scanner.Err() surfaces I/O errors, not per-line parse errors (those
	// are already tolerated above); a truncated final read is reported
	// here but every prior well-formed line has already been delivered.
	return scanner.Err()
}
