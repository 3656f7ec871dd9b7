package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jnd-labs/webcapture/internal/models"
)

func TestOpenCreatesRunJSONAndEmptyIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run1")
	meta := models.RunMetadata{RunID: "run1", StartedAt: time.Now().UTC(), URL: "https://x.test"}

	l, err := Open(dir, meta)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if _, err := os.Stat(filepath.Join(dir, "run.json")); err != nil {
		t.Errorf("expected run.json to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.jsonl")); err != nil {
		t.Errorf("expected index.jsonl to exist even before any append: %v", err)
	}
}

func TestAppendThenReadRecords(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, models.RunMetadata{RunID: "r", StartedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 3; i++ {
		rec := &models.CaptureRecord{EndpointKey: "GET /x", Status: 200}
		if err := l.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	l.Close()

	var count int
	err = ReadRecords(filepath.Join(dir, "index.jsonl"), func(rec *models.CaptureRecord) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestReadRecordsSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.jsonl")
	content := "{\"endpointKey\":\"GET /a\"}\n" +
		"not json at all\n" +
		"{\"endpointKey\":\"GET /b\"}\n" +
		"{\"endpointKey\": truncated"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var keys []string
	err := ReadRecords(path, func(rec *models.CaptureRecord) error {
		keys = append(keys, rec.EndpointKey)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(keys) != 2 || keys[0] != "GET /a" || keys[1] != "GET /b" {
		t.Errorf("keys = %v, want [GET /a GET /b]", keys)
	}
}

func TestReadRecordsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.jsonl")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var count int
	err := ReadRecords(path, func(rec *models.CaptureRecord) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}
