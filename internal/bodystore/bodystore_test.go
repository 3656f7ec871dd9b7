package bodystore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestPutInlineForSmallBody(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "bodies"), 16*1024, 1024*1024)

	raw := []byte(`{"id":123,"name":"test"}`)
	placement := s.Put(map[string]any{"id": float64(123), "name": "test"}, raw)

	if placement.InlineBody == nil {
		t.Fatal("expected inline body for small payload")
	}
	if placement.BodyPath != "" {
		t.Errorf("expected no bodyPath, got %q", placement.BodyPath)
	}
	if len(placement.Hash) != 64 {
		t.Errorf("expected 64-char hex hash, got %q", placement.Hash)
	}
}

func TestPutExternalizesLargeBody(t *testing.T) {
	dir := t.TempDir()
	bodiesDir := filepath.Join(dir, "bodies")
	s := New(bodiesDir, 16*1024, 1024*1024)

	raw := make([]byte, 25*1024)
	for i := range raw {
		raw[i] = 'a'
	}
	placement := s.Put(map[string]any{"blob": string(raw)}, raw)

	if placement.InlineBody != nil {
		t.Error("expected no inline body for large payload")
	}
	if placement.BodyPath == "" {
		t.Fatal("expected bodyPath for large payload")
	}
	if !strings.HasPrefix(placement.BodyPath, "bodies/") || !strings.HasSuffix(placement.BodyPath, ".json") {
		t.Errorf("unexpected bodyPath shape: %q", placement.BodyPath)
	}

	fullPath := filepath.Join(bodiesDir, placement.Hash+".json")
	if _, err := os.Stat(fullPath); err != nil {
		t.Fatalf("expected body file to exist: %v", err)
	}
}

func TestPutOversizedBodyIsMetadataOnly(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "bodies"), 16, 100)

	raw := make([]byte, 1000)
	placement := s.Put(map[string]any{}, raw)

	if placement.InlineBody != nil || placement.BodyPath != "" {
		t.Errorf("expected metadata-only, got %+v", placement)
	}
	if placement.OmittedReason != "maxBodyBytes" {
		t.Errorf("OmittedReason = %q, want maxBodyBytes", placement.OmittedReason)
	}
}

func TestPutSameHashWritesOnce(t *testing.T) {
	dir := t.TempDir()
	bodiesDir := filepath.Join(dir, "bodies")
	s := New(bodiesDir, 1, 1024*1024)

	raw := []byte(`{"a":1}`)
	var wg sync.WaitGroup
	hashes := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			p := s.Put(map[string]any{"a": float64(1)}, raw)
			hashes[idx] = p.Hash
		}(i)
	}
	wg.Wait()

	first := hashes[0]
	for _, h := range hashes {
		if h != first {
			t.Errorf("expected identical hash across racing writers, got %q vs %q", h, first)
		}
	}

	entries, err := os.ReadDir(bodiesDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one body file, got %d", len(entries))
	}
}

func TestPutIdenticalBytesIdenticalHash(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "bodies"), 16*1024, 1024*1024)

	raw := []byte(`{"x":1}`)
	p1 := s.Put(map[string]any{"x": float64(1)}, raw)
	p2 := s.Put(map[string]any{"x": float64(1)}, raw)

	if p1.Hash != p2.Hash {
		t.Errorf("identical raw bytes produced different hashes: %q vs %q", p1.Hash, p2.Hash)
	}
}
