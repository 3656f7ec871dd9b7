// Package bodystore implements the hybrid, content-addressed body storage
// described in spec.md 4.5. It generalizes media/extractor.go's
// hash-then-write-once file layout from "extract embedded Base64 images
// over a size threshold" to "place any parsed JSON body over an inline
// threshold on disk, addressed by the SHA-256 of its raw bytes".
package bodystore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/jnd-labs/webcapture/internal/models"
	"github.com/jnd-labs/webcapture/internal/redact"
)

// Placement describes where a body ended up.
type Placement struct {
	Hash          string
	InlineBody    any
	BodyPath      string
	OmittedReason models.OmittedReason
}

// Store writes bodies under bodiesDir, named "<sha256-hex>.json".
type Store struct {
	bodiesDir      string
	inlineBodyBytes int64
	maxBodyBytes    int64
}

// New returns a Store rooted at bodiesDir (created on first Put).
func New(bodiesDir string, inlineBodyBytes, maxBodyBytes int64) *Store {
	return &Store{bodiesDir: bodiesDir, inlineBodyBytes: inlineBodyBytes, maxBodyBytes: maxBodyBytes}
}

// Put places parsed (the decoded JSON value) and rawBytes (the original
// bytes it was decoded from) according to the inline/external/oversized
// rule in spec.md 4.5. rawBytes is hashed as-is, before redaction, so that
// identical upstream bodies always land in the same file regardless of
// redaction (redaction is applied only to what is written/inlined).
func (s *Store) Put(parsed any, rawBytes []byte) Placement {
	sum := sha256.Sum256(rawBytes)
	hash := hex.EncodeToString(sum[:])
	size := int64(len(rawBytes))

	redacted := redact.JSON(parsed)

	if size <= s.inlineBodyBytes {
		return Placement{Hash: hash, InlineBody: redacted}
	}

	if size <= s.maxBodyBytes {
		path, err := s.writeIfAbsent(hash, redacted)
		if err != nil {
			return Placement{Hash: hash, OmittedReason: models.OmittedUnavailable}
		}
		return Placement{Hash: hash, BodyPath: path}
	}

	return Placement{Hash: hash, OmittedReason: models.OmittedMaxBodyBytes}
}

// writeIfAbsent writes the pretty-printed, redacted body to
// bodies/<hash>.json; if the file already exists when checked it is left
// untouched. Two writers that both pass the check each rename their own
// complete temp file into place, and on POSIX systems the later rename
// replaces the earlier file with content built from the same raw bytes.
func (s *Store) writeIfAbsent(hash string, redacted any) (string, error) {
	if err := os.MkdirAll(s.bodiesDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bodies directory: %w", err)
	}

	relPath := filepath.Join("bodies", hash+".json")
	fullPath := filepath.Join(s.bodiesDir, hash+".json")

	if _, err := os.Stat(fullPath); err == nil {
		return relPath, nil
	}

	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal body: %w", err)
	}

	// Each writer gets its own uniquely-named temp file (os.CreateTemp picks
	// the suffix) so two tasks racing on the same hash never write through
	// the same path; only the rename is a shared, atomic decision point.
	tmp, err := os.CreateTemp(s.bodiesDir, hash+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp body file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write body file: %w", writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write body file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		_ = os.Remove(tmpPath)
		// Another task may have just created fullPath for the same hash;
		// treat that as success rather than a write failure.
		if _, statErr := os.Stat(fullPath); statErr == nil {
			return relPath, nil
		}
		return "", fmt.Errorf("failed to finalize body file: %w", err)
	}

	return relPath, nil
}
