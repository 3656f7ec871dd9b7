// Command aggregate rebuilds summary.json and endpoints.jsonl from an
// existing run directory's index.jsonl, without re-running a capture. It
// adapts cmd/verify's flag-driven, exit-code-signaling standalone-tool
// shape to the aggregation step of spec.md 4.9.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/jnd-labs/webcapture/internal/aggregate"
	"github.com/jnd-labs/webcapture/internal/models"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitArgError   = 1
	ExitJournalErr = 2
	ExitWriteErr   = 3
)

var (
	runDir = flag.String("dir", "", "run directory containing index.jsonl (required)")
	quiet  = flag.Bool("quiet", false, "suppress progress output")
)

func main() {
	flag.Parse()

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing required -dir flag")
		os.Exit(ExitArgError)
	}

	meta, err := readRunMetadata(*runDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read run.json: %v\n", err)
		os.Exit(ExitArgError)
	}

	builder := aggregate.New()
	indexPath := filepath.Join(*runDir, "index.jsonl")
	if err := builder.BuildFromJournal(indexPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stream index.jsonl: %v\n", err)
		os.Exit(ExitJournalErr)
	}

	scored := builder.Score()
	summary := builder.Summary(meta, time.Now().UTC(), *runDir, 0, scored)

	if err := writeSummary(*runDir, summary, scored); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write artifacts: %v\n", err)
		os.Exit(ExitWriteErr)
	}

	if !*quiet {
		fmt.Printf("rebuilt summary.json and endpoints.jsonl for run %s\n", meta.RunID)
		fmt.Printf("  totalResponses=%d jsonCaptures=%d totalEndpoints=%d\n",
			summary.TotalResponses, summary.JSONCaptures, summary.TotalEndpoints)
	}

	os.Exit(ExitSuccess)
}

func readRunMetadata(dir string) (models.RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, "run.json"))
	if err != nil {
		return models.RunMetadata{}, err
	}
	var meta models.RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return models.RunMetadata{}, fmt.Errorf("parsing run.json: %w", err)
	}
	return meta, nil
}

func writeSummary(dir string, summary models.Summary, scored []models.ScoredEndpoint) error {
	summaryBytes, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.json"), summaryBytes, 0o644); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "endpoints.jsonl"))
	if err != nil {
		return err
	}
	defer f.Close()

	for _, se := range scored {
		line, err := json.Marshal(se)
		if err != nil {
			return err
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}
