package config

import (
	"os"
	"testing"
)

func TestToOptionsCompilesRegexFields(t *testing.T) {
	cfg := &FileConfig{
		URL:          "https://x.test",
		MonitorMs:    1000,
		TimeoutMs:    5000,
		IncludeRegex: `/api/`,
		ExcludeRegex: `/health$`,
	}

	opts, err := cfg.ToOptions()
	if err != nil {
		t.Fatalf("ToOptions: %v", err)
	}
	if opts.IncludeRegex == nil || !opts.IncludeRegex.MatchString("https://x.test/api/users") {
		t.Error("expected includeRegex to match /api/ URLs")
	}
	if opts.ExcludeRegex == nil || !opts.ExcludeRegex.MatchString("https://x.test/health") {
		t.Error("expected excludeRegex to match /health URLs")
	}
}

func TestToOptionsRejectsInvalidRegex(t *testing.T) {
	cfg := &FileConfig{URL: "https://x.test", IncludeRegex: "("}
	if _, err := cfg.ToOptions(); err == nil {
		t.Error("expected error for invalid include_regex")
	}
}

func TestToOptionsLeavesRegexNilWhenUnset(t *testing.T) {
	cfg := &FileConfig{URL: "https://x.test"}
	opts, err := cfg.ToOptions()
	if err != nil {
		t.Fatalf("ToOptions: %v", err)
	}
	if opts.IncludeRegex != nil || opts.ExcludeRegex != nil {
		t.Error("expected nil regexes when unset")
	}
}

func TestToOptionsReadsStorageStateFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "storage-state-*.json")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	want := []byte(`{"cookies":[]}`)
	if _, err := f.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.Close()

	cfg := &FileConfig{URL: "https://x.test", StorageState: f.Name()}
	opts, err := cfg.ToOptions()
	if err != nil {
		t.Fatalf("ToOptions: %v", err)
	}
	if string(opts.StorageState) != string(want) {
		t.Errorf("StorageState = %q, want %q", opts.StorageState, want)
	}
}

func TestToOptionsPropagatesMissingStorageStateFile(t *testing.T) {
	cfg := &FileConfig{URL: "https://x.test", StorageState: "/nonexistent/path.json"}
	if _, err := cfg.ToOptions(); err == nil {
		t.Error("expected error for missing storage_state file")
	}
}

func TestLoadAppliesDefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(cwd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MonitorMs != 15000 {
		t.Errorf("MonitorMs = %d, want default 15000", cfg.MonitorMs)
	}
	if cfg.MaxConcurrentCaptures != 6 {
		t.Errorf("MaxConcurrentCaptures = %d, want default 6", cfg.MaxConcurrentCaptures)
	}
}
