package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultAndNormalize(t *testing.T) {
	cfg := Default()
	if cfg.Port == 0 || len(cfg.DataSourceExtensions) != 7 || cfg.ManifestCheck != "extensions" {
		t.Fatalf("default config invalid: %+v", cfg)
	}

	path := writeConfig(t, "data_source_extensions: [ORIG, .md5, orig, \"  .LST\"]\n")
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := loaded.DataSourceExtensions

	has := func(slice []string, s string) bool {
		for _, v := range slice {
			if v == s {
				return true
			}
		}
		return false
	}
	if len(got) != 3 || !has(got, ".orig") || !has(got, ".md5") || !has(got, ".lst") {
		t.Fatalf("expected normalized set .orig,.md5,.lst got %v", got)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("not_exists.yml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Collection != "BRITE-Constellation" {
		t.Fatalf("unexpected collection %q", cfg.Collection)
	}
}

func TestLoadReadsAndValidates(t *testing.T) {
	path := writeConfig(t, `
data_sources: [/data/brite]
recurse_data_sources: true
data_source_extensions: [avedb, .freq0db, lst, md5, ndatdb, orig, rlogdb]
manifest_check: COUNT
cleanup_files_when_storing: true
cleanup_success_destination: /data/success
cleanup_failure_destination: /data/failure
retry_failures: true
retry_count: 2
storage:
  endpoint: localhost:9000
  bucket: brite
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.RecurseDataSources || cfg.RetryCount != 2 || cfg.ManifestCheck != "count" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.DataSourceExtensions) != 7 || cfg.DataSourceExtensions[0] != ".avedb" {
		t.Fatalf("extensions not normalized: %v", cfg.DataSourceExtensions)
	}
	if !cfg.Storage.Remote() || cfg.Storage.Bucket != "brite" {
		t.Fatalf("expected remote storage: %+v", cfg.Storage)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"negative retry":     "retry_count: -1\n",
		"unknown check":      "manifest_check: names\n",
		"cleanup no dests":   "cleanup_files_when_storing: true\n",
		"remote no endpoint": "remote_data_source: true\n",
		"endpoint no bucket": "storage:\n  endpoint: localhost:9000\n",
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
