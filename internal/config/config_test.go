package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
mailbox:
  type: gmail
  credentials_file: creds.json
  folder: alerts
storage:
  type: postgres
  postgres_url: postgres://localhost/jobs
samples:
  type: gcs
  gcs_bucket: jobintake-samples
enrichment:
  workers: 8
  limit: 50
  sufficiency:
    require_title_or_min_fields: 2
  rate_limit:
    min_delay: 3s
    host_overrides:
      WWW.Apec.fr: 10s
  retries: 0
upsert:
  extend_schema: true
analysis:
  redis_url: redis://localhost:6379/0
schedule:
  ingest: "*/15 * * * *"
  enrich: "@hourly"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mailbox.Type != "gmail" || cfg.Mailbox.Folder != "alerts" || cfg.Mailbox.User != "me" {
		t.Errorf("Mailbox = %+v", cfg.Mailbox)
	}
	if cfg.Mailbox.ArchiveFolder != defaultArchiveFolder {
		t.Errorf("ArchiveFolder = %q, want %q", cfg.Mailbox.ArchiveFolder, defaultArchiveFolder)
	}
	if cfg.Storage.Type != "postgres" || cfg.Storage.PostgresURL != "postgres://localhost/jobs" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Registry.Type != "store" {
		t.Errorf("Registry.Type = %q, want store", cfg.Registry.Type)
	}
	if cfg.Samples.Cap != 3 {
		t.Errorf("Samples.Cap = %d, want 3", cfg.Samples.Cap)
	}
	if cfg.Enrichment.Workers != 8 || cfg.Enrichment.Limit != 50 || cfg.Enrichment.MinOtherFields != 2 {
		t.Errorf("Enrichment = %+v", cfg.Enrichment)
	}
	if cfg.Enrichment.Retries != 0 {
		t.Errorf("Retries = %d, want explicit 0", cfg.Enrichment.Retries)
	}
	if got := cfg.Enrichment.RateLimit.MinDelayFor("www.apec.fr"); got != 10*time.Second {
		t.Errorf("MinDelayFor(apec) = %v, want 10s", got)
	}
	if got := cfg.Enrichment.RateLimit.MinDelayFor("fr.indeed.com"); got != 3*time.Second {
		t.Errorf("MinDelayFor(indeed) = %v, want 3s", got)
	}
	if !cfg.Upsert.ExtendSchema {
		t.Error("Upsert.ExtendSchema = false, want true")
	}
	if cfg.Analysis.Channel != defaultAnalysisChannel {
		t.Errorf("Analysis.Channel = %q", cfg.Analysis.Channel)
	}
	if cfg.Notification.Type != "log" {
		t.Errorf("Notification.Type = %q, want log", cfg.Notification.Type)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
mailbox:
  type: dir
  root: ./exports
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLitePath != defaultSQLitePath {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Samples.Type != "dir" || cfg.Samples.Dir != defaultSampleDir {
		t.Errorf("Samples = %+v", cfg.Samples)
	}
	e := cfg.Enrichment
	if e.Workers != 4 || e.Retries != 2 || e.MinOtherFields != 1 {
		t.Errorf("Enrichment = %+v", e)
	}
	if e.RateLimit.MinDelay != 2*time.Second || e.BaseDelay != 5*time.Second || e.RequestTimeout != 30*time.Second {
		t.Errorf("Enrichment durations = %+v", e)
	}
	if cfg.Mailbox.LedgerRetention != 30*24*time.Hour {
		t.Errorf("LedgerRetention = %v", cfg.Mailbox.LedgerRetention)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("JOBINTAKE_TEST_PG", "postgres://db/jobs")
	path := writeConfig(t, `
mailbox:
  type: dir
  root: ./exports
storage:
  type: postgres
  postgres_url: ${JOBINTAKE_TEST_PG}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.PostgresURL != "postgres://db/jobs" {
		t.Errorf("PostgresURL = %q", cfg.Storage.PostgresURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "mailbox: [broken")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no mailbox", "storage:\n  type: sqlite\n", "mailbox.type is required"},
		{"unknown mailbox", "mailbox:\n  type: imap\n", "mailbox.type must be"},
		{"feed without urls", "mailbox:\n  type: feed\n  folder: jobs\n", "mailbox.feeds"},
		{"same folders", "mailbox:\n  type: dir\n  root: x\n  folder: a\n  archive_folder: a\n", "must differ"},
		{"postgres without url", "mailbox:\n  type: dir\n  root: x\nstorage:\n  type: postgres\n", "postgres_url"},
		{"file registry without path", "mailbox:\n  type: dir\n  root: x\nregistry:\n  type: file\n", "registry.file"},
		{"gcs without bucket", "mailbox:\n  type: dir\n  root: x\nsamples:\n  type: gcs\n", "gcs_bucket"},
		{"zero sufficiency", "mailbox:\n  type: dir\n  root: x\nenrichment:\n  sufficiency:\n    require_title_or_min_fields: 0\n", "require_title_or_min_fields"},
		{"bad duration", "mailbox:\n  type: dir\n  root: x\nenrichment:\n  base_delay: soon\n", "enrichment.base_delay"},
		{"bad cron", "mailbox:\n  type: dir\n  root: x\nschedule:\n  ingest: every minute\n", "schedule.ingest"},
		{"slack without webhook", "mailbox:\n  type: dir\n  root: x\nnotification:\n  type: slack\n", "webhook_url is required"},
		{"slack wrong host", "mailbox:\n  type: dir\n  root: x\nnotification:\n  type: slack\n  webhook_url: https://example.com/x\n", "must start with"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("Parse: expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
