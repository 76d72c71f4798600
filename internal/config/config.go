package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for jobintake.
type Config struct {
	Mailbox      MailboxConfig
	Storage      StorageConfig
	Registry     RegistryConfig
	Samples      SamplesConfig
	Enrichment   EnrichmentConfig
	Upsert       UpsertConfig
	Analysis     AnalysisConfig
	Schedule     ScheduleConfig
	Notification NotificationConfig
}

// MailboxConfig selects the inbound reader and the folders a run works on.
type MailboxConfig struct {
	Type            string // "gmail", "dir" or "feed"
	Folder          string
	ArchiveFolder   string
	CredentialsFile string              // gmail credentials; empty uses application default credentials
	User            string              // gmail user, "me" by default
	Root            string              // dir reader root
	Feeds           map[string][]string // feed urls keyed by folder
	LedgerRetention time.Duration       // how long archived feed item ids are kept
}

// StorageConfig selects the offer store.
type StorageConfig struct {
	Type        string `yaml:"type"` // "sqlite" or "postgres"
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url"`
}

// RegistryConfig selects where the source registry lives. "store" keeps it
// next to the offers; "file" reads and writes a YAML file.
type RegistryConfig struct {
	Type string `yaml:"type"`
	File string `yaml:"file"`
}

// SamplesConfig controls where unclassified payloads are captured.
type SamplesConfig struct {
	Type      string `yaml:"type"` // "dir", "gcs" or "none"
	Dir       string `yaml:"dir"`  // keys already start with samples/
	GCSBucket string `yaml:"gcs_bucket"`
	Cap       int    `yaml:"cap"`
}

// EnrichmentConfig tunes the enrichment run and its page fetcher stack.
type EnrichmentConfig struct {
	Workers        int
	Limit          int
	RequestTimeout time.Duration
	MinOtherFields int
	RateLimit      RateLimitConfig
	Retries        int
	BaseDelay      time.Duration
}

// RateLimitConfig controls per-host request spacing.
type RateLimitConfig struct {
	MinDelay      time.Duration
	HostOverrides map[string]time.Duration
}

// MinDelayFor returns the configured delay for host, falling back to MinDelay.
func (r RateLimitConfig) MinDelayFor(host string) time.Duration {
	if d, ok := r.HostOverrides[host]; ok {
		return d
	}
	return r.MinDelay
}

// UpsertConfig controls how the upsert layer reacts to unknown categorical values.
type UpsertConfig struct {
	ExtendSchema bool `yaml:"extend_schema"`
}

// AnalysisConfig enables the Redis hand-off when RedisURL is set.
type AnalysisConfig struct {
	RedisURL string `yaml:"redis_url"`
	Channel  string `yaml:"channel"`
}

// ScheduleConfig holds the daemon's cron specs. An empty spec disables the job.
type ScheduleConfig struct {
	Ingest     string `yaml:"ingest"`
	Enrich     string `yaml:"enrich"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

const (
	defaultFolder          = "INBOX"
	defaultArchiveFolder   = "jobintake/archived"
	defaultSQLitePath      = "jobintake.db"
	defaultSampleDir       = "."
	defaultSampleCap       = 3
	defaultAnalysisChannel = "jobintake:analysis"
	slackWebhookPrefix     = "https://hooks.slack.com/"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Mailbox      rawMailboxConfig    `yaml:"mailbox"`
	Storage      StorageConfig       `yaml:"storage"`
	Registry     RegistryConfig      `yaml:"registry"`
	Samples      SamplesConfig       `yaml:"samples"`
	Enrichment   rawEnrichmentConfig `yaml:"enrichment"`
	Upsert       UpsertConfig        `yaml:"upsert"`
	Analysis     AnalysisConfig      `yaml:"analysis"`
	Schedule     ScheduleConfig      `yaml:"schedule"`
	Notification NotificationConfig  `yaml:"notification"`
}

type rawMailboxConfig struct {
	Type            string              `yaml:"type"`
	Folder          string              `yaml:"folder"`
	ArchiveFolder   string              `yaml:"archive_folder"`
	CredentialsFile string              `yaml:"credentials_file"`
	User            string              `yaml:"user"`
	Root            string              `yaml:"root"`
	Feeds           map[string][]string `yaml:"feeds"`
	LedgerRetention string              `yaml:"ledger_retention"`
}

type rawEnrichmentConfig struct {
	Workers        int    `yaml:"workers"`
	Limit          int    `yaml:"limit"`
	RequestTimeout string `yaml:"request_timeout"`
	Sufficiency    struct {
		RequireTitleOrMinFields *int `yaml:"require_title_or_min_fields"`
	} `yaml:"sufficiency"`
	RateLimit rawRateLimitConfig `yaml:"rate_limit"`
	Retries   *int               `yaml:"retries"`
	BaseDelay string             `yaml:"base_delay"`
}

type rawRateLimitConfig struct {
	MinDelay      string            `yaml:"min_delay"`
	HostOverrides map[string]string `yaml:"host_overrides"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes. Environment variables are expanded first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	retention, err := parseDuration("mailbox.ledger_retention", raw.Mailbox.LedgerRetention, 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := parseDuration("enrichment.request_timeout", raw.Enrichment.RequestTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	minDelay, err := parseDuration("enrichment.rate_limit.min_delay", raw.Enrichment.RateLimit.MinDelay, 2*time.Second)
	if err != nil {
		return nil, err
	}
	baseDelay, err := parseDuration("enrichment.base_delay", raw.Enrichment.BaseDelay, 5*time.Second)
	if err != nil {
		return nil, err
	}

	hostOverrides := make(map[string]time.Duration)
	for host, v := range raw.Enrichment.RateLimit.HostOverrides {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse enrichment.rate_limit.host_overrides[%q]: %w", host, err)
		}
		hostOverrides[strings.ToLower(host)] = d
	}

	minOther := 1
	if p := raw.Enrichment.Sufficiency.RequireTitleOrMinFields; p != nil {
		minOther = *p
	}
	retries := 2
	if raw.Enrichment.Retries != nil {
		retries = *raw.Enrichment.Retries
	}
	workers := raw.Enrichment.Workers
	if workers == 0 {
		workers = 4
	}

	cfg := &Config{
		Mailbox: MailboxConfig{
			Type:            strings.ToLower(raw.Mailbox.Type),
			Folder:          orDefault(raw.Mailbox.Folder, defaultFolder),
			ArchiveFolder:   orDefault(raw.Mailbox.ArchiveFolder, defaultArchiveFolder),
			CredentialsFile: raw.Mailbox.CredentialsFile,
			User:            orDefault(raw.Mailbox.User, "me"),
			Root:            raw.Mailbox.Root,
			Feeds:           raw.Mailbox.Feeds,
			LedgerRetention: retention,
		},
		Storage: StorageConfig{
			Type:        orDefault(strings.ToLower(raw.Storage.Type), "sqlite"),
			SQLitePath:  orDefault(raw.Storage.SQLitePath, defaultSQLitePath),
			PostgresURL: raw.Storage.PostgresURL,
		},
		Registry: RegistryConfig{
			Type: orDefault(strings.ToLower(raw.Registry.Type), "store"),
			File: raw.Registry.File,
		},
		Samples: SamplesConfig{
			Type:      orDefault(strings.ToLower(raw.Samples.Type), "dir"),
			Dir:       orDefault(raw.Samples.Dir, defaultSampleDir),
			GCSBucket: raw.Samples.GCSBucket,
			Cap:       raw.Samples.Cap,
		},
		Enrichment: EnrichmentConfig{
			Workers:        workers,
			Limit:          raw.Enrichment.Limit,
			RequestTimeout: requestTimeout,
			MinOtherFields: minOther,
			RateLimit: RateLimitConfig{
				MinDelay:      minDelay,
				HostOverrides: hostOverrides,
			},
			Retries:   retries,
			BaseDelay: baseDelay,
		},
		Upsert: raw.Upsert,
		Analysis: AnalysisConfig{
			RedisURL: raw.Analysis.RedisURL,
			Channel:  orDefault(raw.Analysis.Channel, defaultAnalysisChannel),
		},
		Schedule:     raw.Schedule,
		Notification: raw.Notification,
	}
	if cfg.Samples.Cap == 0 {
		cfg.Samples.Cap = defaultSampleCap
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(name, v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", name, v, err)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func validate(cfg *Config) error {
	switch cfg.Mailbox.Type {
	case "gmail":
	case "dir":
		if cfg.Mailbox.Root == "" {
			return fmt.Errorf("mailbox.root is required when type is \"dir\"")
		}
	case "feed":
		if len(cfg.Mailbox.Feeds[cfg.Mailbox.Folder]) == 0 {
			return fmt.Errorf("mailbox.feeds has no urls for folder %q", cfg.Mailbox.Folder)
		}
	case "":
		return fmt.Errorf("mailbox.type is required")
	default:
		return fmt.Errorf("mailbox.type must be gmail, dir or feed, got %q", cfg.Mailbox.Type)
	}
	if cfg.Mailbox.Folder == cfg.Mailbox.ArchiveFolder {
		return fmt.Errorf("mailbox.archive_folder must differ from mailbox.folder")
	}

	switch cfg.Storage.Type {
	case "sqlite":
	case "postgres":
		if cfg.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required when type is \"postgres\"")
		}
	default:
		return fmt.Errorf("storage.type must be sqlite or postgres, got %q", cfg.Storage.Type)
	}

	switch cfg.Registry.Type {
	case "store":
	case "file":
		if cfg.Registry.File == "" {
			return fmt.Errorf("registry.file is required when type is \"file\"")
		}
	default:
		return fmt.Errorf("registry.type must be store or file, got %q", cfg.Registry.Type)
	}

	switch cfg.Samples.Type {
	case "dir", "none":
	case "gcs":
		if cfg.Samples.GCSBucket == "" {
			return fmt.Errorf("samples.gcs_bucket is required when type is \"gcs\"")
		}
	default:
		return fmt.Errorf("samples.type must be dir, gcs or none, got %q", cfg.Samples.Type)
	}
	if cfg.Samples.Cap < 0 {
		return fmt.Errorf("samples.cap must not be negative, got %d", cfg.Samples.Cap)
	}

	e := cfg.Enrichment
	if e.Workers < 1 || e.Workers > 32 {
		return fmt.Errorf("enrichment.workers must be between 1 and 32, got %d", e.Workers)
	}
	if e.Limit < 0 {
		return fmt.Errorf("enrichment.limit must not be negative, got %d", e.Limit)
	}
	if e.MinOtherFields < 1 {
		return fmt.Errorf("enrichment.sufficiency.require_title_or_min_fields must be at least 1, got %d", e.MinOtherFields)
	}
	if e.Retries < 0 {
		return fmt.Errorf("enrichment.retries must not be negative, got %d", e.Retries)
	}
	if e.RequestTimeout <= 0 {
		return fmt.Errorf("enrichment.request_timeout must be positive, got %v", e.RequestTimeout)
	}

	for name, spec := range map[string]string{"schedule.ingest": cfg.Schedule.Ingest, "schedule.enrich": cfg.Schedule.Enrich} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookPrefix) {
			return fmt.Errorf("notification.webhook_url must start with %s", slackWebhookPrefix)
		}
	default:
		return fmt.Errorf("notification.type must be log or slack, got %q", cfg.Notification.Type)
	}

	return nil
}
