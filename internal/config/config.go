package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
)

// Config is the parsed contents of the config.ini file driving one batch
// run.
type Config struct {
	AWS       AWSConfig
	Storage   StorageConfig
	Sync      SyncConfig
	Instances []string
}

// AWSConfig selects the RDS API endpoint region.
type AWSConfig struct {
	Region string
}

// StorageConfig describes the destination object store and the key layout
// used for published logs and sync records.
type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	Prefix       string
	RecordPrefix string
}

// SyncConfig holds engine tunables.
type SyncConfig struct {
	CutoffDays int
	StagingDir string
	RecordDir  string
	HistoryDB  string
}

// Load reads and validates a config.ini file.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	cfg := &Config{
		Sync: SyncConfig{
			CutoffDays: 7,
			StagingDir: filepath.Join(os.TempDir(), "aurora-logs"),
			RecordDir:  "upload_records",
			HistoryDB:  "alsync.db",
		},
		Storage: StorageConfig{
			UseSSL:       true,
			Prefix:       "aurora-logs",
			RecordPrefix: "aurora-logs-records",
		},
	}

	aws := file.Section("aws")
	cfg.AWS.Region = aws.Key("region_name").String()

	st := file.Section("storage")
	cfg.Storage.Endpoint = st.Key("endpoint").String()
	cfg.Storage.AccessKey = st.Key("access_key").String()
	cfg.Storage.SecretKey = st.Key("secret_key").String()
	cfg.Storage.Bucket = st.Key("bucket").String()
	if k := st.Key("use_ssl"); k.String() != "" {
		cfg.Storage.UseSSL = k.MustBool(true)
	}
	if v := st.Key("prefix").String(); v != "" {
		cfg.Storage.Prefix = strings.Trim(v, "/")
	}
	if v := st.Key("record_prefix").String(); v != "" {
		cfg.Storage.RecordPrefix = strings.Trim(v, "/")
	}

	sc := file.Section("sync")
	if k := sc.Key("cutoff_days"); k.String() != "" {
		cfg.Sync.CutoffDays = k.MustInt(7)
	}
	if v := sc.Key("staging_dir").String(); v != "" {
		cfg.Sync.StagingDir = v
	}
	if v := sc.Key("record_dir").String(); v != "" {
		cfg.Sync.RecordDir = v
	}
	if v := sc.Key("history_db").String(); v != "" {
		cfg.Sync.HistoryDB = v
	}

	cfg.Instances = splitInstances(file.Section("instances").Key("db_instance_identifiers").String())

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AWS.Region == "" {
		return fmt.Errorf("missing required config: aws.region_name")
	}
	if c.Storage.Endpoint == "" {
		return fmt.Errorf("missing required config: storage.endpoint")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("missing required config: storage.bucket")
	}
	if len(c.Instances) == 0 {
		return fmt.Errorf("no instance identifiers configured in instances.db_instance_identifiers")
	}
	if c.Sync.CutoffDays < 0 {
		return fmt.Errorf("sync.cutoff_days must not be negative")
	}
	return nil
}

// splitInstances accepts comma or newline separated identifiers so the
// instance list can be kept one-per-line in the ini file.
func splitInstances(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
