package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"britearchive/internal/observation"
)

const (
	defaultPort          = 8080
	defaultWorkingDir    = "."
	defaultLogDir        = "logs"
	defaultCollection    = "BRITE-Constellation"
	defaultScheme        = "cadc"
	defaultLedgerPath    = "logs/ledger.db"
	defaultArchiveDir    = "archive"
	defaultManifestCheck = "extensions"
)

// StorageConfig selects the archive backend. An empty Endpoint means the local directory LocalDir.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	LocalDir  string `yaml:"local_dir"`
}

// Remote reports whether an object store is configured.
func (s StorageConfig) Remote() bool { return s.Endpoint != "" }

// Config describes one ingestion deployment.
type Config struct {
	Port                      int           `yaml:"port"`
	WorkingDirectory          string        `yaml:"working_directory"`
	LogFileDirectory          string        `yaml:"log_file_directory"`
	Collection                string        `yaml:"collection"`
	Scheme                    string        `yaml:"scheme"`
	DataSources               []string      `yaml:"data_sources"`
	RemoteDataSource          bool          `yaml:"remote_data_source"`
	RecurseDataSources        bool          `yaml:"recurse_data_sources"`
	DataSourceExtensions      []string      `yaml:"data_source_extensions"`
	ManifestCheck             string        `yaml:"manifest_check"`
	CleanupFilesWhenStoring   bool          `yaml:"cleanup_files_when_storing"`
	CleanupSuccessDestination string        `yaml:"cleanup_success_destination"`
	CleanupFailureDestination string        `yaml:"cleanup_failure_destination"`
	StoreModifiedFilesOnly    bool          `yaml:"store_modified_files_only"`
	RetryFailures             bool          `yaml:"retry_failures"`
	RetryCount                int           `yaml:"retry_count"`
	LedgerPath                string        `yaml:"ledger_path"`
	Storage                   StorageConfig `yaml:"storage"`
}

// Default returns a config for a local run over the working directory.
func Default() Config {
	return Config{
		Port:                 defaultPort,
		WorkingDirectory:     defaultWorkingDir,
		LogFileDirectory:     defaultLogDir,
		Collection:           defaultCollection,
		Scheme:               defaultScheme,
		DataSources:          []string{defaultWorkingDir},
		DataSourceExtensions: observation.NormalizeExtensions(nil),
		ManifestCheck:        defaultManifestCheck,
		LedgerPath:           defaultLedgerPath,
		Storage:              StorageConfig{LocalDir: defaultArchiveDir},
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = defaultWorkingDir
	}
	if c.LogFileDirectory == "" {
		c.LogFileDirectory = defaultLogDir
	}
	if c.Collection == "" {
		c.Collection = defaultCollection
	}
	if c.Scheme == "" {
		c.Scheme = defaultScheme
	}
	if c.LedgerPath == "" {
		c.LedgerPath = defaultLedgerPath
	}
	if len(c.DataSources) == 0 {
		c.DataSources = []string{c.WorkingDirectory}
	}
	if !c.Storage.Remote() && c.Storage.LocalDir == "" {
		c.Storage.LocalDir = defaultArchiveDir
	}
	c.ManifestCheck = strings.ToLower(strings.TrimSpace(c.ManifestCheck))
	if c.ManifestCheck == "" {
		c.ManifestCheck = defaultManifestCheck
	}
	c.DataSourceExtensions = observation.NormalizeExtensions(c.DataSourceExtensions)
}

// Validate rejects settings a run cannot honour.
func (c Config) Validate() error {
	if c.RetryCount < 0 {
		return fmt.Errorf("invalid retry_count: %d (must be >= 0)", c.RetryCount)
	}
	if _, err := observation.ParseCheckMode(c.ManifestCheck); err != nil {
		return fmt.Errorf("invalid manifest_check: %w", err)
	}
	if c.CleanupFilesWhenStoring && (c.CleanupSuccessDestination == "" || c.CleanupFailureDestination == "") {
		return errors.New("cleanup_files_when_storing requires success and failure destinations")
	}
	if c.RemoteDataSource && !c.Storage.Remote() {
		return errors.New("remote_data_source requires a storage endpoint")
	}
	if c.Storage.Remote() && c.Storage.Bucket == "" {
		return errors.New("storage endpoint requires a bucket")
	}
	return nil
}
