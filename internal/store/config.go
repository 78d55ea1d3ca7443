package store

import "codeberg.org/mutker/rampctl/internal/errors"

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/rampctl/sessions.db"
	defaultBatchSize    = 50
	defaultBatchTimeout = 1
)

type Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	DBPath          string `mapstructure:"path"`
	BatchSize       int    `mapstructure:"batch_size"`
	BatchTimeout    int    `mapstructure:"batch_timeout"`
	BackupOnMigrate bool   `mapstructure:"backup_on_migrate"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:         false, // Disabled by default
		DBPath:          defaultDBPath,
		BatchSize:       defaultBatchSize,
		BatchTimeout:    defaultBatchTimeout,
		BackupOnMigrate: true,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate storage settings if the store is enabled
	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 1 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout int
		}{c.BatchSize, c.BatchTimeout})
	}

	return nil
}
