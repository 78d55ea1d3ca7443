package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/rampctl/internal/actuator"
	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/ramp"
	"codeberg.org/mutker/rampctl/internal/shutdown"
	"codeberg.org/mutker/rampctl/internal/store"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "RAMPCTL"
	configEnv  = "RAMPCTL_CONFIG"
	configName = "rampctl"
	configType = "toml"
	systemDir  = "/etc/rampctl"

	DefaultInterval      = 20 * time.Millisecond
	DefaultLogLevel      = LogLevelInfo
	DefaultTelemetryFile = "rpm_data.csv"
)

type Config struct {
	Interval     time.Duration `mapstructure:"interval"`
	LogLevel     LogLevel      `mapstructure:"log_level"`
	StartEnabled bool          `mapstructure:"start_enabled"`
	// PIDDir holds the pid file; empty means the system temp dir
	PIDDir string `mapstructure:"pid_dir"`

	Ramp      ramp.Config     `mapstructure:"ramp"`
	Actuator  actuator.Config `mapstructure:"actuator"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Store     store.Config    `mapstructure:"store"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Shutdown  shutdown.Config `mapstructure:"shutdown"`
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"interval":        "interval",
	"log-level":       "log_level",
	"enabled":         "start_enabled",
	"pid-dir":         "pid_dir",
	"actuator":        "actuator.kind",
	"device":          "actuator.serial.device",
	"telemetry-file":  "telemetry.file",
	"store":           "store.enabled",
	"store-path":      "store.path",
	"metrics-address": "metrics.address",
	"post-command":    "shutdown.command",
}

// RegisterFlags adds the configuration flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to the configuration file")
	fs.Duration("interval", DefaultInterval, "Control loop period")
	fs.String("log-level", DefaultLogLevel.String(), "Log level (debug, info, warning, error)")
	fs.Bool("enabled", true, "Start with control enabled")
	fs.String("pid-dir", "", "Directory for the pid file (default: system temp dir)")
	fs.String("actuator", actuator.KindSimulated, "Actuator kind (sim, serial)")
	fs.String("device", actuator.DefaultSerialConfig().Device, "Serial device of the motor controller")
	fs.String("telemetry-file", DefaultTelemetryFile, "Telemetry CSV output file")
	fs.Bool("store", false, "Record sessions to the SQLite store")
	fs.String("store-path", store.DefaultConfig().DBPath, "Path to the session store database")
	fs.String("metrics-address", "", "Serve Prometheus metrics on this address")
	fs.String("post-command", shutdown.DefaultCommand, "Command run on the telemetry after a termination signal")
}

// Load reads defaults, the config file, RAMPCTL_* environment variables and
// the flags in fs (highest precedence), then validates the result.
func Load(fs *pflag.FlagSet) (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
	}

	path := configPath(fs)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(systemDir)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Telemetry.File == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "telemetry.file must be set")
	}

	if err := c.Ramp.Validate(); err != nil {
		return err
	}

	if err := c.Actuator.Validate(); err != nil {
		return err
	}

	return c.Store.Validate()
}

func configPath(fs *pflag.FlagSet) string {
	if fs != nil {
		if path, err := fs.GetString("config"); err == nil && path != "" {
			return path
		}
	}

	return os.Getenv(configEnv)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("log_level", DefaultLogLevel.String())
	v.SetDefault("start_enabled", true)
	v.SetDefault("pid_dir", "")

	r := ramp.DefaultConfig()
	v.SetDefault("ramp.rate_up", r.RateUp)
	v.SetDefault("ramp.rate_down", r.RateDown)
	v.SetDefault("ramp.up_coefficient", r.UpCoefficient)
	v.SetDefault("ramp.down_coefficient", r.DownCoefficient)
	v.SetDefault("ramp.tick_scale", r.TickScale)
	v.SetDefault("ramp.reset_on_enable", r.ResetOnEnable)

	a := actuator.DefaultConfig()
	v.SetDefault("actuator.kind", a.Kind)
	v.SetDefault("actuator.slot", a.Slot)
	v.SetDefault("actuator.time_constant", a.TimeConstant)
	v.SetDefault("actuator.gains.kv", a.Gains.KV)
	v.SetDefault("actuator.gains.kp", a.Gains.KP)
	v.SetDefault("actuator.gains.ki", a.Gains.KI)
	v.SetDefault("actuator.gains.kd", a.Gains.KD)
	v.SetDefault("actuator.serial.device", a.Serial.Device)
	v.SetDefault("actuator.serial.baud", a.Serial.Baud)
	v.SetDefault("actuator.serial.read_timeout", a.Serial.ReadTimeout)

	v.SetDefault("telemetry.file", DefaultTelemetryFile)

	s := store.DefaultConfig()
	v.SetDefault("store.enabled", s.Enabled)
	v.SetDefault("store.path", s.DBPath)
	v.SetDefault("store.batch_size", s.BatchSize)
	v.SetDefault("store.batch_timeout", s.BatchTimeout)
	v.SetDefault("store.backup_on_migrate", s.BackupOnMigrate)

	v.SetDefault("metrics.address", "")
	v.SetDefault("shutdown.command", shutdown.DefaultCommand)
}
