package actuator

import (
	"time"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/logger"
)

const (
	KindSimulated = "sim"
	KindSerial    = "serial"
)

// Config selects and parameterizes the actuator
type Config struct {
	Kind         string        `mapstructure:"kind"`
	Slot         int           `mapstructure:"slot"`
	TimeConstant time.Duration `mapstructure:"time_constant"`
	Gains        Gains         `mapstructure:"gains"`
	Serial       SerialConfig  `mapstructure:"serial"`
}

func DefaultConfig() Config {
	return Config{
		Kind:         KindSimulated,
		Slot:         0,
		TimeConstant: defaultTimeConstant,
		Gains:        DefaultGains(),
		Serial:       DefaultSerialConfig(),
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch c.Kind {
	case KindSimulated, KindSerial:
	default:
		return errFactory.WithData(ErrUnknownKind, c.Kind)
	}

	if c.Slot < 0 || c.Slot > maxSlot {
		return errFactory.WithData(ErrInvalidSlot, c.Slot)
	}

	if c.Kind == KindSerial && c.Serial.Device == "" {
		return errFactory.WithData(ErrInitFailed, "serial device not set")
	}

	return nil
}

// Open creates the actuator selected by cfg.Kind
func Open(cfg Config, log logger.Logger) (Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Kind == KindSerial {
		return OpenSerial(cfg.Serial, log)
	}

	log.Info().Dur("time_constant", cfg.TimeConstant).Msg("Using simulated actuator")

	return NewSimulated(cfg.TimeConstant, log), nil
}
