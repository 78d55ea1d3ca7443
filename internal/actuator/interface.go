// Package actuator defines the velocity actuator capability and its
// implementations. Velocities cross this boundary in the device's native
// unit, rotations per second.
package actuator

// Actuator is a velocity-controlled motor
type Actuator interface {
	// Configure applies closed-loop gains to the device's control slot
	Configure(gains Gains) error

	// SetVelocity commands a velocity in rotations per second using the
	// gains stored in slot
	SetVelocity(rps float64, slot int) error

	// SetNeutral commands zero output
	SetNeutral() error

	// Velocity returns the measured velocity in rotations per second
	Velocity() (float64, error)
}

// Device is an Actuator that holds an OS or bus resource
type Device interface {
	Actuator
	Close() error
}

// Gains is a set of closed-loop velocity gains
type Gains struct {
	KV float64 `mapstructure:"kv"`
	KP float64 `mapstructure:"kp"`
	KI float64 `mapstructure:"ki"`
	KD float64 `mapstructure:"kd"`
}

// DefaultGains returns the slot gains the controller is tuned with
func DefaultGains() Gains {
	return Gains{
		KV: 0.008,
		KP: 0.02,
		KI: 0.04,
		KD: 0,
	}
}

const secondsPerMinute = 60

// RPMToRPS converts revolutions per minute to rotations per second
func RPMToRPS(rpm float64) float64 {
	return rpm / secondsPerMinute
}

// RPSToRPM converts rotations per second to revolutions per minute
func RPSToRPM(rps float64) float64 {
	return rps * secondsPerMinute
}
