package actuator

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/logger"
	"github.com/tarm/serial"
)

// maxStaleReplies bounds how many late replies one exchange skips
const maxStaleReplies = 16

// SerialConfig holds serial port configuration
type SerialConfig struct {
	// Device path (e.g., "/dev/ttyACM0")
	Device string `mapstructure:"device"`

	Baud int `mapstructure:"baud"`

	// Read timeout for a single reply (0 = blocking)
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		Device:      "/dev/ttyACM0",
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Serial drives a motor controller bridge over a line-oriented ASCII
// protocol. Every request is one line tagged with a sequence number and is
// answered by one line carrying the same tag:
//
//	<seq> CFG <kv> <kp> <ki> <kd>   -> <seq> OK
//	<seq> VEL <rps> <slot>          -> <seq> OK
//	<seq> NEU                       -> <seq> OK
//	<seq> VEL?                      -> <seq> <rps>
//
// A bridge that refuses a request answers "<seq> ERR <reason>". Replies
// tagged with an earlier sequence number arrived after their request timed
// out and are skipped, as are untagged fragments.
type Serial struct {
	mu         sync.Mutex
	port       io.ReadWriteCloser
	reader     *bufio.Reader
	seq        uint64
	configured bool
	closed     bool
	logger     logger.Logger
}

// OpenSerial opens the serial port described by cfg
func OpenSerial(cfg SerialConfig, log logger.Logger) (*Serial, error) {
	errFactory := errors.New()

	if cfg.Device == "" {
		return nil, errFactory.WithData(ErrInitFailed, "serial device not set")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, errFactory.Wrap(ErrInitFailed, fmt.Errorf("open %s: %w", cfg.Device, err))
	}

	log.Info().Str("device", cfg.Device).Int("baud", cfg.Baud).Msg("Serial actuator connected")

	return NewSerial(port, log), nil
}

// NewSerial speaks the bridge protocol over an already open port
func NewSerial(port io.ReadWriteCloser, log logger.Logger) *Serial {
	return &Serial{
		port:   port,
		reader: bufio.NewReader(port),
		logger: log,
	}
}

func (s *Serial) Configure(gains Gains) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := "CFG " + formatFloat(gains.KV) + " " + formatFloat(gains.KP) + " " +
		formatFloat(gains.KI) + " " + formatFloat(gains.KD)
	if err := s.expectOK(cmd, ErrConfigureFailed); err != nil {
		return err
	}
	s.configured = true

	return nil
}

func (s *Serial) SetVelocity(rps float64, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.configured {
		return errors.New().New(ErrNotConfigured)
	}
	if slot < 0 || slot > maxSlot {
		return errors.New().WithData(ErrInvalidSlot, slot)
	}

	return s.expectOK("VEL "+formatFloat(rps)+" "+strconv.Itoa(slot), ErrSetVelocity)
}

func (s *Serial) SetNeutral() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.expectOK("NEU", ErrSetNeutral)
}

func (s *Serial) Velocity() (float64, error) {
	errFactory := errors.New()
	s.mu.Lock()
	defer s.mu.Unlock()

	reply, err := s.exchange("VEL?")
	if err != nil {
		return 0, errFactory.Wrap(ErrReadVelocity, err)
	}

	rps, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, errFactory.Wrap(ErrBadResponse, err)
	}

	return rps, nil
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.port.Close(); err != nil {
		return errors.New().Wrap(ErrTransport, err)
	}

	return nil
}

func (s *Serial) expectOK(cmd string, code errors.ErrorCode) error {
	reply, err := s.exchange(cmd)
	if err != nil {
		return errors.New().Wrap(code, err)
	}
	if reply != "OK" {
		return errors.New().Wrap(code, errors.New().WithData(ErrBadResponse, reply))
	}

	return nil
}

// exchange sends one request line and returns the body of its reply
func (s *Serial) exchange(cmd string) (string, error) {
	errFactory := errors.New()

	if s.closed {
		return "", errFactory.New(ErrClosed)
	}

	s.seq++
	if _, err := fmt.Fprintf(s.port, "%d %s\n", s.seq, cmd); err != nil {
		return "", errFactory.Wrap(ErrTransport, err)
	}

	for skipped := 0; ; skipped++ {
		if skipped > maxStaleReplies {
			return "", errFactory.WithData(ErrBadResponse, "no reply for request "+strconv.FormatUint(s.seq, 10))
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			return "", errFactory.Wrap(ErrTransport, err)
		}

		tag, reply, ok := parseReply(line)
		switch {
		case !ok || tag < s.seq:
			s.logger.Debug().Str("line", strings.TrimSpace(line)).Uint64("seq", s.seq).Msg("Skipping stale serial reply")
			continue
		case tag > s.seq:
			return "", errFactory.WithData(ErrBadResponse, strings.TrimSpace(line))
		}

		if reason, rejected := strings.CutPrefix(reply, "ERR"); rejected {
			return "", errFactory.WithData(ErrDeviceRejected, strings.TrimSpace(reason))
		}

		s.logger.Debug().Str("request", cmd).Str("reply", reply).Msg("Serial exchange")

		return reply, nil
	}
}

// parseReply splits "<seq> <body>" into its parts
func parseReply(line string) (uint64, string, bool) {
	tag, body, _ := strings.Cut(strings.TrimSpace(line), " ")
	seq, err := strconv.ParseUint(tag, 10, 64)
	if err != nil {
		return 0, "", false
	}

	return seq, strings.TrimSpace(body), true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
