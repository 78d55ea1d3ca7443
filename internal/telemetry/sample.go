package telemetry

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"codeberg.org/mutker/rampctl/internal/errors"
)

// Sample is one telemetry record: seconds since the control session started
// and the measured velocity in RPM.
type Sample struct {
	Elapsed     float64
	MeasuredRPM float64
}

func (s Sample) validate() error {
	if s.Elapsed < 0 || math.IsNaN(s.Elapsed) || math.IsInf(s.Elapsed, 0) {
		return errors.New().WithData(ErrInvalidSample, s)
	}
	if math.IsNaN(s.MeasuredRPM) || math.IsInf(s.MeasuredRPM, 0) {
		return errors.New().WithData(ErrInvalidSample, s)
	}
	return nil
}

// appendRecord formats s as a single newline-terminated CSV record
func appendRecord(dst []byte, s Sample) []byte {
	dst = strconv.AppendFloat(dst, s.Elapsed, 'f', -1, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, s.MeasuredRPM, 'f', -1, 64)
	return append(dst, '\n')
}

// Read parses a telemetry stream written by Log
func Read(r io.Reader) ([]Sample, error) {
	errFactory := errors.New()

	var samples []Sample
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		elapsed, measured, ok := strings.Cut(text, ",")
		if !ok {
			return nil, errFactory.WithData(ErrMalformedLine, line)
		}

		e, err := strconv.ParseFloat(elapsed, 64)
		if err != nil {
			return nil, errFactory.Wrap(ErrMalformedLine, err)
		}
		m, err := strconv.ParseFloat(measured, 64)
		if err != nil {
			return nil, errFactory.Wrap(ErrMalformedLine, err)
		}

		samples = append(samples, Sample{Elapsed: e, MeasuredRPM: m})
	}
	if err := scanner.Err(); err != nil {
		return nil, errFactory.Wrap(ErrMalformedLine, err)
	}

	return samples, nil
}
