// Package console handles the operator terminal: the target velocity prompt
// and the per-tick status line.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/logger"
)

const (
	promptText  = "Enter desired RPM: "
	invalidText = "Invalid input, please enter a numeric value for RPM: "
)

// ParseTarget parses a target velocity in RPM. Anything that is not a finite
// number is rejected.
func ParseTarget(input string) (float64, error) {
	errFactory := errors.New()

	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrInvalidTarget, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errFactory.WithData(errors.ErrInvalidTarget, input)
	}

	return v, nil
}

// answer is a parsed target tagged with the request it answers
type answer struct {
	gen   uint64
	value float64
}

// Prompter collects target velocities from a line-oriented input without
// blocking the control loop. Request opens a prompt, the reader goroutine
// validates lines and re-prompts on invalid input, and Poll hands over the
// first valid value. Every Request or Cancel starts a new generation; an
// answer only counts for the generation it was typed for.
type Prompter struct {
	in       io.Reader
	out      io.Writer
	outMu    sync.Mutex
	gen      atomic.Uint64
	requests chan uint64
	values   chan answer
	logger   logger.Logger
}

func NewPrompter(in io.Reader, out io.Writer, log logger.Logger) *Prompter {
	return &Prompter{
		in:       in,
		out:      out,
		requests: make(chan uint64, 1),
		values:   make(chan answer, 1),
		logger:   log,
	}
}

// Run reads input until ctx is done or the input is exhausted. Lines typed
// while no prompt is open are discarded.
func (p *Prompter) Run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to read target input")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case gen := <-p.requests:
			if !p.prompt(ctx, lines, gen) {
				return
			}
		case line, ok := <-lines:
			if !ok {
				p.logger.Debug().Msg("Target input closed")
				return
			}
			p.logger.Debug().Str("input", line).Msg("Discarding input typed while no prompt is open")
		}
	}
}

// prompt reads lines until one parses or the prompt is cancelled. It
// returns false when the input or ctx ends first.
func (p *Prompter) prompt(ctx context.Context, lines <-chan string, gen uint64) bool {
	p.print(promptText)

	for {
		select {
		case <-ctx.Done():
			return false
		case gen = <-p.requests:
			p.print(promptText)
		case line, ok := <-lines:
			if !ok {
				p.logger.Warn().Msg("Target input closed before a valid value was entered")
				return false
			}

			if p.gen.Load() != gen {
				p.logger.Debug().Str("input", line).Msg("Discarding input for a cancelled prompt")
				return true
			}

			v, err := ParseTarget(line)
			if err != nil {
				p.logger.Debug().Str("input", line).Msg("Rejected target input")
				p.print(invalidText)
				continue
			}

			select {
			case <-p.values:
			default:
			}
			p.values <- answer{gen: gen, value: v}
			p.print("\n")

			return true
		}
	}
}

// Request opens a prompt for a new target. Any value entered for an earlier
// request is discarded.
func (p *Prompter) Request() {
	gen := p.gen.Add(1)
	p.drain()

	select {
	case p.requests <- gen:
	default:
	}
}

// Cancel withdraws the open request. A value typed for it is never handed
// over.
func (p *Prompter) Cancel() {
	p.gen.Add(1)
	p.drain()
}

// Poll returns the entered target if one is ready for the current request
func (p *Prompter) Poll() (float64, bool) {
	select {
	case a := <-p.values:
		if a.gen != p.gen.Load() {
			return 0, false
		}
		return a.value, true
	default:
		return 0, false
	}
}

func (p *Prompter) drain() {
	for {
		select {
		case <-p.values:
		case <-p.requests:
		default:
			return
		}
	}
}

func (p *Prompter) print(s string) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprint(p.out, s)
}
