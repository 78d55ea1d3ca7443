package console

import (
	"fmt"
	"io"
)

const clearScreen = "\033[2J\033[H"

// Status renders the measured velocity once per tick. With Redraw set the
// terminal is cleared first so the line updates in place.
type Status struct {
	out    io.Writer
	redraw bool
}

func NewStatus(out io.Writer, redraw bool) *Status {
	return &Status{out: out, redraw: redraw}
}

func (s *Status) Render(measuredRPM, elapsed float64) {
	if s.redraw {
		fmt.Fprintf(s.out, "%sEncoder RPM: %.2f at %.3f seconds", clearScreen, measuredRPM, elapsed)
		return
	}

	fmt.Fprintf(s.out, "Encoder RPM: %.2f at %.3f seconds\n", measuredRPM, elapsed)
}
