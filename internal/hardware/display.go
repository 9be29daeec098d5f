package hardware

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Display is a two-line character display, 16x2 style.
type Display interface {
	Write(line1, line2 string) error
	Clear() error
}

// CharDisplay renders two fixed-width lines to an io.Writer sink. The kiosk
// LCD transport (I2C or otherwise) is provided as the sink by the caller.
type CharDisplay struct {
	mu    sync.Mutex
	sink  io.Writer
	width int
}

// NewCharDisplay creates a display with the given line width writing to sink.
// A nil sink defaults to stdout.
func NewCharDisplay(sink io.Writer, width int) *CharDisplay {
	if sink == nil {
		sink = os.Stdout
	}
	if width <= 0 {
		width = 16
	}
	return &CharDisplay{sink: sink, width: width}
}

// Write truncates both lines to the display width and writes them.
func (d *CharDisplay) Write(line1, line2 string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := fmt.Fprintf(d.sink, "%s\n%s\n", truncate(line1, d.width), truncate(line2, d.width))
	return err
}

// Clear blanks the display.
func (d *CharDisplay) Clear() error {
	return d.Write("", "")
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}
