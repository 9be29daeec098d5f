package kiosk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsalmela/attendant/internal/logging"
	"github.com/jsalmela/attendant/internal/processor"
)

type recordingDisplay struct {
	lines [][2]string
	err   error
}

func (d *recordingDisplay) Write(line1, line2 string) error {
	d.lines = append(d.lines, [2]string{line1, line2})
	return d.err
}

func (d *recordingDisplay) Clear() error { return d.Write("", "") }

func TestRenderStatusWritesOnChange(t *testing.T) {
	logger := logging.ForService("kiosk")
	display := &recordingDisplay{}
	var last string

	renderStatus(logger, display, processor.StatusScanning, &last)
	renderStatus(logger, display, processor.StatusScanning, &last)
	renderStatus(logger, display, "FOUND: Maija", &last)
	renderStatus(logger, display, "ENTER: Maija", &last)
	renderStatus(logger, display, "ENTER: Maija", &last)

	require.Len(t, display.lines, 3, "unchanged status lines are not rewritten")
	assert.Equal(t, processor.StatusScanning, display.lines[0][0])
	assert.Equal(t, "FOUND: Maija", display.lines[1][0])
	assert.Equal(t, "ENTER: Maija", display.lines[2][0])
}

func TestRenderStatusNilDisplay(t *testing.T) {
	var last string
	renderStatus(logging.ForService("kiosk"), nil, processor.StatusScanning, &last)
	assert.Empty(t, last)
}

func TestRenderStatusWriteFailureDoesNotStick(t *testing.T) {
	logger := logging.ForService("kiosk")
	display := &recordingDisplay{err: fmt.Errorf("i2c bus stuck")}
	var last string

	renderStatus(logger, display, processor.StatusScanning, &last)
	assert.Equal(t, processor.StatusScanning, last, "failed write is logged, not retried per frame")

	display.err = nil
	renderStatus(logger, display, "FOUND: Maija", &last)
	assert.Len(t, display.lines, 2)
}
