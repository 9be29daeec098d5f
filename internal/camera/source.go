// Package camera defines the frame acquisition boundary. Actual capture
// devices live behind the FrameSource interface; the engine only consumes
// frames.
package camera

import (
	"context"
	"time"
)

// Frame is a single captured camera frame. Pixels are an opaque payload for
// the recognition oracle; the engine never inspects them.
type Frame struct {
	Pixels    []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// FrameSource produces camera frames for the detection loop.
type FrameSource interface {
	// Next blocks until a frame is available or the context is done.
	Next(ctx context.Context) (Frame, error)
	// Close releases the capture device.
	Close() error
}
