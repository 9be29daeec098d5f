package facerec

import (
	"github.com/jsalmela/attendant/internal/camera"
)

// Region is the bounding box of a detected face within a frame.
type Region struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Detection is one detected face region with its encoding.
type Detection struct {
	Region   Region
	Encoding Encoding
}

// Oracle detects faces in a frame and produces comparable encodings.
// Implementations wrap an external face recognition library or service;
// a per-frame error means the frame is skipped, not that the session fails.
type Oracle interface {
	DetectAndEncode(frame camera.Frame) ([]Detection, error)
}
