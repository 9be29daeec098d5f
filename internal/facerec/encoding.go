// Package facerec defines the face encoding type and the matching logic
// used to resolve detected faces against the enrolled roster. Detection and
// encoding themselves are delegated to an external Oracle implementation.
package facerec

import (
	"encoding/json"
	"math"

	"github.com/jsalmela/attendant/internal/errors"
)

// Encoding is an opaque fixed-size numeric face descriptor. All encodings
// compared against each other must have the same length.
type Encoding []float32

// Marshal serializes the encoding for storage in the roster.
func (e Encoding) Marshal() ([]byte, error) {
	data, err := json.Marshal([]float32(e))
	if err != nil {
		return nil, errors.New(err).
			Component("facerec").
			Category(errors.CategoryValidation).
			Build()
	}
	return data, nil
}

// UnmarshalEncoding deserializes an encoding stored by Marshal.
func UnmarshalEncoding(data []byte) (Encoding, error) {
	var values []float32
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.New(err).
			Component("facerec").
			Category(errors.CategoryValidation).
			Context("operation", "unmarshal_encoding").
			Build()
	}
	return Encoding(values), nil
}

// EuclideanDistance computes the L2 distance between two encodings.
// Returns +Inf for mismatched or empty inputs so broken encodings can
// never satisfy a tolerance check.
func EuclideanDistance(a, b Encoding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
