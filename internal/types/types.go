package types

// FeatureSize is the length of a face feature vector (128-d face encoding).
const FeatureSize = 128

// Feature is an opaque face encoding produced by the detector.
type Feature [FeatureSize]float32

// IsZero reports whether no feature was captured.
func (f *Feature) IsZero() bool {
	for _, v := range f {
		if v != 0 {
			return false
		}
	}
	return true
}

// Frame is a borrowed view of one captured camera buffer.
// Data points into the camera buffer pool and MUST NOT be retained after the
// frame callback returns.
type Frame struct {
	Data   []byte
	Index  int // index of the buffer inside the pool
	Width  int
	Height int
}

// Region is a face bounding box as [top, right, bottom, left].
type Region [4]int

// Candidate is one face found by the detector.
type Candidate struct {
	Loc   Region
	Vec   []float32 // empty when the detector does not extract features
	Score float32
}

// Match outcomes returned by a matcher alongside non-negative slot indices.
const (
	MatchUnknown = -1 // a usable face that matches no stored record
	MatchNone    = -2 // no usable candidate
)
