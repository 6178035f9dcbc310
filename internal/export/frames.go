package export

import "math"

// FrameIndex returns the frame containing t: floor(t * fps). The small
// tolerance keeps already-snapped times on their own frame.
func FrameIndex(t, fps float64) int64 {
	if fps <= 0 {
		return 0
	}
	return int64(math.Floor(t*fps + 1e-9))
}

// SnapToFrame moves t back to the start of its frame.
func SnapToFrame(t, fps float64) float64 {
	if fps <= 0 {
		return t
	}
	return float64(FrameIndex(t, fps)) / fps
}
