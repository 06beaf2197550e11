package img

// FrameIndices maps percentages of a video's length to 0-based frame indices:
// index = ceil(p * maxIndex / 100). p=0 yields 0 and p=100 yields maxIndex.
// Duplicate indices are kept. maxIndex must not be negative.
func FrameIndices(percents []int, maxIndex int) []int {
	indices := make([]int, len(percents))
	for i, p := range percents {
		indices[i] = (p*maxIndex + 99) / 100
	}
	return indices
}
