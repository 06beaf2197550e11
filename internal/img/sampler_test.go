package img

import (
	"reflect"
	"testing"
)

func TestFrameIndices(t *testing.T) {
	tests := []struct {
		name     string
		percents []int
		maxIndex int
		want     []int
	}{
		{"as is", []int{1, 35, 65, 99}, 100, []int{1, 35, 65, 99}},
		{"x10", []int{1, 35, 65, 99}, 1000, []int{10, 350, 650, 990}},
		{"max 99", []int{1, 35, 65, 99}, 99, []int{1, 35, 65, 99}},
		{"max 4", []int{1, 35, 65, 99}, 4, []int{1, 2, 3, 4}},
		{"max 2", []int{1, 35, 65, 99}, 2, []int{1, 1, 2, 2}},
		{"max 1", []int{1, 35, 65, 99}, 1, []int{1, 1, 1, 1}},
		{"bounds", []int{0, 100, 0, 100}, 99, []int{0, 99, 0, 99}},
		{"single frame", []int{1, 35, 65, 99}, 0, []int{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameIndices(tt.percents, tt.maxIndex); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FrameIndices(%v, %d) = %v, want %v", tt.percents, tt.maxIndex, got, tt.want)
			}
		})
	}
}

func TestFrameIndicesEndpoints(t *testing.T) {
	for maxIndex := 0; maxIndex <= 2000; maxIndex += 37 {
		got := FrameIndices([]int{0, 100}, maxIndex)
		if got[0] != 0 || got[1] != maxIndex {
			t.Fatalf("maxIndex %d: got %v", maxIndex, got)
		}
	}
}

func TestFrameIndicesStayInRange(t *testing.T) {
	for maxIndex := 0; maxIndex <= 300; maxIndex++ {
		for p := 0; p <= 100; p++ {
			idx := FrameIndices([]int{p}, maxIndex)[0]
			if idx < 0 || idx > maxIndex {
				t.Fatalf("p=%d maxIndex=%d: index %d out of range", p, maxIndex, idx)
			}
		}
	}
}
