package img

import (
	"image"

	"golang.org/x/image/draw"
)

// Collage places four frames of exactly (w, h) pixels on a 2x2 grid:
// frames 0 and 1 form the top row, frames 2 and 3 the bottom row.
func Collage(frames []image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, 2*w, 2*h))
	for i, f := range frames[:4] {
		at := image.Pt((i%2)*w, (i/2)*h)
		draw.Copy(dst, at, f, f.Bounds(), draw.Src, nil)
	}
	return dst
}
