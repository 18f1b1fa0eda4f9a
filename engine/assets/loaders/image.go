package loaders

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type ImageOptions struct {
	// FlipY stores the bottom row first.
	FlipY bool
	// PowerOfTwo rescales each side up to the next power of two.
	PowerOfTwo bool
}

// DecodeImage decodes a PNG, JPEG or BMP file into tightly packed RGBA8
// pixels.
func DecodeImage(name string, data []byte, opts ImageOptions) (*metadata.ImageData, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image %s: %w: %s", name, core.ErrUnsupportedResource, err.Error())
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image %s: empty %s image: %w", name, format, core.ErrUnsupportedResource)
	}
	if opts.PowerOfTwo {
		width, height = int(NextPowerOfTwo(uint32(width))), int(NextPowerOfTwo(uint32(height)))
	}

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(rgba, rgba.Bounds(), img, bounds, draw.Src, nil)
	}

	if opts.FlipY {
		flipRows(rgba.Pix, rgba.Stride, height)
	}
	return &metadata.ImageData{
		Width:  uint32(width),
		Height: uint32(height),
		Pixels: rgba.Pix,
	}, nil
}

func flipRows(pix []byte, stride, rows int) {
	tmp := make([]byte, stride)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

func NextPowerOfTwo(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}
