package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yungbote/artisan-backend/internal/pipeline"
)

// CanonicalName is the file name of the normalized renderer input inside a
// job workspace.
const CanonicalName = "input.png"

// DefaultMaxPixels bounds the decoded size of a source image.
const DefaultMaxPixels int64 = 40_000_000

// Normalize decodes data in any registered format and re-encodes it as a
// lossless 8-bit non-premultiplied RGBA PNG. Paletted, gray, YCbCr and CMYK
// inputs all come out in the same pixel layout. Images whose header declares
// more than maxPixels pixels are rejected before any pixel data is decoded;
// maxPixels <= 0 means DefaultMaxPixels.
func Normalize(data []byte, maxPixels int64) ([]byte, image.Config, error) {
	if len(data) == 0 {
		return nil, image.Config{}, &pipeline.InvalidImageError{Err: errors.New("empty image payload")}
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	head, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, image.Config{}, &pipeline.InvalidImageError{Err: err}
	}
	if head.Width <= 0 || head.Height <= 0 {
		return nil, image.Config{}, &pipeline.InvalidImageError{Err: fmt.Errorf("%s image declares empty size %dx%d", format, head.Width, head.Height)}
	}
	if int64(head.Width) > maxPixels || int64(head.Height) > maxPixels || int64(head.Width)*int64(head.Height) > maxPixels {
		return nil, image.Config{}, &pipeline.InvalidImageError{Err: fmt.Errorf("%s image is %dx%d, over the %d pixel limit", format, head.Width, head.Height, maxPixels)}
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Config{}, &pipeline.InvalidImageError{Err: err}
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, image.Config{}, &pipeline.InvalidImageError{Err: fmt.Errorf("%s image has empty bounds %v", format, b)}
	}

	dst := toNRGBA(src)

	var out bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&out, dst); err != nil {
		return nil, image.Config{}, fmt.Errorf("encode canonical png: %w", err)
	}
	return out.Bytes(), image.Config{ColorModel: dst.ColorModel(), Width: b.Dx(), Height: b.Dy()}, nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
