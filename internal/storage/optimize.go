package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register decoder
)

// ErrUnsupportedImage is returned for data that is neither JPEG nor PNG.
var ErrUnsupportedImage = errors.New("unsupported image format")

// DefaultJPEGQuality is used when Optimize gets an out-of-range quality.
const DefaultJPEGQuality = 80

// Optimized is the result of re-encoding a photo.
type Optimized struct {
	Data          []byte
	ContentType   string
	OriginalSize  int64
	OptimizedSize int64
}

// Ratio is optimized/original size, 1 when nothing was saved.
func (o Optimized) Ratio() float64 {
	if o.OriginalSize == 0 {
		return 1
	}
	return float64(o.OptimizedSize) / float64(o.OriginalSize)
}

// Optimize re-encodes a JPEG or PNG as JPEG at quality and keeps whichever
// of the original and the re-encoded bytes is smaller.
func Optimize(data []byte, quality int) (Optimized, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Optimized{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if format != "jpeg" && format != "png" {
		return Optimized{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Optimized{}, fmt.Errorf("encode jpeg: %w", err)
	}

	out := Optimized{
		Data:          buf.Bytes(),
		ContentType:   "image/jpeg",
		OriginalSize:  int64(len(data)),
		OptimizedSize: int64(buf.Len()),
	}
	if format == "jpeg" && out.OptimizedSize >= out.OriginalSize {
		out.Data = data
		out.OptimizedSize = out.OriginalSize
	}
	return out, nil
}
