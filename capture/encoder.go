package capture

import (
	"fmt"
	"image"
	"image/jpeg"
)

// Encoder compresses one BGRA pixel buffer. Implementations are selected
// at engine construction, not via runtime environment branching.
type Encoder interface {
	// Encode compresses pixels (BGRA, row stride in bytes) at the given
	// quality (1-100). The returned slice is owned by the caller.
	Encode(pixels []byte, width, height, stride, quality int) ([]byte, error)
	// Format is the frame format tag delivered with encoded output.
	Format() string
}

// newEncoder selects the encoder implementation for an output format.
func newEncoder(format ImageFormat) Encoder {
	if format == FormatRaw {
		return rawEncoder{}
	}
	return jpegEncoder{}
}

// jpegEncoder compresses frames with the standard JPEG codec.
type jpegEncoder struct{}

func (jpegEncoder) Format() string { return "jpeg" }

func (jpegEncoder) Encode(pixels []byte, width, height, stride, quality int) ([]byte, error) {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	if len(pixels) < stride*height || stride < width*4 {
		return nil, fmt.Errorf("%w: pixel buffer %d bytes for %dx%d stride %d",
			ErrEncodingFailed, len(pixels), width, height, stride)
	}

	img := encodeImages.get(width, height)
	defer encodeImages.put(img)
	bgraToRGBA(img, pixels, width, height, stride)

	buf := getEncodeBuf()
	defer putEncodeBuf(buf)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// rawEncoder passes the BGRA buffer through untouched except for
// compacting padded rows.
type rawEncoder struct{}

func (rawEncoder) Format() string { return "raw" }

func (rawEncoder) Encode(pixels []byte, width, height, stride, quality int) ([]byte, error) {
	rowBytes := width * 4
	if len(pixels) < stride*height || stride < rowBytes {
		return nil, fmt.Errorf("%w: pixel buffer %d bytes for %dx%d stride %d",
			ErrEncodingFailed, len(pixels), width, height, stride)
	}
	out := make([]byte, rowBytes*height)
	for y := 0; y < height; y++ {
		copy(out[y*rowBytes:(y+1)*rowBytes], pixels[y*stride:y*stride+rowBytes])
	}
	return out, nil
}

// bgraToRGBA converts a strided BGRA buffer into a tightly packed RGBA
// image.
func bgraToRGBA(dst *image.RGBA, src []byte, width, height, stride int) {
	for y := 0; y < height; y++ {
		srow := src[y*stride:]
		drow := dst.Pix[y*dst.Stride:]
		for x := 0; x < width; x++ {
			si := x * 4
			di := x * 4
			drow[di+0] = srow[si+2]
			drow[di+1] = srow[si+1]
			drow[di+2] = srow[si+0]
			drow[di+3] = 0xFF
		}
	}
}
