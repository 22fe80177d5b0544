package capture

import (
	"bytes"
	"errors"
	"image/jpeg"
	"testing"
)

// bgraFill builds a strided BGRA buffer filled with one color.
func bgraFill(width, height, stride int, b, g, r byte) []byte {
	buf := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*stride + x*4
			buf[i+0] = b
			buf[i+1] = g
			buf[i+2] = r
			buf[i+3] = 0xFF
		}
	}
	return buf
}

func TestJPEGEncoderProducesDecodableImage(t *testing.T) {
	enc := newEncoder(FormatJPEG)
	if enc.Format() != "jpeg" {
		t.Fatalf("format = %q, want jpeg", enc.Format())
	}

	const w, h = 16, 12
	stride := w*4 + 32 // padded rows
	pixels := bgraFill(w, h, stride, 0, 128, 255)

	data, err := enc.Encode(pixels, w, h, stride, 85)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		t.Fatalf("decoded %dx%d, want %dx%d",
			img.Bounds().Dx(), img.Bounds().Dy(), w, h)
	}
}

func TestJPEGEncoderSwapsBGRAChannels(t *testing.T) {
	enc := newEncoder(FormatJPEG)

	const w, h = 16, 16
	// Pure blue in BGRA: B=255, G=0, R=0.
	pixels := bgraFill(w, h, w*4, 255, 0, 0)

	data, err := enc.Encode(pixels, w, h, w*4, 95)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	r, g, b, _ := img.At(8, 8).RGBA()
	if b <= r || b <= g {
		t.Fatalf("blue BGRA input decoded as r=%d g=%d b=%d; channel swap missing", r, g, b)
	}
}

func TestJPEGEncoderRejectsShortBuffer(t *testing.T) {
	enc := newEncoder(FormatJPEG)
	_, err := enc.Encode(make([]byte, 10), 16, 16, 64, 85)
	if !errors.Is(err, ErrEncodingFailed) {
		t.Fatalf("expected ErrEncodingFailed for short buffer, got %v", err)
	}
}

func TestRawEncoderCompactsPaddedRows(t *testing.T) {
	enc := newEncoder(FormatRaw)
	if enc.Format() != "raw" {
		t.Fatalf("format = %q, want raw", enc.Format())
	}

	const w, h = 8, 4
	stride := w*4 + 16
	pixels := bgraFill(w, h, stride, 1, 2, 3)
	// Poison the padding; it must not leak into the output.
	for y := 0; y < h; y++ {
		for x := w * 4; x < stride; x++ {
			pixels[y*stride+x] = 0xEE
		}
	}

	data, err := enc.Encode(pixels, w, h, stride, 0)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != w*4*h {
		t.Fatalf("raw output %d bytes, want %d", len(data), w*4*h)
	}
	for i, v := range data {
		want := []byte{1, 2, 3, 0xFF}[i%4]
		if v != want {
			t.Fatalf("byte %d = 0x%02X, want 0x%02X", i, v, want)
		}
	}
}
