package capture

import (
	"bytes"
	"image"
	"sync"
)

// jpegBufs pools output buffers for the JPEG encoder. Oversized buffers
// are dropped on return rather than pinned in the pool.
var jpegBufs = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 64*1024))
	},
}

const maxPooledBufCap = 512 * 1024

func getEncodeBuf() *bytes.Buffer {
	b := jpegBufs.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

func putEncodeBuf(b *bytes.Buffer) {
	if b.Cap() <= maxPooledBufCap {
		jpegBufs.Put(b)
	}
}

// rgbaCache reuses RGBA scratch images for a single resolution. A
// session's resolution is fixed when the duplication opens, so a
// dimension change simply drops the cached images.
type rgbaCache struct {
	mu   sync.Mutex
	w, h int
	free []*image.RGBA
}

const maxCachedImages = 4

func (c *rgbaCache) get(w, h int) *image.RGBA {
	c.mu.Lock()
	if c.w != w || c.h != h {
		c.w, c.h = w, h
		c.free = c.free[:0]
	}
	if n := len(c.free); n > 0 {
		img := c.free[n-1]
		c.free = c.free[:n-1]
		c.mu.Unlock()
		return img
	}
	c.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func (c *rgbaCache) put(img *image.RGBA) {
	b := img.Bounds()
	c.mu.Lock()
	if c.w == b.Dx() && c.h == b.Dy() && len(c.free) < maxCachedImages {
		c.free = append(c.free, img)
	}
	c.mu.Unlock()
}

var encodeImages rgbaCache
