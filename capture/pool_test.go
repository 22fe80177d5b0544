package capture

import (
	"image"
	"testing"
)

func TestRGBACacheReusesSameResolution(t *testing.T) {
	var c rgbaCache
	img := c.get(16, 16)
	c.put(img)
	if got := c.get(16, 16); got != img {
		t.Fatal("expected cached image back for matching resolution")
	}
}

func TestRGBACacheDropsOnResolutionChange(t *testing.T) {
	var c rgbaCache
	img := c.get(16, 16)
	c.put(img)

	other := c.get(32, 32)
	if other == img {
		t.Fatal("resolution change must not reuse the old image")
	}
	b := other.Bounds()
	if b.Dx() != 32 || b.Dy() != 32 {
		t.Fatalf("got %dx%d image, want 32x32", b.Dx(), b.Dy())
	}

	// The old image no longer matches the cache's resolution.
	c.put(img)
	if got := c.get(32, 32); got == img {
		t.Fatal("stale-resolution image must not be cached")
	}
}

func TestRGBACacheBoundsFreeList(t *testing.T) {
	var c rgbaCache
	c.get(8, 8)
	for i := 0; i < maxCachedImages+3; i++ {
		c.put(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	}
	if len(c.free) > maxCachedImages {
		t.Fatalf("free list holds %d images, cap is %d", len(c.free), maxCachedImages)
	}
}
