//go:build windows

package dxgi

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"github.com/voibo/desktop-audio-capture/internal/comutil"
)

// Frame is one mapped desktop image. Pixels holds Height rows of BGRA
// data at Stride bytes per row; the slice is owned by the Duplicator and
// only valid until the next AcquireFrame or Close.
type Frame struct {
	Pixels []byte
	Width  int
	Height int
	Stride int
}

// Duplicator owns one IDXGIOutputDuplication stream for a single display
// output plus the staging texture frames are read back through.
type Duplicator struct {
	outputIndex int
	skipInit    bool

	mu          sync.Mutex
	device      uintptr // ID3D11Device
	context     uintptr // ID3D11DeviceContext
	duplication uintptr // IDXGIOutputDuplication
	staging     uintptr // ID3D11Texture2D, CPU-readable
	width       int
	height      int
	buf         []byte // readback buffer, reused across frames
	opened      bool
}

// NewDuplicator creates an unopened duplicator for the zero-based DXGI
// output index.
func NewDuplicator(outputIndex int, skipInit bool) *Duplicator {
	return &Duplicator{outputIndex: outputIndex, skipInit: skipInit}
}

// Open creates the D3D11 device, duplicates the output, and allocates
// the staging texture. Returns the output dimensions.
func (d *Duplicator) Open() (width, height int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := comutil.Init(d.skipInit); err != nil {
		return 0, 0, err
	}
	if err := d.open(); err != nil {
		d.releaseLocked()
		comutil.Uninit()
		return 0, 0, err
	}
	d.opened = true

	slog.Info("desktop duplication opened",
		"output", d.outputIndex, "width", d.width, "height", d.height)
	return d.width, d.height, nil
}

func (d *Duplicator) open() error {
	device, context, err := createDevice()
	if err != nil {
		return err
	}
	d.device = device
	d.context = context

	output, err := getOutput(device, d.outputIndex)
	if err != nil {
		return err
	}

	var output1 uintptr
	_, err = comutil.Call(output, comutil.VtblQueryInterface,
		uintptr(unsafe.Pointer(&iidIDXGIOutput1)),
		uintptr(unsafe.Pointer(&output1)))
	comutil.Release(output)
	if err != nil {
		return fmt.Errorf("QueryInterface IDXGIOutput1: %w", err)
	}
	defer comutil.Release(output1)

	if _, err := comutil.Call(output1, dxgiOutput1DuplicateOutput,
		device,
		uintptr(unsafe.Pointer(&d.duplication))); err != nil {
		return fmt.Errorf("IDXGIOutput1::DuplicateOutput: %w", err)
	}

	// Dimensions come from GetDesc, not from probing AcquireNextFrame:
	// acquisition can time out right after open when the desktop is idle.
	var duplDesc dxgiOutDuplDesc
	if _, err := comutil.Call(d.duplication, dxgiDuplGetDesc,
		uintptr(unsafe.Pointer(&duplDesc))); err != nil {
		return fmt.Errorf("IDXGIOutputDuplication::GetDesc: %w", err)
	}
	d.width = int(duplDesc.ModeDesc.Width)
	d.height = int(duplDesc.ModeDesc.Height)
	if d.width <= 0 || d.height <= 0 {
		return fmt.Errorf("invalid duplication dimensions: %dx%d", d.width, d.height)
	}

	stagingDesc := d3d11Texture2DDesc{
		Width:          uint32(d.width),
		Height:         uint32(d.height),
		MipLevels:      1,
		ArraySize:      1,
		Format:         dxgiFormatB8G8R8A8,
		SampleCount:    1,
		Usage:          d3d11UsageStaging,
		CPUAccessFlags: d3d11CPUAccessRead,
	}
	if _, err := comutil.Call(d.device, d3d11DeviceCreateTexture2D,
		uintptr(unsafe.Pointer(&stagingDesc)),
		0, // pInitialData
		uintptr(unsafe.Pointer(&d.staging))); err != nil {
		return fmt.Errorf("CreateTexture2D staging: %w", err)
	}
	return nil
}

// AcquireFrame waits up to timeout for the next desktop update, copies
// it through the staging texture, and returns the mapped pixels.
// Returns ErrTimeout when nothing changed within the timeout and
// ErrDeviceLost when the duplication stream is invalid.
func (d *Duplicator) AcquireFrame(timeout time.Duration) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.opened {
		return nil, ErrDeviceLost
	}

	var frameInfo dxgiOutDuplFrameInfo
	var resource uintptr
	hr, err := comutil.Call(d.duplication, dxgiDuplAcquireNextFrame,
		uintptr(timeout.Milliseconds()),
		uintptr(unsafe.Pointer(&frameInfo)),
		uintptr(unsafe.Pointer(&resource)))
	if err != nil {
		switch uint32(hr) {
		case dxgiErrWaitTimeout:
			return nil, ErrTimeout
		case dxgiErrAccessLost, dxgiErrInvalidCall, dxgiErrDeviceRemoved, dxgiErrDeviceReset:
			return nil, fmt.Errorf("%w: 0x%08X", ErrDeviceLost, uint32(hr))
		default:
			return nil, fmt.Errorf("AcquireNextFrame: %w", err)
		}
	}

	// An acquired frame with no accumulated updates carries no new
	// pixels. Treat it like a timeout so callers keep their pacing.
	if frameInfo.AccumulatedFrames == 0 {
		comutil.Release(resource)
		d.releaseFrame()
		return nil, ErrTimeout
	}

	var texture uintptr
	_, err = comutil.Call(resource, comutil.VtblQueryInterface,
		uintptr(unsafe.Pointer(&iidID3D11Texture2D)),
		uintptr(unsafe.Pointer(&texture)))
	comutil.Release(resource)
	if err != nil {
		d.releaseFrame()
		return nil, fmt.Errorf("QueryInterface ID3D11Texture2D: %w", err)
	}

	// CopyResource is void; failures surface on the following Map.
	comutil.Call(d.context, d3d11CtxCopyResource, d.staging, texture)
	comutil.Release(texture)

	var mapped d3d11MappedSubresource
	hr, err = comutil.Call(d.context, d3d11CtxMap,
		d.staging,
		0, // Subresource
		1, // D3D11_MAP_READ
		0, // Flags
		uintptr(unsafe.Pointer(&mapped)))
	if err != nil {
		d.releaseFrame()
		if uint32(hr) == dxgiErrDeviceRemoved || uint32(hr) == dxgiErrDeviceReset {
			return nil, fmt.Errorf("%w: 0x%08X", ErrDeviceLost, uint32(hr))
		}
		return nil, fmt.Errorf("Map staging texture: %w", err)
	}

	stride := int(mapped.RowPitch)
	need := stride * d.height
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	}
	d.buf = d.buf[:need]
	src := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData)), need)
	copy(d.buf, src)

	comutil.Call(d.context, d3d11CtxUnmap, d.staging, 0)
	d.releaseFrame()

	return &Frame{
		Pixels: d.buf,
		Width:  d.width,
		Height: d.height,
		Stride: stride,
	}, nil
}

func (d *Duplicator) releaseFrame() {
	if d.duplication != 0 {
		comutil.Call(d.duplication, dxgiDuplReleaseFrame)
	}
}

// Close releases every COM object. Safe to call repeatedly.
func (d *Duplicator) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.opened {
		return nil
	}
	d.releaseLocked()
	d.opened = false
	comutil.Uninit()
	return nil
}

func (d *Duplicator) releaseLocked() {
	if d.staging != 0 {
		comutil.Release(d.staging)
		d.staging = 0
	}
	if d.duplication != 0 {
		comutil.Release(d.duplication)
		d.duplication = 0
	}
	if d.context != 0 {
		comutil.Release(d.context)
		d.context = 0
	}
	if d.device != 0 {
		comutil.Release(d.device)
		d.device = 0
	}
	d.buf = nil
}
