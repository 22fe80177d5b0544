//go:build windows

// Package dxgi grabs desktop frames through the DXGI Desktop Duplication
// API on a D3D11 device, pure Go vtable calls throughout. A software
// (WARP) device is created when no hardware device is available, so
// duplication still works inside VMs and headless test rigs.
package dxgi

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"unsafe"

	"github.com/voibo/desktop-audio-capture/internal/comutil"
)

var (
	d3d11DLL              = syscall.NewLazyDLL("d3d11.dll")
	procD3D11CreateDevice = d3d11DLL.NewProc("D3D11CreateDevice")
)

const (
	d3dDriverTypeHardware = 1
	d3dDriverTypeWarp     = 5
	d3dFeatureLevel11_0   = 0xb000
	d3d11SDKVersion       = 7

	d3d11CreateDeviceBGRASupport = 0x20

	d3d11UsageStaging  = 3
	d3d11CPUAccessRead = 0x20000
	dxgiFormatB8G8R8A8 = 87

	dxgiErrNotFound      = 0x887A0002
	dxgiErrWaitTimeout   = 0x887A0027
	dxgiErrAccessLost    = 0x887A0026
	dxgiErrInvalidCall   = 0x887A0001
	dxgiErrDeviceRemoved = 0x887A0005
	dxgiErrDeviceReset   = 0x887A0007

	// COM vtable indices
	dxgiDeviceGetAdapter       = 7  // IDXGIDevice
	dxgiAdapterEnumOutputs     = 7  // IDXGIAdapter
	dxgiOutputGetDesc          = 7  // IDXGIOutput
	dxgiOutput1DuplicateOutput = 22 // IDXGIOutput1
	dxgiDuplGetDesc            = 7  // IDXGIOutputDuplication
	dxgiDuplAcquireNextFrame   = 8  // IDXGIOutputDuplication
	dxgiDuplReleaseFrame       = 14 // IDXGIOutputDuplication
	d3d11DeviceCreateTexture2D = 5  // ID3D11Device
	d3d11CtxMap                = 14 // ID3D11DeviceContext
	d3d11CtxUnmap              = 15 // ID3D11DeviceContext
	d3d11CtxCopyResource       = 47 // ID3D11DeviceContext
)

var (
	iidIDXGIDevice     = comutil.GUID{Data1: 0x54ec77fa, Data2: 0x1377, Data3: 0x44e6, Data4: [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}
	iidID3D11Texture2D = comutil.GUID{Data1: 0x6f15aaf2, Data2: 0xd208, Data3: 0x4e89, Data4: [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
	iidIDXGIOutput1    = comutil.GUID{Data1: 0x00cddea8, Data2: 0x939b, Data3: 0x4b83, Data4: [8]byte{0xa3, 0x40, 0xa6, 0x85, 0x22, 0x66, 0x66, 0xcc}}
)

// ErrTimeout reports that no new desktop frame arrived within the
// acquire timeout.
var ErrTimeout = errors.New("dxgi: acquire timed out")

// ErrDeviceLost reports that the duplication interface or the D3D device
// became invalid (mode change, access lost, adapter removed).
var ErrDeviceLost = errors.New("dxgi: device lost")

// d3d11Texture2DDesc matches D3D11_TEXTURE2D_DESC.
type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32
	SampleQuality  uint32
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

// d3d11MappedSubresource matches D3D11_MAPPED_SUBRESOURCE.
type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

type dxgiRational struct {
	Numerator   uint32
	Denominator uint32
}

// dxgiModeDesc matches DXGI_MODE_DESC.
type dxgiModeDesc struct {
	Width            uint32
	Height           uint32
	RefreshRate      dxgiRational
	Format           uint32
	ScanlineOrdering uint32
	Scaling          uint32
}

// dxgiOutDuplDesc matches DXGI_OUTDUPL_DESC.
type dxgiOutDuplDesc struct {
	ModeDesc                   dxgiModeDesc
	Rotation                   uint32
	DesktopImageInSystemMemory int32
}

// dxgiOutDuplFrameInfo matches DXGI_OUTDUPL_FRAME_INFO.
type dxgiOutDuplFrameInfo struct {
	LastPresentTime           int64
	LastMouseUpdateTime       int64
	AccumulatedFrames         uint32
	RectsCoalesced            int32
	ProtectedContentMaskedOut int32
	PointerPositionX          int32
	PointerPositionY          int32
	PointerVisible            int32
	TotalMetadataBufferSize   uint32
	PointerShapeBufferSize    uint32
}

// dxgiOutputDesc matches DXGI_OUTPUT_DESC.
type dxgiOutputDesc struct {
	DeviceName        [32]uint16
	Left              int32
	Top               int32
	Right             int32
	Bottom            int32
	AttachedToDesktop int32
	Rotation          uint32
	Monitor           uintptr
}

// createDevice creates a D3D11 device with BGRA support, preferring a
// hardware adapter and falling back to WARP when hardware creation
// fails.
func createDevice() (device, context uintptr, err error) {
	featureLevel := uint32(d3dFeatureLevel11_0)
	var actualLevel uint32

	create := func(driverType uintptr) uintptr {
		hr, _, _ := procD3D11CreateDevice.Call(
			0, // pAdapter (NULL = default)
			driverType,
			0, // Software
			uintptr(d3d11CreateDeviceBGRASupport),
			uintptr(unsafe.Pointer(&featureLevel)),
			1,
			uintptr(d3d11SDKVersion),
			uintptr(unsafe.Pointer(&device)),
			uintptr(unsafe.Pointer(&actualLevel)),
			uintptr(unsafe.Pointer(&context)),
		)
		return hr
	}

	hr := create(d3dDriverTypeHardware)
	if int32(hr) < 0 {
		slog.Warn("D3D11 hardware device unavailable, trying WARP",
			"hresult", fmt.Sprintf("0x%08X", uint32(hr)))
		hr = create(d3dDriverTypeWarp)
	}
	if int32(hr) < 0 {
		return 0, 0, fmt.Errorf("D3D11CreateDevice failed: 0x%08X", uint32(hr))
	}
	return device, context, nil
}

// getOutput walks device → IDXGIDevice → IDXGIAdapter → output at the
// given index. Caller releases the returned output.
func getOutput(device uintptr, outputIndex int) (uintptr, error) {
	var dxgiDevice uintptr
	if _, err := comutil.Call(device, comutil.VtblQueryInterface,
		uintptr(unsafe.Pointer(&iidIDXGIDevice)),
		uintptr(unsafe.Pointer(&dxgiDevice))); err != nil {
		return 0, fmt.Errorf("QueryInterface IDXGIDevice: %w", err)
	}
	defer comutil.Release(dxgiDevice)

	var adapter uintptr
	if _, err := comutil.Call(dxgiDevice, dxgiDeviceGetAdapter,
		uintptr(unsafe.Pointer(&adapter))); err != nil {
		return 0, fmt.Errorf("IDXGIDevice::GetAdapter: %w", err)
	}
	defer comutil.Release(adapter)

	var output uintptr
	if hr, err := comutil.Call(adapter, dxgiAdapterEnumOutputs,
		uintptr(outputIndex),
		uintptr(unsafe.Pointer(&output))); err != nil {
		if uint32(hr) == dxgiErrNotFound {
			return 0, fmt.Errorf("no display output at index %d", outputIndex)
		}
		return 0, fmt.Errorf("IDXGIAdapter::EnumOutputs: %w", err)
	}
	return output, nil
}
