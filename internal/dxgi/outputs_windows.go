//go:build windows

package dxgi

import (
	"fmt"
	"log/slog"
	"syscall"
	"unsafe"

	"github.com/voibo/desktop-audio-capture/internal/comutil"
)

// Output describes one display attached to the desktop.
type Output struct {
	Index   int // zero-based DXGI output index
	Name    string
	Width   int
	Height  int
	Primary bool
}

// ListOutputs enumerates attached displays on the default adapter using
// a throwaway D3D11 device.
func ListOutputs(skipInit bool) ([]Output, error) {
	if err := comutil.Init(skipInit); err != nil {
		return nil, err
	}
	defer comutil.Uninit()

	device, context, err := createDevice()
	if err != nil {
		return nil, err
	}
	defer comutil.Release(context)
	defer comutil.Release(device)

	var dxgiDevice uintptr
	if _, err := comutil.Call(device, comutil.VtblQueryInterface,
		uintptr(unsafe.Pointer(&iidIDXGIDevice)),
		uintptr(unsafe.Pointer(&dxgiDevice))); err != nil {
		return nil, fmt.Errorf("QueryInterface IDXGIDevice: %w", err)
	}
	defer comutil.Release(dxgiDevice)

	var adapter uintptr
	if _, err := comutil.Call(dxgiDevice, dxgiDeviceGetAdapter,
		uintptr(unsafe.Pointer(&adapter))); err != nil {
		return nil, fmt.Errorf("IDXGIDevice::GetAdapter: %w", err)
	}
	defer comutil.Release(adapter)

	var outputs []Output
	for i := 0; ; i++ {
		var output uintptr
		hr, err := comutil.Call(adapter, dxgiAdapterEnumOutputs,
			uintptr(i),
			uintptr(unsafe.Pointer(&output)))
		if err != nil {
			if uint32(hr) != dxgiErrNotFound {
				slog.Warn("DXGI EnumOutputs failed",
					"index", i, "hresult", fmt.Sprintf("0x%08X", uint32(hr)))
			}
			break
		}

		var desc dxgiOutputDesc
		_, err = comutil.Call(output, dxgiOutputGetDesc,
			uintptr(unsafe.Pointer(&desc)))
		comutil.Release(output)
		if err != nil {
			slog.Warn("DXGI GetDesc failed", "index", i, "error", err)
			continue
		}
		if desc.AttachedToDesktop == 0 {
			continue
		}

		outputs = append(outputs, Output{
			Index:   i,
			Name:    syscall.UTF16ToString(desc.DeviceName[:]),
			Width:   int(desc.Right - desc.Left),
			Height:  int(desc.Bottom - desc.Top),
			Primary: desc.Left == 0 && desc.Top == 0,
		})
	}

	if len(outputs) == 0 {
		return nil, fmt.Errorf("no displays found")
	}
	return outputs, nil
}
