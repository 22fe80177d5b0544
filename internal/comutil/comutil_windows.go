//go:build windows

// Package comutil provides the pure-Go COM vtable calling infrastructure
// shared by the WASAPI and DXGI backends, plus reference-counted
// process-wide COM initialization.
package comutil

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"
)

// GUID is a COM GUID (128-bit).
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

var (
	ole32DLL = syscall.NewLazyDLL("ole32.dll")

	procCoInitializeEx   = ole32DLL.NewProc("CoInitializeEx")
	procCoUninitialize   = ole32DLL.NewProc("CoUninitialize")
	procCoCreateInstance = ole32DLL.NewProc("CoCreateInstance")
	procCoTaskMemFree    = ole32DLL.NewProc("CoTaskMemFree")
)

const (
	clsctxAll = 0x1 | 0x2 | 0x4 | 0x10

	// VtblQueryInterface is the IUnknown::QueryInterface vtable slot.
	VtblQueryInterface = 0
)

// Call invokes a COM vtable method at the given index.
// obj is a pointer to a COM interface (pointer to pointer to vtable).
func Call(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	allArgs := make([]uintptr, 0, 1+len(args))
	allArgs = append(allArgs, obj)
	allArgs = append(allArgs, args...)
	ret, _, _ := syscall.SyscallN(VtblFn(obj, vtableIdx), allArgs...)
	if int32(ret) < 0 {
		return ret, fmt.Errorf("COM vtable[%d] HRESULT 0x%08X", vtableIdx, uint32(ret))
	}
	return ret, nil
}

// VtblFn resolves a COM vtable function pointer by index.
func VtblFn(obj uintptr, idx int) uintptr {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// Release calls IUnknown::Release (vtable index 2).
func Release(obj uintptr) {
	if obj != 0 {
		syscall.SyscallN(VtblFn(obj, 2), obj)
	}
}

// CreateInstance creates a COM object via CoCreateInstance with
// CLSCTX_ALL.
func CreateInstance(clsid, iid *GUID, out *uintptr) error {
	hr, _, _ := procCoCreateInstance.Call(
		uintptr(unsafe.Pointer(clsid)),
		0, // pUnkOuter
		uintptr(clsctxAll),
		uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(out)),
	)
	if int32(hr) < 0 {
		return fmt.Errorf("CoCreateInstance failed: 0x%08X", uint32(hr))
	}
	return nil
}

// TaskMemFree frees COM task memory (CoTaskMemFree).
func TaskMemFree(p uintptr) {
	if p != 0 {
		procCoTaskMemFree.Call(p)
	}
}

// Process-wide COM initialization, reference counted so nested engine
// start/stop pairs neither double-initialize nor prematurely tear down.
// When the host process has already initialized COM it passes skip=true
// and the refcount is tracked without touching the subsystem.
var (
	comMu   sync.Mutex
	comRefs int
	comOwns bool
)

// Init acquires one reference on process-wide COM (multithreaded
// apartment). S_FALSE from CoInitializeEx counts as success.
func Init(skip bool) error {
	comMu.Lock()
	defer comMu.Unlock()

	if comRefs == 0 && !skip {
		hr, _, _ := procCoInitializeEx.Call(0, 0) // COINIT_MULTITHREADED
		if int32(hr) < 0 {
			return fmt.Errorf("CoInitializeEx failed: 0x%08X", uint32(hr))
		}
		comOwns = true
	}
	comRefs++
	return nil
}

// Uninit drops one reference, tearing COM down when the last engine
// releases it and this package performed the initialization.
func Uninit() {
	comMu.Lock()
	defer comMu.Unlock()

	if comRefs == 0 {
		return
	}
	comRefs--
	if comRefs == 0 && comOwns {
		procCoUninitialize.Call()
		comOwns = false
	}
}
