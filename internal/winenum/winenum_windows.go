//go:build windows

// Package winenum enumerates top-level windows for target listing.
package winenum

import (
	"syscall"
	"unsafe"

	"github.com/shirou/gopsutil/v3/process"
)

var (
	user32 = syscall.NewLazyDLL("user32.dll")

	procEnumWindows              = user32.NewProc("EnumWindows")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procIsWindowEnabled          = user32.NewProc("IsWindowEnabled")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowRect            = user32.NewProc("GetWindowRect")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
)

type rect struct {
	Left, Top, Right, Bottom int32
}

// Window is one top-level window candidate. Handle is the raw HWND;
// AppName is the owning process executable name, empty when the process
// could not be queried.
type Window struct {
	Handle  uintptr
	Title   string
	AppName string
	Width   int
	Height  int
	Visible bool
	Enabled bool
}

// List enumerates every top-level window with its title, geometry, and
// owning process name. No filtering is applied here; callers decide
// which windows are worth listing.
func List() ([]Window, error) {
	var windows []Window

	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		w := Window{Handle: hwnd}

		vis, _, _ := procIsWindowVisible.Call(hwnd)
		w.Visible = vis != 0
		en, _, _ := procIsWindowEnabled.Call(hwnd)
		w.Enabled = en != 0

		var title [256]uint16
		n, _, _ := procGetWindowTextW.Call(hwnd,
			uintptr(unsafe.Pointer(&title[0])), uintptr(len(title)))
		if n > 0 {
			w.Title = syscall.UTF16ToString(title[:n])
		}

		var r rect
		if ok, _, _ := procGetWindowRect.Call(hwnd,
			uintptr(unsafe.Pointer(&r))); ok != 0 {
			w.Width = int(r.Right - r.Left)
			w.Height = int(r.Bottom - r.Top)
		}

		var pid uint32
		procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
		if pid != 0 {
			if p, err := process.NewProcess(int32(pid)); err == nil {
				if name, err := p.Name(); err == nil {
					w.AppName = name
				}
			}
		}

		windows = append(windows, w)
		return 1 // continue enumeration
	})

	ret, _, err := procEnumWindows.Call(cb, 0)
	if ret == 0 {
		return nil, err
	}
	return windows, nil
}
