//go:build !windows

package capture

func listPlatformDisplays() ([]DisplayTarget, error) {
	return nil, ErrNotSupported
}

func listPlatformWindows() ([]WindowTarget, error) {
	return nil, ErrNotSupported
}
