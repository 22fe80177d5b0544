//go:build !windows

package capture

func newPlatformAudioSource(cfg CaptureConfig) (AudioDeviceSource, error) {
	return nil, ErrNotSupported
}

func newPlatformScreenSource(cfg CaptureConfig) (ScreenSource, error) {
	return nil, ErrNotSupported
}
