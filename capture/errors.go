package capture

import "errors"

var (
	// ErrInvalidConfig is returned for bad caller input, before any
	// platform resource is opened.
	ErrInvalidConfig = errors.New("invalid capture configuration")

	// ErrTargetNotFound is returned when a selector does not resolve to a
	// live display, window, or audio device.
	ErrTargetNotFound = errors.New("capture target not found")

	// ErrUnsupportedFormat is returned when the device's native format is
	// outside the supported set (non-float or unknown bit depth).
	ErrUnsupportedFormat = errors.New("unsupported native audio format")

	// ErrDeviceInitFailed is returned when platform resource acquisition
	// failed, including after the software device fallback.
	ErrDeviceInitFailed = errors.New("device initialization failed")

	// ErrAcquisitionTimeout indicates no new frame was ready within the
	// bounded wait. Transient; absorbed by the video loop.
	ErrAcquisitionTimeout = errors.New("frame acquisition timed out")

	// ErrEncodingFailed indicates a single frame failed to encode.
	// Per-frame and non-fatal to the engine.
	ErrEncodingFailed = errors.New("frame encoding failed")

	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("capture already in progress")

	// ErrDeviceLost indicates the underlying device or duplication context
	// was invalidated (display mode change, device disconnect). Fatal to
	// the engine that observes it.
	ErrDeviceLost = errors.New("capture device lost")

	// ErrSourceClosed is returned by source reads after Stop/Close.
	ErrSourceClosed = errors.New("capture source closed")

	// ErrNotSupported is returned on platforms without a capture backend.
	ErrNotSupported = errors.New("capture not supported on this platform")
)
