package capture

import (
	"fmt"
	"time"
)

// ImageFormat selects the video output encoding.
type ImageFormat int

const (
	// FormatJPEG compresses each frame with the configured quality.
	FormatJPEG ImageFormat = iota
	// FormatRaw delivers the BGRA pixel buffer unencoded.
	FormatRaw
)

func (f ImageFormat) String() string {
	if f == FormatRaw {
		return "raw"
	}
	return "jpeg"
}

// QualityTier is the coarse image quality setting. An explicit
// CaptureConfig.QualityValue takes precedence over the tier mapping.
type QualityTier int

const (
	QualityHigh   QualityTier = 0 // ~95
	QualityMedium QualityTier = 1 // ~85
	QualityLow    QualityTier = 2 // ~75
)

const (
	defaultFrameRate = 30.0
	maxJPEGQuality   = 100

	minAcquireTimeout = 100 * time.Millisecond
	maxAcquireTimeout = 500 * time.Millisecond
)

// CaptureConfig describes one capture request. It is consumed by
// Session.Start and never mutated afterwards.
//
// Target selection priority: DeviceID > WindowID > DisplayID. At least one
// selector must be non-zero. Display ids are 1-based (DXGI output index
// + 1); DeviceID uses the well-known audio device ids (DeviceLoopback,
// DeviceMicrophone).
type CaptureConfig struct {
	DisplayID uint32
	WindowID  uint32
	DeviceID  uint32

	// Audio output format. Channels must be 1 or 2, SampleRate > 0.
	SampleRate int
	Channels   int

	// FrameRate ≤ 0 defaults to 30.
	FrameRate float64

	// Quality is the tier used when QualityValue is zero. QualityValue
	// (1-100), when set, overrides the tier mapping.
	Quality      QualityTier
	QualityValue int

	Format ImageFormat

	// SkipSystemInit tells the engines that the host process has already
	// performed process-wide platform initialization (COM subsystem).
	SkipSystemInit bool
}

// Validate checks caller input. It must pass before any platform
// resource is opened.
func (c CaptureConfig) Validate() error {
	if c.DisplayID == 0 && c.WindowID == 0 && c.DeviceID == 0 {
		return fmt.Errorf("%w: no capture target selected", ErrInvalidConfig)
	}
	if c.Channels != 0 && c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("%w: unsupported value %d for channels, only 1-2 supported", ErrInvalidConfig, c.Channels)
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("%w: invalid sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.QualityValue < 0 || c.QualityValue > maxJPEGQuality {
		return fmt.Errorf("%w: quality value %d outside 0-100", ErrInvalidConfig, c.QualityValue)
	}
	return nil
}

// validateAudio applies the stricter audio-engine preconditions.
func (c CaptureConfig) validateAudio() error {
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("%w: unsupported value %d for audio channels, only 1-2 supported", ErrInvalidConfig, c.Channels)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	return nil
}

// effectiveFrameRate returns the configured frame rate with the default
// applied.
func (c CaptureConfig) effectiveFrameRate() float64 {
	if c.FrameRate <= 0 {
		return defaultFrameRate
	}
	return c.FrameRate
}

// frameInterval is the pacing interval between video frames.
func (c CaptureConfig) frameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.effectiveFrameRate())
}

// acquireTimeout bounds the duplication wait, scaled inversely with the
// frame rate and clamped to [100ms, 500ms].
func (c CaptureConfig) acquireTimeout() time.Duration {
	t := time.Duration(1000.0/c.effectiveFrameRate()) * time.Millisecond
	if t < minAcquireTimeout {
		return minAcquireTimeout
	}
	if t > maxAcquireTimeout {
		return maxAcquireTimeout
	}
	return t
}

// encoderQuality resolves the numeric encoder quality. An explicit
// QualityValue wins over the tier; the tier constants 95/85/75 mirror the
// platform encoder presets.
func (c CaptureConfig) encoderQuality() int {
	if c.QualityValue > 0 {
		if c.QualityValue > maxJPEGQuality {
			return maxJPEGQuality
		}
		return c.QualityValue
	}
	switch c.Quality {
	case QualityMedium:
		return 85
	case QualityLow:
		return 75
	default:
		return 95
	}
}

// hasVideoTarget reports whether the config selects a display or window.
func (c CaptureConfig) hasVideoTarget() bool {
	return c.DisplayID > 0 || c.WindowID > 0
}
