// Package capture records desktop audio and video and delivers normalized
// frames over bounded channels. Audio is drained from a loopback or
// microphone endpoint, downmixed and resampled to the requested format;
// video is paced desktop-duplication snapshots compressed by a pluggable
// image encoder. A Session owns at most one audio and one video engine,
// each running on its own dedicated OS thread.
package capture

import (
	"time"
)

// DeviceFormat describes the native format negotiated with an audio endpoint.
type DeviceFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Float         bool
}

// AudioDeviceSource is an open system audio endpoint yielding raw
// interleaved float frames at the device's native format.
//
// Start opens the endpoint and negotiates its mix format. Read blocks on
// the device's readiness signal and drains one chunk; it returns
// ErrSourceClosed once Stop has been called. Stop wakes any blocked Read
// and releases the device. The returned chunk is only valid until the
// next Read call.
type AudioDeviceSource interface {
	Start() (DeviceFormat, error)
	Read() (*RawAudioChunk, error)
	Stop() error
}

// ScreenInfo describes an opened display duplication.
type ScreenInfo struct {
	Width  int
	Height int
}

// ScreenSource is an open duplication handle on a display. AcquireFrame
// blocks up to timeout for the next framebuffer snapshot and returns
// ErrAcquisitionTimeout when the display content has not changed. The
// returned frame's pixel buffer is only valid until the next AcquireFrame
// call; callers that need it longer must copy it out.
type ScreenSource interface {
	Open() (ScreenInfo, error)
	AcquireFrame(timeout time.Duration) (*CapturedFrame, error)
	Close() error
}
