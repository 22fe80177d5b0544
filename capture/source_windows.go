//go:build windows

package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/voibo/desktop-audio-capture/internal/dxgi"
	"github.com/voibo/desktop-audio-capture/internal/wasapi"
)

// wasapiSource adapts a WASAPI client to AudioDeviceSource.
type wasapiSource struct {
	client *wasapi.Client
	format DeviceFormat
}

func newPlatformAudioSource(cfg CaptureConfig) (AudioDeviceSource, error) {
	var kind wasapi.Kind
	switch cfg.DeviceID {
	case DeviceLoopback:
		kind = wasapi.Loopback
	case DeviceMicrophone:
		kind = wasapi.Microphone
	default:
		return nil, fmt.Errorf("%w: unknown audio device id %d", ErrTargetNotFound, cfg.DeviceID)
	}
	return &wasapiSource{client: wasapi.New(kind, cfg.SkipSystemInit)}, nil
}

func (s *wasapiSource) Start() (DeviceFormat, error) {
	f, err := s.client.Start()
	if err != nil {
		return DeviceFormat{}, fmt.Errorf("%w: %v", ErrDeviceInitFailed, err)
	}
	s.format = DeviceFormat{
		SampleRate:    f.SampleRate,
		Channels:      f.Channels,
		BitsPerSample: f.BitsPerSample,
		Float:         f.Float,
	}
	return s.format, nil
}

func (s *wasapiSource) Read() (*RawAudioChunk, error) {
	samples, frames, silent, err := s.client.Read()
	if err != nil {
		switch {
		case errors.Is(err, wasapi.ErrClosed):
			return nil, ErrSourceClosed
		case errors.Is(err, wasapi.ErrDeviceInvalidated):
			return nil, fmt.Errorf("%w: %v", ErrDeviceLost, err)
		default:
			return nil, err
		}
	}
	return &RawAudioChunk{
		Samples:    samples,
		Frames:     frames,
		Channels:   s.format.Channels,
		SampleRate: s.format.SampleRate,
		Silent:     silent,
	}, nil
}

func (s *wasapiSource) Stop() error {
	return s.client.Stop()
}

// dxgiSource adapts a desktop duplicator to ScreenSource.
type dxgiSource struct {
	dup *dxgi.Duplicator
}

func newPlatformScreenSource(cfg CaptureConfig) (ScreenSource, error) {
	// Display ids are 1-based; the DXGI output index is id-1. Window
	// targets (the entire-desktop pseudo window included) duplicate the
	// primary output.
	outputIndex := 0
	if cfg.DisplayID > 0 {
		outputIndex = int(cfg.DisplayID) - 1
	}
	return &dxgiSource{dup: dxgi.NewDuplicator(outputIndex, cfg.SkipSystemInit)}, nil
}

func (s *dxgiSource) Open() (ScreenInfo, error) {
	w, h, err := s.dup.Open()
	if err != nil {
		return ScreenInfo{}, fmt.Errorf("%w: %v", ErrDeviceInitFailed, err)
	}
	return ScreenInfo{Width: w, Height: h}, nil
}

func (s *dxgiSource) AcquireFrame(timeout time.Duration) (*CapturedFrame, error) {
	f, err := s.dup.AcquireFrame(timeout)
	if err != nil {
		switch {
		case errors.Is(err, dxgi.ErrTimeout):
			return nil, ErrAcquisitionTimeout
		case errors.Is(err, dxgi.ErrDeviceLost):
			return nil, fmt.Errorf("%w: %v", ErrDeviceLost, err)
		default:
			return nil, err
		}
	}
	return &CapturedFrame{
		Pixels:    f.Pixels,
		Width:     f.Width,
		Height:    f.Height,
		Stride:    f.Stride,
		Timestamp: time.Now(),
	}, nil
}

func (s *dxgiSource) Close() error {
	return s.dup.Close()
}
