package capture

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAudioSource feeds scripted chunks through the AudioDeviceSource
// contract.
type fakeAudioSource struct {
	format   DeviceFormat
	startErr error
	readErr  error

	chunks    chan *RawAudioChunk
	closeOnce sync.Once

	startCalls atomic.Int32
	stopCalls  atomic.Int32
}

func newFakeAudioSource(format DeviceFormat) *fakeAudioSource {
	return &fakeAudioSource{
		format: format,
		chunks: make(chan *RawAudioChunk, 16),
	}
}

func (s *fakeAudioSource) Start() (DeviceFormat, error) {
	s.startCalls.Add(1)
	if s.startErr != nil {
		return DeviceFormat{}, s.startErr
	}
	return s.format, nil
}

func (s *fakeAudioSource) Read() (*RawAudioChunk, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	chunk, ok := <-s.chunks
	if !ok {
		return nil, ErrSourceClosed
	}
	return chunk, nil
}

func (s *fakeAudioSource) Stop() error {
	s.stopCalls.Add(1)
	s.closeOnce.Do(func() { close(s.chunks) })
	return nil
}

func floatFormat(rate, channels int) DeviceFormat {
	return DeviceFormat{SampleRate: rate, Channels: channels, BitsPerSample: 32, Float: true}
}

func TestAudioEngineDeliversDownmixedFrames(t *testing.T) {
	src := newFakeAudioSource(floatFormat(48000, 4))
	out := make(chan *NormalizedAudioFrame, 4)
	cfg := CaptureConfig{DeviceID: DeviceLoopback, SampleRate: 48000, Channels: 1}

	eng := newAudioEngine(cfg, src, out, nil)
	if err := eng.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer eng.Stop()

	// Two 4-channel frames: [1,1,0,0] → 0.5 and [1,-1,1,-1] → 0.
	src.chunks <- &RawAudioChunk{
		Samples:    []float32{1, 1, 0, 0, 1, -1, 1, -1},
		Frames:     2,
		Channels:   4,
		SampleRate: 48000,
	}

	select {
	case frame := <-out:
		if frame.Frames != 2 || frame.Channels != 1 {
			t.Fatalf("got %d frames × %d channels, want 2 × 1", frame.Frames, frame.Channels)
		}
		if frame.SampleRate != 48000 {
			t.Fatalf("sample rate = %d, want 48000", frame.SampleRate)
		}
		if frame.Samples[0] != 0.5 || frame.Samples[1] != 0 {
			t.Fatalf("downmixed samples = %v, want [0.5, 0]", frame.Samples)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestAudioEngineResamplesDelivery(t *testing.T) {
	src := newFakeAudioSource(floatFormat(48000, 2))
	out := make(chan *NormalizedAudioFrame, 4)
	cfg := CaptureConfig{DeviceID: DeviceLoopback, SampleRate: 24000, Channels: 2}

	eng := newAudioEngine(cfg, src, out, nil)
	if err := eng.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer eng.Stop()

	samples := make([]float32, 200) // 100 stereo frames
	src.chunks <- &RawAudioChunk{Samples: samples, Frames: 100, Channels: 2, SampleRate: 48000}

	select {
	case frame := <-out:
		if frame.Frames != 50 {
			t.Fatalf("48k→24k of 100 frames delivered %d, want 50", frame.Frames)
		}
		if frame.SampleRate != 24000 {
			t.Fatalf("sample rate = %d, want 24000", frame.SampleRate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestAudioEngineSkipsSilentChunks(t *testing.T) {
	src := newFakeAudioSource(floatFormat(48000, 1))
	out := make(chan *NormalizedAudioFrame, 4)
	cfg := CaptureConfig{DeviceID: DeviceLoopback, SampleRate: 48000, Channels: 1}

	eng := newAudioEngine(cfg, src, out, nil)
	if err := eng.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer eng.Stop()

	src.chunks <- &RawAudioChunk{Silent: true, Frames: 0, Channels: 1, SampleRate: 48000}
	src.chunks <- &RawAudioChunk{
		Samples: []float32{0.25}, Frames: 1, Channels: 1, SampleRate: 48000,
	}

	select {
	case frame := <-out:
		if frame.Samples[0] != 0.25 {
			t.Fatalf("first delivered frame came from the silent chunk: %v", frame.Samples)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestAudioEngineRejectsNonFloatFormat(t *testing.T) {
	src := newFakeAudioSource(DeviceFormat{SampleRate: 48000, Channels: 2, BitsPerSample: 16, Float: false})
	out := make(chan *NormalizedAudioFrame, 1)
	cfg := CaptureConfig{DeviceID: DeviceLoopback, SampleRate: 48000, Channels: 2}

	eng := newAudioEngine(cfg, src, out, nil)
	err := eng.Start()
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if src.stopCalls.Load() != 1 {
		t.Fatalf("device not unwound after format rejection: %d stop calls", src.stopCalls.Load())
	}
	if eng.State() != StateIdle {
		t.Fatalf("engine state = %v, want idle", eng.State())
	}
}

func TestAudioEngineInvalidConfigTouchesNoDevice(t *testing.T) {
	src := newFakeAudioSource(floatFormat(48000, 2))
	out := make(chan *NormalizedAudioFrame, 1)
	cfg := CaptureConfig{DeviceID: DeviceLoopback} // no sample rate or channels

	eng := newAudioEngine(cfg, src, out, nil)
	if err := eng.Start(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if src.startCalls.Load() != 0 {
		t.Fatalf("device opened despite invalid config: %d start calls", src.startCalls.Load())
	}
}

func TestAudioEngineStopJoinsAndGoesIdle(t *testing.T) {
	src := newFakeAudioSource(floatFormat(48000, 2))
	out := make(chan *NormalizedAudioFrame, 4)
	cfg := CaptureConfig{DeviceID: DeviceLoopback, SampleRate: 48000, Channels: 2}

	eng := newAudioEngine(cfg, src, out, nil)
	if err := eng.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if eng.State() != StateRunning {
		t.Fatalf("state after start = %v, want running", eng.State())
	}

	eng.Stop()
	eng.Stop() // idempotent

	if eng.State() != StateIdle {
		t.Fatalf("state after stop = %v, want idle", eng.State())
	}
	if src.stopCalls.Load() == 0 {
		t.Fatal("source never stopped")
	}
	// The capture thread has been joined; nothing may arrive anymore.
	select {
	case frame := <-out:
		if frame != nil {
			t.Fatalf("frame delivered after stop: %+v", frame)
		}
	default:
	}
}

func TestAudioEngineFatalOnDeviceLoss(t *testing.T) {
	src := newFakeAudioSource(floatFormat(48000, 2))
	src.readErr = errors.New("endpoint yanked")
	out := make(chan *NormalizedAudioFrame, 1)
	cfg := CaptureConfig{DeviceID: DeviceLoopback, SampleRate: 48000, Channels: 2}

	fatal := make(chan error, 1)
	eng := newAudioEngine(cfg, src, out, func(err error) { fatal <- err })
	if err := eng.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer eng.Stop()

	select {
	case err := <-fatal:
		if !errors.Is(err, ErrDeviceLost) {
			t.Fatalf("fatal error = %v, want ErrDeviceLost", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("device loss never surfaced")
	}
}
