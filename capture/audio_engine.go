package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// AudioEngine drains one AudioDeviceSource on a dedicated OS thread,
// converts each chunk to the requested channel count and sample rate, and
// delivers NormalizedAudioFrames to its output channel. One frame per
// drain cycle.
type AudioEngine struct {
	cfg CaptureConfig
	src AudioDeviceSource
	out chan<- *NormalizedAudioFrame

	// onFatal surfaces an unrecoverable device error to the session. It
	// is invoked at most once, from the capture thread.
	onFatal func(error)

	state    stateVar
	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	native DeviceFormat
	rs     *Resampler
}

func newAudioEngine(cfg CaptureConfig, src AudioDeviceSource, out chan<- *NormalizedAudioFrame, onFatal func(error)) *AudioEngine {
	return &AudioEngine{
		cfg:     cfg,
		src:     src,
		out:     out,
		onFatal: onFatal,
		done:    make(chan struct{}),
	}
}

// Start validates the config, opens the device, verifies its native
// format, and launches the capture thread. A failed start leaves no
// device handle open.
func (e *AudioEngine) Start() error {
	if err := e.cfg.validateAudio(); err != nil {
		return err
	}

	e.state.Store(StateStarting)
	format, err := e.src.Start()
	if err != nil {
		e.state.Store(StateIdle)
		return fmt.Errorf("%w: %v", ErrDeviceInitFailed, err)
	}

	// Only 32-bit float native frames are supported. Unwind the
	// partially-opened device before reporting.
	if !format.Float || format.BitsPerSample != 32 {
		_ = e.src.Stop()
		e.state.Store(StateIdle)
		return fmt.Errorf("%w: float=%v bitsPerSample=%d",
			ErrUnsupportedFormat, format.Float, format.BitsPerSample)
	}
	e.native = format

	// One persistent resampler per engine so filter state carries across
	// chunks. Skipped entirely when rates already match.
	if format.SampleRate != e.cfg.SampleRate {
		rs, err := NewResampler(format.SampleRate, e.cfg.SampleRate, e.cfg.Channels)
		if err != nil {
			_ = e.src.Stop()
			e.state.Store(StateIdle)
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		e.rs = rs
	}

	slog.Info("audio engine started",
		"nativeRate", format.SampleRate,
		"nativeChannels", format.Channels,
		"targetRate", e.cfg.SampleRate,
		"targetChannels", e.cfg.Channels,
	)

	e.running.Store(true)
	e.state.Store(StateRunning)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		// The device handle and resampler state are owned by this thread
		// for the rest of the session.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		e.captureLoop()
	}()
	return nil
}

func (e *AudioEngine) captureLoop() {
	for e.running.Load() {
		chunk, err := e.src.Read()
		if err != nil {
			if errors.Is(err, ErrSourceClosed) || !e.running.Load() {
				return
			}
			e.fatal(fmt.Errorf("%w: %v", ErrDeviceLost, err))
			return
		}
		if chunk == nil || chunk.Frames == 0 || chunk.Silent {
			continue
		}

		frame := e.convert(chunk)
		if frame == nil {
			continue
		}
		if !e.running.Load() {
			return
		}
		select {
		case e.out <- frame:
		case <-e.done:
			return
		}
	}
}

// convert downmixes and resamples one native chunk into an owned frame.
func (e *AudioEngine) convert(chunk *RawAudioChunk) *NormalizedAudioFrame {
	samples := convertChannels(chunk.Samples, chunk.Frames, chunk.Channels, e.cfg.Channels)

	if e.rs == nil {
		return &NormalizedAudioFrame{
			Samples:    samples,
			Frames:     chunk.Frames,
			Channels:   e.cfg.Channels,
			SampleRate: chunk.SampleRate,
		}
	}

	// The resampler's reported output count is authoritative; it may be
	// below ceil(frames * ratio) for any given chunk.
	resampled := e.rs.Process(samples)
	frames := len(resampled) / e.cfg.Channels
	if frames == 0 {
		return nil
	}
	return &NormalizedAudioFrame{
		Samples:    resampled,
		Frames:     frames,
		Channels:   e.cfg.Channels,
		SampleRate: e.cfg.SampleRate,
	}
}

func (e *AudioEngine) fatal(err error) {
	slog.Error("audio capture failed", "error", err)
	e.running.Store(false)
	if e.onFatal != nil {
		e.onFatal(err)
	}
}

// Stop signals the capture thread, wakes any blocked device read, joins
// the thread, and releases the device. Blocking; safe to call twice.
func (e *AudioEngine) Stop() {
	e.stopOnce.Do(func() {
		e.state.Store(StateStopping)
		e.running.Store(false)
		close(e.done)
		_ = e.src.Stop() // wakes a blocked Read
		e.wg.Wait()
		e.state.Store(StateIdle)
	})
}

// State reports the engine lifecycle state.
func (e *AudioEngine) State() EngineState { return e.state.Load() }
