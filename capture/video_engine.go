package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// VideoEngine snapshots one ScreenSource on a dedicated OS thread, paced
// to the configured frame rate, and delivers encoded frames to its output
// channel. Acquisition timeouts and per-frame encode failures are
// absorbed; a lost device context is fatal and surfaces once through
// onFatal.
type VideoEngine struct {
	cfg     CaptureConfig
	src     ScreenSource
	enc     Encoder
	out     chan<- *EncodedFrame
	onFatal func(error)

	state    stateVar
	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	width  int
	height int

	// staging is the CPU-visible copy of the most recent frame, sized to
	// the display at start. Forced liveness frames re-encode it when the
	// source keeps reporting "no new frame".
	staging       []byte
	stagingStride int
}

func newVideoEngine(cfg CaptureConfig, src ScreenSource, out chan<- *EncodedFrame, onFatal func(error)) *VideoEngine {
	return &VideoEngine{
		cfg:     cfg,
		src:     src,
		enc:     newEncoder(cfg.Format),
		out:     out,
		onFatal: onFatal,
		done:    make(chan struct{}),
	}
}

// Start opens the duplication source, allocates the staging buffer, and
// launches the paced capture thread.
func (e *VideoEngine) Start() error {
	e.state.Store(StateStarting)
	info, err := e.src.Open()
	if err != nil {
		e.state.Store(StateIdle)
		if errors.Is(err, ErrTargetNotFound) || errors.Is(err, ErrNotSupported) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDeviceInitFailed, err)
	}
	if info.Width <= 0 || info.Height <= 0 {
		_ = e.src.Close()
		e.state.Store(StateIdle)
		return fmt.Errorf("%w: invalid display dimensions %dx%d", ErrDeviceInitFailed, info.Width, info.Height)
	}

	e.width = info.Width
	e.height = info.Height
	e.stagingStride = info.Width * 4
	e.staging = make([]byte, e.stagingStride*info.Height)

	slog.Info("video engine started",
		"width", info.Width, "height", info.Height,
		"frameRate", e.cfg.effectiveFrameRate(),
		"format", e.enc.Format(),
		"quality", e.cfg.encoderQuality(),
	)

	e.running.Store(true)
	e.state.Store(StateRunning)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		e.captureLoop()
	}()
	return nil
}

func (e *VideoEngine) captureLoop() {
	interval := e.cfg.frameInterval()
	timeout := e.cfg.acquireTimeout()
	quality := e.cfg.encoderQuality()

	lastProcessed := time.Now()
	lastAcquired := time.Now()

	for e.running.Load() {
		// Pace to the target interval, waking early on stop.
		if wait := interval - time.Since(lastProcessed); wait > 0 {
			select {
			case <-e.done:
				return
			case <-time.After(wait):
			}
		}
		lastProcessed = time.Now()

		frame, err := e.src.AcquireFrame(timeout)
		switch {
		case err == nil:
			e.copyToStaging(frame)
			lastAcquired = time.Now()
		case errors.Is(err, ErrAcquisitionTimeout):
			// Static screen content: once the source has been quiet for
			// twice the interval, re-encode the staging copy on every
			// paced tick so consumers still observe liveness. Only a real
			// frame resets the staleness clock.
			if time.Since(lastAcquired) < 2*interval {
				continue
			}
		case errors.Is(err, ErrDeviceLost), errors.Is(err, ErrSourceClosed):
			if !e.running.Load() {
				return
			}
			e.fatal(err)
			return
		default:
			slog.Warn("frame acquisition failed", "error", err)
			continue
		}

		data, err := e.enc.Encode(e.staging, e.width, e.height, e.stagingStride, quality)
		if err != nil {
			slog.Warn("frame encoding failed", "error", err)
			continue
		}
		if !e.running.Load() {
			return
		}
		select {
		case e.out <- &EncodedFrame{
			Data:        data,
			Width:       e.width,
			Height:      e.height,
			Stride:      e.stagingStride,
			TimestampMs: time.Now().UnixMilli(),
			Format:      e.enc.Format(),
		}:
		case <-e.done:
			return
		}
	}
}

// copyToStaging copies a source frame into the engine-owned staging
// buffer row by row, honoring the source stride.
func (e *VideoEngine) copyToStaging(frame *CapturedFrame) {
	rows := frame.Height
	if rows > e.height {
		rows = e.height
	}
	rowBytes := frame.Width * 4
	if rowBytes > e.stagingStride {
		rowBytes = e.stagingStride
	}
	for y := 0; y < rows; y++ {
		copy(e.staging[y*e.stagingStride:y*e.stagingStride+rowBytes],
			frame.Pixels[y*frame.Stride:y*frame.Stride+rowBytes])
	}
}

func (e *VideoEngine) fatal(err error) {
	slog.Error("video capture failed", "error", err)
	e.running.Store(false)
	if e.onFatal != nil {
		e.onFatal(err)
	}
}

// Stop signals the capture thread, joins it, and releases the
// duplication handle and staging buffer. Blocking; safe to call twice.
func (e *VideoEngine) Stop() {
	e.stopOnce.Do(func() {
		e.state.Store(StateStopping)
		e.running.Store(false)
		close(e.done)
		e.wg.Wait()
		_ = e.src.Close()
		e.staging = nil
		e.state.Store(StateIdle)
	})
}

// State reports the engine lifecycle state.
func (e *VideoEngine) State() EngineState { return e.state.Load() }
