package capture

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// testSession builds a session with scripted source constructors.
func testSession(audio func(CaptureConfig) (AudioDeviceSource, error),
	video func(CaptureConfig) (ScreenSource, error)) *Session {
	s := NewSession()
	if audio != nil {
		s.newAudioSource = audio
	}
	if video != nil {
		s.newScreenSource = video
	}
	return s
}

func workingAudioConstructor(counter *atomic.Int32) func(CaptureConfig) (AudioDeviceSource, error) {
	return func(CaptureConfig) (AudioDeviceSource, error) {
		if counter != nil {
			counter.Add(1)
		}
		return newFakeAudioSource(floatFormat(48000, 2)), nil
	}
}

func workingVideoConstructor(counter *atomic.Int32) func(CaptureConfig) (ScreenSource, error) {
	return func(CaptureConfig) (ScreenSource, error) {
		if counter != nil {
			counter.Add(1)
		}
		return freshFrameSource(4, 4), nil
	}
}

func fullConfig() CaptureConfig {
	return CaptureConfig{
		DisplayID:  1,
		DeviceID:   DeviceLoopback,
		SampleRate: 48000,
		Channels:   2,
		FrameRate:  30,
		Format:     FormatRaw,
	}
}

func TestSessionStartRequiresOutput(t *testing.T) {
	s := testSession(workingAudioConstructor(nil), workingVideoConstructor(nil))
	_, err := s.Start(fullConfig(), StreamOptions{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig with no outputs requested, got %v", err)
	}
}

func TestSessionInvalidConfigTouchesNoPlatformResource(t *testing.T) {
	var opened atomic.Int32
	s := testSession(workingAudioConstructor(&opened), workingVideoConstructor(&opened))

	_, err := s.Start(CaptureConfig{}, StreamOptions{Video: true, Audio: true})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for empty selectors, got %v", err)
	}
	if opened.Load() != 0 {
		t.Fatalf("platform sources constructed despite invalid config: %d", opened.Load())
	}
}

func TestSessionRejectsConcurrentStart(t *testing.T) {
	s := testSession(workingAudioConstructor(nil), workingVideoConstructor(nil))

	stream, err := s.Start(fullConfig(), StreamOptions{Video: true, Audio: true})
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	defer s.Stop()

	if _, err := s.Start(fullConfig(), StreamOptions{Audio: true}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start = %v, want ErrAlreadyRunning", err)
	}
	_ = stream
}

func TestSessionSucceedsWhenOneEngineStarts(t *testing.T) {
	audioErr := errors.New("endpoint busy")
	s := testSession(
		func(CaptureConfig) (AudioDeviceSource, error) { return nil, audioErr },
		workingVideoConstructor(nil),
	)

	stream, err := s.Start(fullConfig(), StreamOptions{Video: true, Audio: true})
	if err != nil {
		t.Fatalf("start should succeed with one working engine, got %v", err)
	}
	defer s.Stop()

	select {
	case frame := <-stream.Video():
		if frame == nil {
			t.Fatal("video channel closed prematurely")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("surviving video engine delivered nothing")
	}
}

func TestSessionBothEnginesFailReturnsLastError(t *testing.T) {
	audioErr := errors.New("audio down")
	videoErr := errors.New("video down")
	s := testSession(
		func(CaptureConfig) (AudioDeviceSource, error) { return nil, audioErr },
		func(CaptureConfig) (ScreenSource, error) { return nil, videoErr },
	)

	_, err := s.Start(fullConfig(), StreamOptions{Video: true, Audio: true})
	if err == nil {
		t.Fatal("start should fail when every engine fails")
	}
	// Video is constructed after audio; its error is the last one.
	if !errors.Is(err, videoErr) {
		t.Fatalf("error = %v, want the last engine's error %v", err, videoErr)
	}
	if s.State() != StateIdle {
		t.Fatalf("state after failed start = %v, want idle", s.State())
	}
}

func TestSessionAudioOnlyWithoutVideoTarget(t *testing.T) {
	var videoOpened atomic.Int32
	s := testSession(workingAudioConstructor(nil), workingVideoConstructor(&videoOpened))

	cfg := fullConfig()
	cfg.DisplayID = 0 // no video target; video requested but skipped
	stream, err := s.Start(cfg, StreamOptions{Video: true, Audio: true})
	if err != nil {
		t.Fatalf("audio-only start failed: %v", err)
	}
	defer s.Stop()

	if videoOpened.Load() != 0 {
		t.Fatal("video source constructed without a video target")
	}
	_ = stream
}

func TestSessionStopClosesAllChannels(t *testing.T) {
	s := testSession(workingAudioConstructor(nil), workingVideoConstructor(nil))
	stream, err := s.Start(fullConfig(), StreamOptions{Video: true, Audio: true})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	s.Stop()
	s.Stop() // second stop is a no-op

	for open := true; open; {
		_, open = <-stream.Video()
	}
	for open := true; open; {
		_, open = <-stream.Audio()
	}
	if err, open := <-stream.Exit(); open && err != nil {
		t.Fatalf("clean stop delivered an exit error: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("state after stop = %v, want idle", s.State())
	}
}

func TestSessionRestartAfterStop(t *testing.T) {
	s := testSession(workingAudioConstructor(nil), workingVideoConstructor(nil))

	if _, err := s.Start(fullConfig(), StreamOptions{Audio: true}); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	s.Stop()

	if _, err := s.Start(fullConfig(), StreamOptions{Audio: true}); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	s.Stop()
}

func TestSessionFatalErrorExitsOnceAndSelfStops(t *testing.T) {
	readErr := errors.New("device gone")
	s := testSession(
		func(CaptureConfig) (AudioDeviceSource, error) {
			src := newFakeAudioSource(floatFormat(48000, 2))
			src.readErr = readErr
			return src, nil
		},
		workingVideoConstructor(nil),
	)

	stream, err := s.Start(fullConfig(), StreamOptions{Video: true, Audio: true})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	select {
	case exitErr, ok := <-stream.Exit():
		if !ok {
			t.Fatal("exit channel closed before delivering the error")
		}
		if !errors.Is(exitErr, ErrDeviceLost) {
			t.Fatalf("exit error = %v, want ErrDeviceLost", exitErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fatal error never delivered")
	}

	// The session tears itself down; wait for the async stop.
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateIdle {
		if time.Now().After(deadline) {
			t.Fatalf("session never self-stopped, state %v", s.State())
		}
		time.Sleep(10 * time.Millisecond)
	}

	// After teardown the exit channel is closed with nothing further.
	if err, open := <-stream.Exit(); open && err != nil {
		t.Fatalf("second exit delivery: %v", err)
	}
}
