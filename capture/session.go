package capture

import (
	"fmt"
	"log/slog"
	"sync"
)

// StreamOptions selects which engines a session starts and sizes the
// delivery channels.
type StreamOptions struct {
	// Video/Audio request the corresponding engine. The video engine is
	// only constructed when the config also carries a display or window
	// target.
	Video bool
	Audio bool

	// Channel capacities. Zero means the defaults (4 video frames,
	// 256 audio frames).
	VideoBuffer int
	AudioBuffer int
}

const (
	defaultVideoBuffer = 4
	defaultAudioBuffer = 256
)

// Stream carries the frames of one running capture. The frame channels
// are closed when the session stops or exits; Exit yields at most one
// fatal error before closing.
type Stream struct {
	video chan *EncodedFrame
	audio chan *NormalizedAudioFrame
	exit  chan error
}

// Video is the encoded video frame channel. Nil frames are never sent.
func (s *Stream) Video() <-chan *EncodedFrame { return s.video }

// Audio is the normalized audio frame channel.
func (s *Stream) Audio() <-chan *NormalizedAudioFrame { return s.audio }

// Exit reports an unsolicited fatal engine error. It receives at most
// one error and is closed on teardown; a clean Stop closes it without
// sending.
func (s *Stream) Exit() <-chan error { return s.exit }

// Session coordinates zero-or-one audio engine and zero-or-one video
// engine with single-session semantics. The zero constructor wires the
// platform sources; tests replace the source constructors.
type Session struct {
	// mu guards the start/stop state transition only, never the data
	// path. Engine threads own their device handles exclusively.
	mu    sync.Mutex
	state EngineState

	audio  *AudioEngine
	video  *VideoEngine
	stream *Stream

	// exitOnce collapses fatal errors from both engines into a single
	// Exit delivery per started session.
	exitOnce *sync.Once

	// Source constructors, replaceable for testing.
	newAudioSource  func(CaptureConfig) (AudioDeviceSource, error)
	newScreenSource func(CaptureConfig) (ScreenSource, error)
}

// NewSession creates an idle capture session backed by the platform
// sources.
func NewSession() *Session {
	return &Session{
		newAudioSource:  newPlatformAudioSource,
		newScreenSource: newPlatformScreenSource,
	}
}

// Start validates the config, constructs the requested engines, and
// launches their capture threads. It fails with ErrAlreadyRunning while a
// session is active, and succeeds when at least one engine starts; when
// every requested engine fails, the last engine's error is returned and
// the session stays idle.
func (s *Session) Start(cfg CaptureConfig, opts StreamOptions) (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return nil, ErrAlreadyRunning
	}
	if !opts.Video && !opts.Audio {
		return nil, fmt.Errorf("%w: no output requested", ErrInvalidConfig)
	}
	// Reject bad input before any platform resource is touched.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Audio {
		if err := cfg.validateAudio(); err != nil {
			return nil, err
		}
	}

	s.state = StateStarting
	stream := &Stream{
		video: make(chan *EncodedFrame, bufferSize(opts.VideoBuffer, defaultVideoBuffer)),
		audio: make(chan *NormalizedAudioFrame, bufferSize(opts.AudioBuffer, defaultAudioBuffer)),
		exit:  make(chan error, 1),
	}
	exitOnce := &sync.Once{}
	onFatal := func(err error) {
		exitOnce.Do(func() {
			stream.exit <- err
			// Reuse the stop path without blocking the capture thread
			// that raised the error.
			go s.Stop()
		})
	}

	var (
		started int
		lastErr error
	)
	if opts.Audio {
		src, err := s.newAudioSource(cfg)
		if err != nil {
			lastErr = err
		} else {
			eng := newAudioEngine(cfg, src, stream.audio, onFatal)
			if err := eng.Start(); err != nil {
				lastErr = err
			} else {
				s.audio = eng
				started++
			}
		}
	}
	if opts.Video && cfg.hasVideoTarget() {
		src, err := s.newScreenSource(cfg)
		if err != nil {
			lastErr = err
		} else {
			eng := newVideoEngine(cfg, src, stream.video, onFatal)
			if err := eng.Start(); err != nil {
				lastErr = err
			} else {
				s.video = eng
				started++
			}
		}
	}

	if started == 0 {
		s.audio = nil
		s.video = nil
		s.state = StateIdle
		if lastErr == nil {
			lastErr = fmt.Errorf("%w: no engine could be constructed", ErrInvalidConfig)
		}
		return nil, lastErr
	}
	if lastErr != nil {
		slog.Warn("capture started partially", "error", lastErr)
	}

	s.stream = stream
	s.exitOnce = exitOnce
	s.state = StateRunning
	return stream, nil
}

// Stop signals every owned engine, joins their capture threads, releases
// device handles, and closes the stream channels. It blocks the caller,
// never the capture threads, and is idempotent: when no session is
// running it returns immediately.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	audio, video, stream := s.audio, s.video, s.stream
	s.mu.Unlock()

	// Join outside the lock so a concurrent Start/Stop caller is not
	// blocked behind device teardown.
	if audio != nil {
		audio.Stop()
	}
	if video != nil {
		video.Stop()
	}

	// Stop is a barrier: both threads have exited, so no send can race
	// these closes.
	close(stream.video)
	close(stream.audio)
	close(stream.exit)

	s.mu.Lock()
	s.audio = nil
	s.video = nil
	s.stream = nil
	s.exitOnce = nil
	s.state = StateIdle
	s.mu.Unlock()

	slog.Info("capture session stopped")
}

// State reports the session lifecycle state.
func (s *Session) State() EngineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func bufferSize(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
