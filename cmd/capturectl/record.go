package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voibo/desktop-audio-capture/capture"
	"github.com/voibo/desktop-audio-capture/internal/logging"
)

var (
	recDisplay  uint32
	recWindow   uint32
	recDevice   uint32
	recNoAudio  bool
	recNoVideo  bool
	recDuration time.Duration
	recOutDir   string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record screen frames and audio to disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		return record()
	},
}

func init() {
	recordCmd.Flags().Uint32Var(&recDisplay, "display", 0, "display id to capture (1-based, from 'targets')")
	recordCmd.Flags().Uint32Var(&recWindow, "window", 0, "window id to capture (from 'targets')")
	recordCmd.Flags().Uint32Var(&recDevice, "device", capture.DeviceLoopback, "audio device id (100=loopback, 101=microphone)")
	recordCmd.Flags().BoolVar(&recNoAudio, "no-audio", false, "disable audio capture")
	recordCmd.Flags().BoolVar(&recNoVideo, "no-video", false, "disable video capture")
	recordCmd.Flags().DurationVar(&recDuration, "duration", 0, "stop after this long (0 = until interrupted)")
	recordCmd.Flags().StringVar(&recOutDir, "out", ".", "output directory")
}

func record() error {
	fileCfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(recOutDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	format := capture.FormatJPEG
	if fileCfg.ImageFormat == "raw" {
		format = capture.FormatRaw
	}

	cfg := capture.CaptureConfig{
		DisplayID:    recDisplay,
		WindowID:     recWindow,
		FrameRate:    fileCfg.FrameRate,
		Quality:      capture.QualityTier(fileCfg.Quality),
		QualityValue: fileCfg.QualityValue,
		Format:       format,
		SampleRate:   fileCfg.SampleRate,
		Channels:     fileCfg.Channels,
	}
	if !recNoAudio {
		cfg.DeviceID = recDevice
	}

	opts := capture.StreamOptions{
		Video:       !recNoVideo,
		Audio:       !recNoAudio,
		VideoBuffer: fileCfg.VideoBuffer,
		AudioBuffer: fileCfg.AudioBuffer,
	}

	log := logging.L("record")

	session := capture.NewSession()
	stream, err := session.Start(cfg, opts)
	if err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	var wav *wavWriter
	if !recNoAudio {
		w, err := newWavWriter(filepath.Join(recOutDir, "capture.wav"),
			fileCfg.SampleRate, fileCfg.Channels)
		if err != nil {
			session.Stop()
			return err
		}
		wav = w
		defer wav.Close()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if recDuration > 0 {
		deadline = time.After(recDuration)
	}

	ext := "jpg"
	if format == capture.FormatRaw {
		ext = "raw"
	}

	frameCount := 0
	audioFrames := 0
	videoCh := stream.Video()
	audioCh := stream.Audio()
	exitCh := stream.Exit()
	start := time.Now()

	for videoCh != nil || audioCh != nil {
		select {
		case f, ok := <-videoCh:
			if !ok {
				videoCh = nil
				continue
			}
			frameCount++
			name := filepath.Join(recOutDir, fmt.Sprintf("frame_%05d.%s", frameCount, ext))
			if err := os.WriteFile(name, f.Data, 0644); err != nil {
				log.Warn("write frame failed", logging.KeyError, err)
			}

		case a, ok := <-audioCh:
			if !ok {
				audioCh = nil
				continue
			}
			audioFrames += a.Frames
			if wav != nil {
				wav.WriteSamples(a.Samples)
			}

		case err, ok := <-exitCh:
			exitCh = nil // drain video/audio until they close
			if ok && err != nil {
				log.Error("capture failed", logging.KeyError, err)
			}
			session.Stop()

		case <-sigChan:
			log.Info("interrupted, stopping")
			session.Stop()

		case <-deadline:
			log.Info("duration elapsed, stopping")
			deadline = nil
			session.Stop()
		}
	}

	log.Info("recording finished",
		"videoFrames", frameCount,
		"audioFrames", audioFrames,
		logging.KeyDurationMs, time.Since(start).Milliseconds(),
	)
	return nil
}

// wavWriter writes 16-bit PCM WAV, patching sizes on close.
type wavWriter struct {
	f          *os.File
	sampleRate int
	channels   int
	dataBytes  uint32
}

func newWavWriter(path string, sampleRate, channels int) (*wavWriter, error) {
	if channels == 0 {
		channels = 2
	}
	if sampleRate == 0 {
		sampleRate = 48000
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}
	w := &wavWriter{f: f, sampleRate: sampleRate, channels: channels}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *wavWriter) writeHeader() error {
	blockAlign := w.channels * 2
	byteRate := w.sampleRate * blockAlign

	var hdr [44]byte
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], 36+w.dataBytes)
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:], uint16(w.channels))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:], 16) // bits per sample
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], w.dataBytes)

	_, err := w.f.WriteAt(hdr[:], 0)
	return err
}

// WriteSamples converts float32 samples to 16-bit PCM and appends them.
func (w *wavWriter) WriteSamples(samples []float32) {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(s*32767)))
	}
	if _, err := w.f.WriteAt(buf, int64(44+w.dataBytes)); err == nil {
		w.dataBytes += uint32(len(buf))
	}
}

func (w *wavWriter) Close() error {
	w.writeHeader() // patch final sizes
	return w.f.Close()
}
