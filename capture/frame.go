package capture

import "time"

// RawAudioChunk is one drained packet of native-format interleaved float
// samples. It is owned by the engine thread that read it and discarded
// after conversion; Silent marks packets the device flagged as silence.
type RawAudioChunk struct {
	Samples    []float32
	Frames     int
	Channels   int
	SampleRate int
	Silent     bool
}

// NormalizedAudioFrame is a channel-count- and rate-converted audio chunk.
// Ownership transfers to the receiver; the sample slice is never reused
// by the engine.
type NormalizedAudioFrame struct {
	Samples    []float32
	Frames     int
	Channels   int
	SampleRate int
}

// CapturedFrame is a raw BGRA pixel buffer straight from the staging
// copy. Its lifetime ends when encoding consumes it.
type CapturedFrame struct {
	Pixels    []byte
	Width     int
	Height    int
	Stride    int
	Timestamp time.Time
}

// EncodedFrame is a compressed (or raw passthrough) video frame.
// Stride is the row stride of the pre-encoding pixel buffer. Ownership
// transfers to the receiver.
type EncodedFrame struct {
	Data        []byte
	Width       int
	Height      int
	Stride      int
	TimestampMs int64
	Format      string
}
