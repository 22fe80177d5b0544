//go:build windows

// Package wasapi captures system audio through WASAPI shared-mode
// streams, either loopback on the default render endpoint or the default
// microphone, using raw COM vtable calls (no cgo).
package wasapi

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/voibo/desktop-audio-capture/internal/comutil"
)

// Kind selects the endpoint to capture.
type Kind int

const (
	// Loopback captures what the default render endpoint is playing.
	Loopback Kind = iota
	// Microphone captures the default input endpoint.
	Microphone
)

// Format is the endpoint's negotiated mix format.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Float         bool
}

// ErrClosed is returned by Read after Stop.
var ErrClosed = errors.New("wasapi: client closed")

// ErrDeviceInvalidated is returned when the endpoint disappears
// mid-stream (AUDCLNT_E_DEVICE_INVALIDATED).
var ErrDeviceInvalidated = errors.New("wasapi: device invalidated")

// WASAPI COM GUIDs.
var (
	clsidMMDeviceEnumerator = comutil.GUID{Data1: 0xBCDE0395, Data2: 0xE52F, Data3: 0x467C, Data4: [8]byte{0x8E, 0x3D, 0xC4, 0x57, 0x92, 0x91, 0x69, 0x2E}}
	iidIMMDeviceEnumerator  = comutil.GUID{Data1: 0xA95664D2, Data2: 0x9614, Data3: 0x4F35, Data4: [8]byte{0xA7, 0x46, 0xDE, 0x8D, 0xB6, 0x36, 0x17, 0xE6}}
	iidIAudioClient         = comutil.GUID{Data1: 0x1CB9AD4C, Data2: 0xDBFA, Data3: 0x4c32, Data4: [8]byte{0xB1, 0x78, 0xC2, 0xF5, 0x68, 0xA7, 0x03, 0xB2}}
	iidIAudioCaptureClient  = comutil.GUID{Data1: 0xC8ADBD64, Data2: 0xE71E, Data3: 0x48a0, Data4: [8]byte{0xA4, 0xDE, 0x18, 0x5C, 0x39, 0x5C, 0xD3, 0x17}}

	// KSDATAFORMAT_SUBTYPE_IEEE_FLOAT
	subtypeIEEEFloat = comutil.GUID{Data1: 0x00000003, Data2: 0x0000, Data3: 0x0010, Data4: [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
)

const (
	eRender  = 0
	eCapture = 1
	eConsole = 0

	audclntShareModeShared      = 0
	audclntStreamFlagsLoopback  = 0x00020000
	audclntStreamFlagsEventCb   = 0x00040000
	audclntBufferFlagsSilent    = 0x2
	hrAudclntDeviceInvalidated  = 0x88890004
	waveFormatIEEEFloat         = 0x0003
	waveFormatExtensible        = 0xFFFE

	// 1 second shared buffer, in 100-ns units.
	bufferDuration = 10_000_000

	// COM vtable indices (IUnknown = 0,1,2; interface methods start at 3)
	mmdeGetDefaultAudioEndpoint = 4  // IMMDeviceEnumerator::GetDefaultAudioEndpoint
	mmDeviceActivate            = 3  // IMMDevice::Activate
	audioClientInitialize       = 3  // IAudioClient::Initialize
	audioClientGetMixFormat     = 8  // IAudioClient::GetMixFormat
	audioClientStart            = 10 // IAudioClient::Start
	audioClientStop             = 11 // IAudioClient::Stop
	audioClientSetEventHandle   = 13 // IAudioClient::SetEventHandle
	audioClientGetService       = 14 // IAudioClient::GetService
	capClientGetBuffer          = 3  // IAudioCaptureClient::GetBuffer
	capClientReleaseBuffer      = 4  // IAudioCaptureClient::ReleaseBuffer
	capClientGetNextPacketSize  = 5  // IAudioCaptureClient::GetNextPacketSize
)

// waveFormatEx matches WAVEFORMATEX.
type waveFormatEx struct {
	FormatTag      uint16
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	CbSize         uint16
}

// waveFormatExtensibleTail is the WAVEFORMATEXTENSIBLE suffix following
// waveFormatEx when FormatTag is WAVE_FORMAT_EXTENSIBLE.
type waveFormatExtensibleTail struct {
	ValidBitsPerSample uint16
	ChannelMask        uint32
	SubFormat          comutil.GUID
}

// Client is one open WASAPI capture stream. Start opens and starts the
// endpoint; Read blocks on the buffer-ready event and drains every
// pending packet into one float32 chunk; Stop wakes a blocked Read and
// releases the device.
type Client struct {
	kind     Kind
	skipInit bool

	enumerator    uintptr
	device        uintptr
	audioClient   uintptr
	captureClient uintptr
	event         windows.Handle
	format        Format

	closed   atomic.Bool
	started  bool
	readerMu sync.Mutex // held while a Read is in flight
	buf      []float32  // drain buffer, reused across Reads
}

// New creates an unopened client. skipInit suppresses process-wide COM
// initialization when the host already performed it.
func New(kind Kind, skipInit bool) *Client {
	return &Client{kind: kind, skipInit: skipInit}
}

// Start opens the endpoint, negotiates the mix format, and starts the
// event-driven stream. A failed start releases everything it acquired.
func (c *Client) Start() (Format, error) {
	if err := comutil.Init(c.skipInit); err != nil {
		return Format{}, err
	}

	if err := c.open(); err != nil {
		c.release()
		comutil.Uninit()
		return Format{}, err
	}
	c.started = true

	slog.Info("WASAPI stream started",
		"kind", c.kindString(),
		"channels", c.format.Channels,
		"sampleRate", c.format.SampleRate,
		"bitsPerSample", c.format.BitsPerSample,
		"float", c.format.Float,
	)
	return c.format, nil
}

func (c *Client) open() error {
	if err := comutil.CreateInstance(&clsidMMDeviceEnumerator, &iidIMMDeviceEnumerator, &c.enumerator); err != nil {
		return fmt.Errorf("MMDeviceEnumerator: %w", err)
	}

	dataFlow := uintptr(eRender)
	if c.kind == Microphone {
		dataFlow = eCapture
	}
	if _, err := comutil.Call(c.enumerator, mmdeGetDefaultAudioEndpoint,
		dataFlow, uintptr(eConsole), uintptr(unsafe.Pointer(&c.device))); err != nil {
		return fmt.Errorf("GetDefaultAudioEndpoint: %w", err)
	}

	if _, err := comutil.Call(c.device, mmDeviceActivate,
		uintptr(unsafe.Pointer(&iidIAudioClient)),
		uintptr(0x1|0x2|0x4|0x10), // CLSCTX_ALL
		0,
		uintptr(unsafe.Pointer(&c.audioClient)),
	); err != nil {
		return fmt.Errorf("Activate IAudioClient: %w", err)
	}

	var mixFormatPtr uintptr
	if _, err := comutil.Call(c.audioClient, audioClientGetMixFormat,
		uintptr(unsafe.Pointer(&mixFormatPtr))); err != nil {
		return fmt.Errorf("GetMixFormat: %w", err)
	}
	c.format = parseFormat(mixFormatPtr)

	event, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		comutil.TaskMemFree(mixFormatPtr)
		return fmt.Errorf("CreateEvent: %w", err)
	}
	c.event = event

	streamFlags := uintptr(audclntStreamFlagsEventCb)
	if c.kind == Loopback {
		streamFlags |= audclntStreamFlagsLoopback
	}
	_, err = comutil.Call(c.audioClient, audioClientInitialize,
		uintptr(audclntShareModeShared),
		streamFlags,
		uintptr(bufferDuration),
		0,            // periodicity
		mixFormatPtr, // must stay valid COM memory until Initialize returns
		0,            // AudioSessionGuid
	)
	comutil.TaskMemFree(mixFormatPtr)
	if err != nil {
		return fmt.Errorf("Initialize: %w", err)
	}

	if _, err := comutil.Call(c.audioClient, audioClientSetEventHandle,
		uintptr(c.event)); err != nil {
		return fmt.Errorf("SetEventHandle: %w", err)
	}

	if _, err := comutil.Call(c.audioClient, audioClientGetService,
		uintptr(unsafe.Pointer(&iidIAudioCaptureClient)),
		uintptr(unsafe.Pointer(&c.captureClient)),
	); err != nil {
		return fmt.Errorf("GetService IAudioCaptureClient: %w", err)
	}

	if _, err := comutil.Call(c.audioClient, audioClientStart); err != nil {
		return fmt.Errorf("Start: %w", err)
	}
	return nil
}

// parseFormat copies the mix format out of COM memory, resolving the
// extensible subformat to detect IEEE float.
func parseFormat(p uintptr) Format {
	wf := *(*waveFormatEx)(unsafe.Pointer(p))
	f := Format{
		SampleRate:    int(wf.SamplesPerSec),
		Channels:      int(wf.Channels),
		BitsPerSample: int(wf.BitsPerSample),
	}
	switch wf.FormatTag {
	case waveFormatIEEEFloat:
		f.Float = true
	case waveFormatExtensible:
		tail := *(*waveFormatExtensibleTail)(unsafe.Pointer(p + unsafe.Sizeof(waveFormatEx{})))
		f.Float = tail.SubFormat == subtypeIEEEFloat
	}
	return f
}

// Read blocks until the device signals that buffer data is ready, then
// drains every pending packet into one interleaved float32 chunk at the
// native format. The returned slice is reused by the next Read. silent
// reports a drain cycle in which the device flagged every packet silent.
func (c *Client) Read() (samples []float32, frames int, silent bool, err error) {
	c.readerMu.Lock()
	defer c.readerMu.Unlock()

	if c.closed.Load() {
		return nil, 0, false, ErrClosed
	}

	ev, err := windows.WaitForSingleObject(c.event, windows.INFINITE)
	if err != nil || ev != windows.WAIT_OBJECT_0 {
		if c.closed.Load() {
			return nil, 0, false, ErrClosed
		}
		if err == nil {
			err = fmt.Errorf("wait returned %d", ev)
		}
		return nil, 0, false, fmt.Errorf("wait for audio data: %w", err)
	}
	if c.closed.Load() {
		return nil, 0, false, ErrClosed
	}

	c.buf = c.buf[:0]
	sawData := false

	for {
		var packet uint32
		if hr, err := comutil.Call(c.captureClient, capClientGetNextPacketSize,
			uintptr(unsafe.Pointer(&packet))); err != nil {
			return nil, 0, false, c.mapStreamErr("GetNextPacketSize", hr, err)
		}
		if packet == 0 {
			break
		}

		var dataPtr uintptr
		var numFrames uint32
		var flags uint32
		if hr, err := comutil.Call(c.captureClient, capClientGetBuffer,
			uintptr(unsafe.Pointer(&dataPtr)),
			uintptr(unsafe.Pointer(&numFrames)),
			uintptr(unsafe.Pointer(&flags)),
			0, // devicePosition
			0, // qpcPosition
		); err != nil {
			return nil, 0, false, c.mapStreamErr("GetBuffer", hr, err)
		}

		if numFrames > 0 && flags&audclntBufferFlagsSilent == 0 && dataPtr != 0 {
			n := int(numFrames) * c.format.Channels
			raw := unsafe.Slice((*float32)(unsafe.Pointer(dataPtr)), n)
			c.buf = append(c.buf, raw...)
			sawData = true
		}

		if hr, err := comutil.Call(c.captureClient, capClientReleaseBuffer,
			uintptr(numFrames)); err != nil {
			return nil, 0, false, c.mapStreamErr("ReleaseBuffer", hr, err)
		}
	}

	return c.buf, len(c.buf) / c.format.Channels, !sawData, nil
}

// mapStreamErr normalizes device-loss HRESULTs so callers can treat them
// as fatal.
func (c *Client) mapStreamErr(op string, hr uintptr, err error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if uint32(hr) == hrAudclntDeviceInvalidated {
		return ErrDeviceInvalidated
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Stop wakes any blocked Read, waits for it to drain, stops the stream,
// and releases every handle exactly once. Safe to call repeatedly.
func (c *Client) Stop() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.event != 0 {
		_ = windows.SetEvent(c.event) // wake a blocked Read
	}

	// Wait for an in-flight Read to return before tearing down the COM
	// objects it may be touching.
	c.readerMu.Lock()
	defer c.readerMu.Unlock()

	if c.audioClient != 0 {
		comutil.Call(c.audioClient, audioClientStop)
	}
	c.release()
	if c.started {
		comutil.Uninit()
		c.started = false
	}
	return nil
}

func (c *Client) release() {
	if c.captureClient != 0 {
		comutil.Release(c.captureClient)
		c.captureClient = 0
	}
	if c.audioClient != 0 {
		comutil.Release(c.audioClient)
		c.audioClient = 0
	}
	if c.device != 0 {
		comutil.Release(c.device)
		c.device = 0
	}
	if c.enumerator != 0 {
		comutil.Release(c.enumerator)
		c.enumerator = 0
	}
	if c.event != 0 {
		windows.CloseHandle(c.event)
		c.event = 0
	}
}

func (c *Client) kindString() string {
	if c.kind == Microphone {
		return "microphone"
	}
	return "loopback"
}
