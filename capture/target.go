package capture

// Well-known target ids carried over from the native capture ABI.
const (
	// DeviceLoopback selects the default render endpoint in loopback
	// mode (system audio output).
	DeviceLoopback uint32 = 100
	// DeviceMicrophone selects the default capture endpoint.
	DeviceMicrophone uint32 = 101
	// WindowEntireDesktop is the pseudo-window covering the whole desktop.
	WindowEntireDesktop uint32 = 200
)

// TargetKind discriminates CaptureTarget variants.
type TargetKind int

const (
	TargetDisplay TargetKind = iota
	TargetWindow
	TargetAudioDevice
)

// Target is a discriminated capture target produced by the catalog
// functions. Targets carry no native handles and may be copied freely.
type Target interface {
	Kind() TargetKind
}

// DisplayTarget identifies a connected display. ID is 1-based.
type DisplayTarget struct {
	ID     uint32
	Width  int
	Height int
	Title  string
}

func (DisplayTarget) Kind() TargetKind { return TargetDisplay }

// WindowTarget identifies a visible top-level window.
type WindowTarget struct {
	ID      uint32
	Width   int
	Height  int
	Title   string
	AppName string
}

func (WindowTarget) Kind() TargetKind { return TargetWindow }

// AudioDeviceKind distinguishes loopback render capture from microphone
// input.
type AudioDeviceKind int

const (
	AudioLoopback AudioDeviceKind = iota
	AudioMicrophone
)

func (k AudioDeviceKind) String() string {
	if k == AudioMicrophone {
		return "microphone"
	}
	return "loopback"
}

// AudioDeviceTarget identifies a capturable audio endpoint.
type AudioDeviceTarget struct {
	ID       uint32
	Endpoint AudioDeviceKind
	Title    string
}

func (AudioDeviceTarget) Kind() TargetKind { return TargetAudioDevice }

// TargetFilter selects which target kinds enumeration returns.
type TargetFilter int

const (
	FilterAll TargetFilter = iota
	FilterDisplaysOnly
	FilterWindowsOnly
)
