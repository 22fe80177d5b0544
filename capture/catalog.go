package capture

// Target enumeration. Each call opens and closes its platform handles
// within the call; nothing here holds state.

const (
	// Windows smaller than this in either dimension are excluded from
	// enumeration (tooltips, tray remnants, layout scaffolding).
	minWindowSize = 50
)

// ListDisplays enumerates connected displays. Ids are 1-based.
func ListDisplays() ([]DisplayTarget, error) {
	return listPlatformDisplays()
}

// ListWindows enumerates visible top-level windows, filtered by
// includeWindow, plus the entire-desktop pseudo target.
func ListWindows() ([]WindowTarget, error) {
	return listPlatformWindows()
}

// ListAudioDevices enumerates capturable audio endpoints.
func ListAudioDevices() ([]AudioDeviceTarget, error) {
	return []AudioDeviceTarget{
		{ID: DeviceLoopback, Endpoint: AudioLoopback, Title: "System Audio Output"},
		{ID: DeviceMicrophone, Endpoint: AudioMicrophone, Title: "Microphone Input"},
	}, nil
}

// ListTargets enumerates capture targets matching the filter. Audio
// devices are only included with FilterAll.
func ListTargets(filter TargetFilter) ([]Target, error) {
	var targets []Target

	if filter == FilterAll {
		devices, err := ListAudioDevices()
		if err != nil {
			return nil, err
		}
		for _, d := range devices {
			targets = append(targets, d)
		}
	}

	if filter == FilterAll || filter == FilterDisplaysOnly {
		displays, err := listPlatformDisplays()
		if err != nil {
			return nil, err
		}
		for _, d := range displays {
			targets = append(targets, d)
		}
	}

	if filter == FilterAll || filter == FilterWindowsOnly {
		windows, err := listPlatformWindows()
		if err != nil {
			return nil, err
		}
		for _, w := range windows {
			targets = append(targets, w)
		}
	}

	return targets, nil
}

// includeWindow is the enumeration filter: visible, enabled, titled
// windows of at least minWindowSize in both dimensions.
func includeWindow(visible, enabled bool, title string, width, height int) bool {
	if !visible || !enabled {
		return false
	}
	if title == "" {
		return false
	}
	if width < minWindowSize || height < minWindowSize {
		return false
	}
	return true
}
