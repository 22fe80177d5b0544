//go:build windows

package capture

import (
	"fmt"

	"github.com/voibo/desktop-audio-capture/internal/dxgi"
	"github.com/voibo/desktop-audio-capture/internal/winenum"
)

func listPlatformDisplays() ([]DisplayTarget, error) {
	outputs, err := dxgi.ListOutputs(false)
	if err != nil {
		return nil, err
	}
	displays := make([]DisplayTarget, 0, len(outputs))
	for _, o := range outputs {
		title := fmt.Sprintf("Display %d", o.Index+1)
		if o.Primary {
			title += " (Primary)"
		}
		displays = append(displays, DisplayTarget{
			ID:     uint32(o.Index + 1),
			Width:  o.Width,
			Height: o.Height,
			Title:  title,
		})
	}
	return displays, nil
}

func listPlatformWindows() ([]WindowTarget, error) {
	wins, err := winenum.List()
	if err != nil {
		return nil, err
	}

	var targets []WindowTarget

	// The entire-desktop pseudo window always comes first, sized to the
	// primary display when it can be resolved.
	desktop := WindowTarget{
		ID:      WindowEntireDesktop,
		Title:   "Entire Desktop",
		AppName: "Desktop",
	}
	if outputs, err := dxgi.ListOutputs(false); err == nil {
		for _, o := range outputs {
			if o.Primary {
				desktop.Width = o.Width
				desktop.Height = o.Height
				break
			}
		}
	}
	targets = append(targets, desktop)

	for _, w := range wins {
		if !includeWindow(w.Visible, w.Enabled, w.Title, w.Width, w.Height) {
			continue
		}
		appName := w.AppName
		if appName == "" {
			appName = "Unknown"
		}
		targets = append(targets, WindowTarget{
			ID:      uint32(w.Handle),
			Width:   w.Width,
			Height:  w.Height,
			Title:   w.Title,
			AppName: appName,
		})
	}
	return targets, nil
}
