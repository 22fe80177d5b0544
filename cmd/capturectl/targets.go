package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voibo/desktop-audio-capture/capture"
)

var targetsFilter string

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List capturable displays, windows, and audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listTargets()
	},
}

func init() {
	targetsCmd.Flags().StringVar(&targetsFilter, "filter", "all", "target filter: all, displays, windows")
}

func listTargets() error {
	var filter capture.TargetFilter
	switch targetsFilter {
	case "all":
		filter = capture.FilterAll
	case "displays":
		filter = capture.FilterDisplaysOnly
	case "windows":
		filter = capture.FilterWindowsOnly
	default:
		return fmt.Errorf("unknown filter %q (use all, displays, windows)", targetsFilter)
	}

	targets, err := capture.ListTargets(filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "KIND\tID\tSIZE\tTITLE\tAPP")

	for _, t := range targets {
		switch v := t.(type) {
		case capture.DisplayTarget:
			fmt.Fprintf(w, "display\t%d\t%dx%d\t%s\t\n", v.ID, v.Width, v.Height, v.Title)
		case capture.WindowTarget:
			fmt.Fprintf(w, "window\t%d\t%dx%d\t%s\t%s\n", v.ID, v.Width, v.Height, v.Title, v.AppName)
		case capture.AudioDeviceTarget:
			fmt.Fprintf(w, "audio\t%d\t\t%s\t\n", v.ID, v.Title)
		}
	}
	return nil
}
