package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values that would cause panics are clamped to safe defaults.
// Other validation errors are logged as warnings but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.FrameRate < 0 {
		errs = append(errs, fmt.Errorf("frame_rate %v is negative, clamping to default", c.FrameRate))
		c.FrameRate = 0
	} else if c.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("frame_rate %v exceeds maximum 240, clamping", c.FrameRate))
		c.FrameRate = 240
	}

	if c.Quality < 0 || c.Quality > 2 {
		errs = append(errs, fmt.Errorf("quality %d out of range 0-2, clamping", c.Quality))
		if c.Quality < 0 {
			c.Quality = 0
		} else {
			c.Quality = 2
		}
	}

	if c.QualityValue < 0 || c.QualityValue > 100 {
		errs = append(errs, fmt.Errorf("quality_value %d out of range 0-100, ignoring", c.QualityValue))
		c.QualityValue = 0
	}

	if c.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("sample_rate %d is negative, clamping to default", c.SampleRate))
		c.SampleRate = 0
	}

	if c.Channels != 0 && c.Channels != 1 && c.Channels != 2 {
		errs = append(errs, fmt.Errorf("channels %d is not 1 or 2, using default", c.Channels))
		c.Channels = 0
	}

	if c.ImageFormat != "" && c.ImageFormat != "jpeg" && c.ImageFormat != "raw" {
		errs = append(errs, fmt.Errorf("image_format %q is not valid (use jpeg or raw)", c.ImageFormat))
	}

	if c.VideoBuffer < 0 {
		errs = append(errs, fmt.Errorf("video_buffer %d is negative, using default", c.VideoBuffer))
		c.VideoBuffer = 0
	}
	if c.AudioBuffer < 0 {
		errs = append(errs, fmt.Errorf("audio_buffer %d is negative, using default", c.AudioBuffer))
		c.AudioBuffer = 0
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	// Log validation errors as warnings
	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
