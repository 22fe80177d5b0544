// Package config loads CLI configuration from a YAML file and the
// environment.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	FrameRate    float64 `mapstructure:"frame_rate"`
	Quality      int     `mapstructure:"quality"`
	QualityValue int     `mapstructure:"quality_value"`
	SampleRate   int     `mapstructure:"sample_rate"`
	Channels     int     `mapstructure:"channels"`
	ImageFormat  string  `mapstructure:"image_format"`

	VideoBuffer int `mapstructure:"video_buffer"`
	AudioBuffer int `mapstructure:"audio_buffer"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		FrameRate:   30,
		SampleRate:  48000,
		Channels:    2,
		ImageFormat: "jpeg",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("capture")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CAPTURE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "DesktopCapture")
	case "darwin":
		return "/Library/Application Support/DesktopCapture"
	default:
		return "/etc/desktop-capture"
	}
}
