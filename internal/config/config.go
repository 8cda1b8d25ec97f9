// Package config loads the engine's file/flag/env configuration layer,
// mirroring the sdr_* cvar surface so the engine is drivable from a config
// file and CLI flags in addition to the in-process cvar registry consumed
// by extensions.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config mirrors the recognized sdr_* console variables one-to-one.
type Config struct {
	OutputDir string `mapstructure:"output_dir"`

	EndMovieFlash bool `mapstructure:"end_movie_flash"`
	EndMovieQuit  bool `mapstructure:"end_movie_quit"`

	VideoFPS          int     `mapstructure:"video_fps"`
	VideoYUVSpace     string  `mapstructure:"video_yuv_space"`
	VideoEncoder      string  `mapstructure:"video_encoder"`
	VideoPixelFormat  string  `mapstructure:"video_pixel_format"`
	VideoSampleMult   int     `mapstructure:"video_sample_mult"`
	VideoSampleExpose float64 `mapstructure:"video_sample_exposure"`
	VideoD3D11Staging bool    `mapstructure:"video_d3d11_staging"`

	VideoX264CRF    int    `mapstructure:"video_x264_crf"`
	VideoX264Preset string `mapstructure:"video_x264_preset"`
	VideoX264Intra  bool   `mapstructure:"video_x264_intra"`

	VideoLAVSuppressLog bool `mapstructure:"video_lav_suppress_log"`

	AudioOnly         bool `mapstructure:"audio_only"`
	AudioDisableVideo bool `mapstructure:"audio_disable_video"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Default returns the documented default for every recognized cvar.
func Default() *Config {
	return &Config{
		OutputDir: "",

		EndMovieFlash: false,
		EndMovieQuit:  false,

		VideoFPS:          60,
		VideoYUVSpace:     "709",
		VideoEncoder:      "libx264rgb",
		VideoPixelFormat:  "",
		VideoSampleMult:   32,
		VideoSampleExpose: 0.5,
		VideoD3D11Staging: true,

		VideoX264CRF:    0,
		VideoX264Preset: "ultrafast",
		VideoX264Intra:  true,

		VideoLAVSuppressLog: true,

		AudioOnly:         false,
		AudioDisableVideo: false,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads cfgFile (or the default search path) layered over Default,
// with BREEZE_-style environment override under the CAPTURECORE_ prefix.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("capturecore")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CAPTURECORE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate applies the cvar domain constraints from the external interface
// surface (fps 30-1000, exposure 0..1, crf 0..51).
func (c *Config) Validate() error {
	if c.VideoFPS < 30 || c.VideoFPS > 1000 {
		return fmt.Errorf("video_fps out of range [30,1000]: %d", c.VideoFPS)
	}
	if c.VideoSampleExpose < 0 || c.VideoSampleExpose > 1 {
		return fmt.Errorf("video_sample_exposure out of range [0,1]: %v", c.VideoSampleExpose)
	}
	if c.VideoSampleMult < 0 {
		return fmt.Errorf("video_sample_mult must be >= 0: %d", c.VideoSampleMult)
	}
	if c.VideoX264CRF < 0 || c.VideoX264CRF > 51 {
		return fmt.Errorf("video_x264_crf out of range [0,51]: %d", c.VideoX264CRF)
	}
	if c.VideoYUVSpace != "601" && c.VideoYUVSpace != "709" {
		return fmt.Errorf("video_yuv_space must be 601 or 709: %q", c.VideoYUVSpace)
	}
	return nil
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "capturecore")
}
