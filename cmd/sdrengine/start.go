package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenforge/capturecore/internal/capture"
	"github.com/lumenforge/capturecore/internal/config"
	"github.com/lumenforge/capturecore/internal/cvar"
	"github.com/lumenforge/capturecore/internal/extensions"
	"github.com/lumenforge/capturecore/internal/session"
)

var (
	startWidth     int
	startHeight    int
	startFile      string
	startOutputDir string
	startExtDir    string
	startDuration  time.Duration
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Drive a recording session against a synthetic in-process host",
	Long: "start runs a MovieSession against a generated backbuffer instead of a real game\n" +
		"process, so the capture/sampling/conversion/encode pipeline can be smoke-tested\n" +
		"without attaching to anything. Not a substitute for driving the library from a\n" +
		"real host's render loop.",
	RunE: runStart,
}

func init() {
	startCmd.Flags().IntVar(&startWidth, "width", 1280, "synthetic backbuffer width")
	startCmd.Flags().IntVar(&startHeight, "height", 720, "synthetic backbuffer height")
	startCmd.Flags().StringVar(&startFile, "file", "capture.mp4", "output container filename")
	startCmd.Flags().StringVar(&startOutputDir, "output-dir", ".", "output directory")
	startCmd.Flags().StringVar(&startExtDir, "extensions-dir", "", "Extensions/Enabled directory (default: none)")
	startCmd.Flags().DurationVar(&startDuration, "duration", 5*time.Second, "how long to run before ending the session")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if startOutputDir != "." {
		cfg.OutputDir = startOutputDir
	}

	pixelFormat, err := parsePixelFormat(cfg.VideoPixelFormat)
	if err != nil {
		return err
	}
	colorSpace, err := parseColorSpace(cfg.VideoYUVSpace)
	if err != nil {
		return err
	}

	registry := cvar.New()
	host := newSyntheticHost(startWidth, startHeight)

	extHost := extensions.NewHost(startExtDir, registry, host)
	if startExtDir != "" {
		if err := extHost.Discover(); err != nil {
			log.Warn("extension discovery failed", "error", err)
		}
		extHost.Ready()
	}

	sess := session.New(host, registry, extHost)

	params := session.Params{
		Filename:    startFile,
		OutputDir:   cfg.OutputDir,
		Width:       startWidth,
		Height:      startHeight,
		FPS:         cfg.VideoFPS,
		SampleMult:  cfg.VideoSampleMult,
		Exposure:    float32(cfg.VideoSampleExpose),
		Encoder:     cfg.VideoEncoder,
		PixelFormat: pixelFormat,
		ColorSpace:  colorSpace,
		Staging:     cfg.VideoD3D11Staging,

		X264CRF:    cfg.VideoX264CRF,
		X264Preset: cfg.VideoX264Preset,
		X264Intra:  cfg.VideoX264Intra,

		AudioOnly:         cfg.AudioOnly,
		AudioDisableVideo: cfg.AudioDisableVideo,
	}

	if err := sess.Start(params); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	log.Info("session started, running synthetic capture loop", "duration", startDuration)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second / time.Duration(max(1, cfg.VideoFPS)))
	defer ticker.Stop()
	deadline := time.NewTimer(startDuration)
	defer deadline.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			if err := sess.Tick(ctx); err != nil {
				log.Warn("tick failed", "error", err)
			}
		case <-deadline.C:
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sess.End(endCtx); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if extHost != nil {
		extHost.Close()
	}
	log.Info("session ended")
	return nil
}

func parsePixelFormat(s string) (capture.PixelFormat, error) {
	switch strings.ToLower(s) {
	case "", "yuv420":
		return capture.PixelFormatYUV420, nil
	case "yuv444":
		return capture.PixelFormatYUV444, nil
	case "bgr0":
		return capture.PixelFormatBGR0, nil
	default:
		return 0, fmt.Errorf("unknown video_pixel_format %q", s)
	}
}

func parseColorSpace(s string) (capture.ColorSpace, error) {
	switch s {
	case "601":
		return capture.ColorSpaceBT601, nil
	case "709":
		return capture.ColorSpaceBT709, nil
	default:
		return 0, fmt.Errorf("unknown video_yuv_space %q", s)
	}
}
