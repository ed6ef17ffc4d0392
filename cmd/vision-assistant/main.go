// vision-assistant describes photos out loud.
//
// "serve" runs the web capture page; "describe" runs the pipeline once for a
// file, stdin or a webcam frame and writes the spoken description to disk.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/vision-assistant/internal/config"
	"github.com/teslashibe/vision-assistant/internal/log"
	"github.com/teslashibe/vision-assistant/pkg/assistant"
	"github.com/teslashibe/vision-assistant/pkg/camera"
	"github.com/teslashibe/vision-assistant/pkg/hub"
	"github.com/teslashibe/vision-assistant/pkg/imaging"
	"github.com/teslashibe/vision-assistant/pkg/models"
	"github.com/teslashibe/vision-assistant/pkg/web"
)

var (
	// Global flags
	configFile string
	envFiles   []string
	logLevel   string
	logFormat  string

	// serve flags
	addr  string
	debug bool

	// describe flags
	outPath    string
	useWebcam  bool
	preset     string
	jsonOutput bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vision-assistant",
		Short: "Describe photos out loud",
		Long: `Vision Assistant captions a photo with an image-to-text model and speaks
the caption with a text-to-speech model.

Providers and endpoints are configured with a config file, a .env file or
VISION_* environment variables.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Dotenv files to load (default: .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(describeCmd())
	return rootCmd
}

// setup loads configuration and initializes logging.
func setup() (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigFile: configFile, EnvFiles: envFiles})
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	log.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func newPipeline(cfg *config.Config, registry *models.Registry, opts ...assistant.Option) *assistant.Pipeline {
	opts = append([]assistant.Option{
		assistant.WithStore(assistant.NewStore(cfg.Replay.Capacity)),
		assistant.WithImageOptions(imaging.Options{
			MaxDimension: cfg.Image.MaxDimension,
			Quality:      cfg.Image.Quality,
			MaxPixels:    cfg.Image.MaxPixels(),
		}),
		assistant.WithMaxNewTokens(cfg.Caption.MaxNewTokens),
	}, opts...)
	return assistant.New(registry, opts...)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web capture page and API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if debug {
				cfg.Server.Debug = true
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry := models.NewRegistry(cfg)
			defer registry.Close()

			events := hub.New("events")

			pipeline := newPipeline(cfg, registry, assistant.WithObserver(web.EventObserver(events)))

			server := web.NewServer(web.Config{
				Addr:          cfg.Server.Addr,
				BodyLimit:     cfg.Server.BodyLimit(),
				ReadTimeout:   cfg.Server.ReadTimeout,
				Debug:         cfg.Server.Debug,
				HealthTimeout: 10 * time.Second,
			}, pipeline, registry, events)

			log.Info("vision assistant starting",
				"addr", cfg.Server.Addr,
				"caption", strings.Join(cfg.Caption.Providers, ","),
				"speech", strings.Join(cfg.Speech.Providers, ","),
			)

			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("server: %w", err)
			}
			log.Info("goodbye")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable request logging")
	return cmd
}

func describeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [photo | -]",
		Short: "Describe one photo and save the spoken description",
		Long: `Describe runs the pipeline once and prints the caption.

Examples:
  # Describe a file, writing description.wav
  vision-assistant describe dog.jpg

  # Read from stdin
  cat dog.jpg | vision-assistant describe - -o dog.wav

  # Grab a frame from the first webcam (requires a gocv build)
  vision-assistant describe --webcam --preset 720p`,
		Args: func(cmd *cobra.Command, args []string) error {
			if useWebcam {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			source, err := openSource(cfg, args)
			if err != nil {
				return err
			}
			defer source.Close()

			image, err := source.Capture(ctx)
			if err != nil {
				return err
			}

			registry := models.NewRegistry(cfg)
			defer registry.Close()

			res, err := newPipeline(cfg, registry).Describe(ctx, image)
			if err != nil {
				return err
			}

			path := outputPath(outPath, res.MIMEType)
			if outPath != "" && path != outPath {
				log.Warn("output extension does not match audio format", "requested", outPath, "written", path, "mime_type", res.MIMEType)
			}
			if err := os.WriteFile(path, res.Audio, 0o644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					*assistant.Result
					AudioPath string `json:"audio_path"`
				}{res, path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Caption)
			fmt.Fprintf(cmd.ErrOrStderr(), "audio: %s (%s, %v)\n", path, res.MIMEType, res.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Audio output path (default description.wav or .mp3)")
	cmd.Flags().BoolVar(&useWebcam, "webcam", false, "Capture from the local webcam instead of a file")
	cmd.Flags().StringVar(&preset, "preset", "", "Webcam resolution preset: "+strings.Join(camera.PresetNames(), ", "))
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func openSource(cfg *config.Config, args []string) (camera.Source, error) {
	if !useWebcam {
		return camera.NewFileSource(args[0]), nil
	}

	camCfg := camera.Config{
		DeviceID:     cfg.Camera.Device,
		Width:        cfg.Camera.Width,
		Height:       cfg.Camera.Height,
		WarmupFrames: cfg.Camera.WarmupFrames,
		Quality:      cfg.Camera.Quality,
	}
	if preset != "" {
		p := camera.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %s)", preset, strings.Join(camera.PresetNames(), ", "))
		}
		p.DeviceID = camCfg.DeviceID
		camCfg = *p
	}

	cam, err := camera.NewWebcam(camCfg)
	if errors.Is(err, camera.ErrWebcamUnavailable) {
		return nil, fmt.Errorf("%w; pass a photo path instead", err)
	}
	if err != nil {
		return nil, err
	}
	return cam, nil
}

// outputPath picks the audio file name. The extension always matches the
// format: a missing one is added and a .wav/.mp3 mismatch is swapped.
func outputPath(path, mimeType string) string {
	ext := ".wav"
	if mimeType == "audio/mpeg" {
		ext = ".mp3"
	}
	if path == "" {
		return "description" + ext
	}

	switch current := strings.ToLower(filepath.Ext(path)); current {
	case "":
		return path + ext
	case ext:
		return path
	case ".wav", ".mp3":
		return strings.TrimSuffix(path, filepath.Ext(path)) + ext
	default:
		return path
	}
}
