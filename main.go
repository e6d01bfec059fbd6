package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/rtsp2web/cmd"
	"github.com/smazurov/rtsp2web/internal/api"
	"github.com/smazurov/rtsp2web/internal/config"
	"github.com/smazurov/rtsp2web/internal/decoder"
	"github.com/smazurov/rtsp2web/internal/events"
	"github.com/smazurov/rtsp2web/internal/logging"
	"github.com/smazurov/rtsp2web/internal/metrics"
	"github.com/smazurov/rtsp2web/internal/stream"
)

const shutdownGrace = 10 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8080" toml:"server.port" env:"SERVER_PORT"`

	// Streams settings
	StreamsFile string `help:"Stream definitions file" default:"streams.toml" toml:"streams.file" env:"STREAMS_FILE"`

	// Capture settings
	FPS         int    `help:"Frames per second grabbed from each source" name:"fps" default:"5" toml:"capture.fps" env:"CAPTURE_FPS"`
	JPEGQuality int    `help:"JPEG quality (1-100)" name:"jpeg-quality" default:"80" toml:"capture.jpeg_quality" env:"CAPTURE_JPEG_QUALITY"`
	MaxWidth    int    `help:"Maximum frame width, larger frames are scaled down" default:"1280" toml:"capture.max_width" env:"CAPTURE_MAX_WIDTH"`
	Transport   string `help:"RTSP transport (tcp, udp)" default:"tcp" toml:"capture.transport" env:"CAPTURE_TRANSPORT"`

	// Lifecycle settings
	MaxRetries       int    `help:"Reconnect attempts before cooldown" default:"3" toml:"lifecycle.max_retries" env:"LIFECYCLE_MAX_RETRIES"`
	RetryInterval    string `help:"Wait between reconnect attempts" default:"2s" toml:"lifecycle.retry_interval" env:"LIFECYCLE_RETRY_INTERVAL"`
	ReconnectTimeout string `help:"Per-read timeout before a source counts as stalled" default:"10s" toml:"lifecycle.reconnect_timeout" env:"LIFECYCLE_RECONNECT_TIMEOUT"`
	CooldownInterval string `help:"Parked wait after retries are exhausted" default:"60s" toml:"lifecycle.cooldown_interval" env:"LIFECYCLE_COOLDOWN_INTERVAL"`
	ErrorThreshold   int    `help:"Consecutive failures before the stream reports error" default:"5" toml:"lifecycle.error_threshold" env:"LIFECYCLE_ERROR_THRESHOLD"`
	IdleTimeout      string `help:"Idle streams are parked after this long without readers (0 disables)" default:"60s" toml:"lifecycle.idle_timeout" env:"LIFECYCLE_IDLE_TIMEOUT"`
	SweepInterval    string `help:"How often the reaper checks for idle streams" default:"10s" toml:"lifecycle.sweep_interval" env:"LIFECYCLE_SWEEP_INTERVAL"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Metrics settings
	MetricsEnabled bool `help:"Expose Prometheus metrics at /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingStream  string `help:"Stream lifecycle logging level" default:"info" toml:"logging.stream" env:"LOGGING_STREAM"`
	LoggingDecoder string `help:"Decoder logging level" default:"info" toml:"logging.decoder" env:"LOGGING_DECODER"`
	LoggingFFmpeg  string `help:"ffmpeg stderr logging level" name:"logging-ffmpeg" default:"warn" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI     string `help:"API logging level" name:"logging-api" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" name:"logging-http" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

// duration parses s, falling back when it is empty or malformed.
func duration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}

func main() {
	// Declared before the closure so LoadConfig can inspect which flags the
	// CLI actually set; the closure only runs inside cli.Run().
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"stream":  opts.LoggingStream,
				"decoder": opts.LoggingDecoder,
				"ffmpeg":  opts.LoggingFFmpeg,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
			},
		})

		logger := logging.GetLogger("main")

		specs, err := config.LoadStreams(opts.StreamsFile)
		if err != nil {
			logger.Error("Failed to load streams file", "path", opts.StreamsFile, "error", err)
			os.Exit(1)
		}
		logger.Info("Loaded stream definitions", "path", opts.StreamsFile, "streams", len(specs))

		eventBus := events.New()

		var collector *metrics.Collector
		if opts.MetricsEnabled {
			collector = metrics.NewCollector()
			collector.Observe(eventBus)
		}

		dec := decoder.NewFFmpeg(decoder.FFmpegOptions{
			FPS:       opts.FPS,
			MaxWidth:  opts.MaxWidth,
			Quality:   opts.JPEGQuality,
			Transport: opts.Transport,
		}, logging.GetLogger("decoder"), logging.GetLogger("ffmpeg"))

		manager := stream.NewManager(specs, stream.Options{
			FPS:              opts.FPS,
			MaxRetries:       opts.MaxRetries,
			RetryInterval:    duration(opts.RetryInterval, 2*time.Second),
			ReconnectTimeout: duration(opts.ReconnectTimeout, 10*time.Second),
			CooldownInterval: duration(opts.CooldownInterval, time.Minute),
			ErrorThreshold:   opts.ErrorThreshold,
			IdleTimeout:      duration(opts.IdleTimeout, time.Minute),
			SweepInterval:    duration(opts.SweepInterval, 10*time.Second),
		}, dec, nil, eventBus, logging.GetLogger("stream"))

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			FPS:          opts.FPS,
			Service:      manager,
		}
		if collector != nil {
			apiOpts.PrometheusHandler = collector.Handler()
		}
		server := api.NewServer(apiOpts)

		// The stream set is fixed for the life of the process; the watcher
		// only tells the operator a restart is needed.
		watcher := config.NewWatcher(opts.StreamsFile, config.LoadStreams, logging.GetLogger("config"))
		watcher.OnChange(func(fresh []config.StreamSpec) {
			logger.Warn("Streams file changed on disk, restart to apply", "path", opts.StreamsFile, "streams", len(fresh))
		})

		hooks.OnStart(func() {
			manager.Start(context.Background())

			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Failed to watch streams file", "error", watchErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()

			if stopErr := server.Stop(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}

			if stopErr := manager.Shutdown(ctx); stopErr != nil {
				logger.Error("Error stopping stream manager", "error", stopErr)
			}

			if collector != nil {
				collector.Close()
			}
		})
	})

	cli.Root().Use = "rtsp2web"
	cli.Root().AddCommand(cmd.CreateValidateCmd())
	cli.Root().AddCommand(cmd.CreateSnapshotCmd())

	cli.Run()
}
