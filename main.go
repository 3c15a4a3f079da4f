package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/qhynode/cmd"
	"github.com/smazurov/qhynode/internal/api"
	"github.com/smazurov/qhynode/internal/capture"
	"github.com/smazurov/qhynode/internal/config"
	"github.com/smazurov/qhynode/internal/events"
	"github.com/smazurov/qhynode/internal/led"
	"github.com/smazurov/qhynode/internal/logging"
	"github.com/smazurov/qhynode/internal/metrics/exporters"
	"github.com/smazurov/qhynode/internal/nats"
	"github.com/smazurov/qhynode/internal/systemd"
	"github.com/smazurov/qhynode/internal/usbwatch"
	"github.com/smazurov/qhynode/internal/version"
	"github.com/smazurov/qhynode/pkg/qhyccd"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
// Capture defaults live in the [capture] table and reload while running.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port           string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin     string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`
	CaptureTimeout string `help:"How long an API request waits for a capture (0 waits indefinitely)" default:"60s" toml:"server.capture_timeout" env:"SERVER_CAPTURE_TIMEOUT"`

	// SDK settings
	SDKLibraryPath  string `help:"QHYCCD SDK library path (default: sdk/<arch>/<lib> above the executable)" default:"" toml:"sdk.library_path" env:"SDK_LIBRARY_PATH"`
	SDKSearchLevels int    `help:"Directories above the executable to look for sdk/" default:"2" toml:"sdk.search_levels" env:"SDK_SEARCH_LEVELS"`
	SDKSimulate     bool   `help:"Use the built-in simulated camera instead of the SDK" default:"false" toml:"sdk.simulate" env:"SDK_SIMULATE"`

	// Frame store settings
	StoreEnabled bool   `help:"Keep captured frames on disk" default:"true" toml:"store.enabled" env:"STORE_ENABLED"`
	StoreDir     string `help:"Directory for captured frames" default:"captures" toml:"store.dir" env:"STORE_DIR"`

	// NATS settings
	NATSURL      string `help:"NATS server URL for capture events (empty disables)" default:"" toml:"nats.url" env:"NATS_URL"`
	NATSEmbedded bool   `help:"Run an embedded NATS server on loopback" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NATSPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesLEDControl bool   `help:"Enable LED control" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesLEDType    string `help:"LED that indicates capture activity (default: first available)" default:"" toml:"features.led_type" env:"FEATURES_LED_TYPE"`
	FeaturesUSBWatch   bool   `help:"Report QHYCCD cameras plugged in or removed" default:"true" toml:"features.usb_watch" env:"FEATURES_USB_WATCH"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture string `help:"Capture service logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingCamera  string `help:"Camera session logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingSDK     string `help:"SDK library logging level" default:"info" toml:"logging.sdk" env:"LOGGING_SDK"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingNATS    string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"capture": o.LoggingCapture,
			"camera":  o.LoggingCamera,
			"sdk":     o.LoggingSDK,
			"api":     o.LoggingAPI,
			"nats":    o.LoggingNATS,
		},
	}
}

// sdkSource picks the simulator or the lazily loaded SDK library.
func (o *Options) sdkSource(eventBus *events.Bus) capture.SDKSource {
	if o.SDKSimulate {
		return capture.NewSimulator()
	}
	path := o.SDKLibraryPath
	if path == "" {
		path = qhyccd.PathFor(o.SDKSearchLevels)
	}
	return capture.NewLibraryLoader(path,
		capture.WithLoaderBus(eventBus),
		capture.WithLoaderLogger(logging.GetLogger("sdk")))
}

func parseTimeout(value string, logger *slog.Logger) time.Duration {
	if value == "" || value == "0" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Invalid capture timeout, waiting indefinitely", "value", value, "error", err)
		return 0
	}
	return d
}

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		defaults := config.DefaultCaptureDefaults()
		if reloadable, err := config.LoadReloadable(opts.Config); err == nil {
			defaults = reloadable.Capture
		} else if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to read capture defaults", "error", err)
		}

		serviceOpts := []capture.ServiceOption{
			capture.WithBus(eventBus),
			capture.WithServiceLogger(logging.GetLogger("capture")),
			capture.WithDefaults(defaults),
		}

		var captureService *capture.Service
		var server *api.Server
		var ledIndicator *led.Indicator
		var natsServer *nats.Server
		var natsPublisher *nats.Publisher
		var watcher *config.Watcher[config.Reloadable]
		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			logger.Info("Starting "+version.String(), "simulate", opts.SDKSimulate)

			if opts.StoreEnabled {
				store, err := capture.NewFrameStore(opts.StoreDir)
				if err != nil {
					logger.Error("Failed to open frame store", "error", err)
					os.Exit(1)
				}
				serviceOpts = append(serviceOpts, capture.WithStore(store))
			}
			captureService = capture.NewService(opts.sdkSource(eventBus), serviceOpts...)

			watcher = config.NewConfigWatcher(opts.Config, config.LoadReloadable, logging.GetLogger("config"))
			watcher.OnReload(func(r config.Reloadable) {
				captureService.SetDefaults(r.Capture)
				logging.SetLevels(r.Logging.Level, r.Logging.Modules)
			})
			if err := watcher.Start(); err != nil {
				logger.Warn("Config hot reload disabled", "error", err)
			}

			apiOpts := &api.Options{
				AuthUsername:      opts.AuthUsername,
				AuthPassword:      opts.AuthPassword,
				CORSOrigin:        opts.CORSOrigin,
				CaptureTimeout:    parseTimeout(opts.CaptureTimeout, logger),
				Capture:           captureService,
				EventBus:          eventBus,
				PrometheusHandler: exporters.HTTPHandler(logging.GetLogger("metrics")),
			}

			if opts.FeaturesLEDControl {
				logger.Info("LED control enabled, initializing")
				ledController := led.New(logging.GetLogger("led"))
				apiOpts.LEDController = ledController
				ledIndicator = led.NewIndicator(ledController, eventBus, opts.FeaturesLEDType, logging.GetLogger("led"))
				ledIndicator.Start()
				apiOpts.LEDIndicator = ledIndicator.LEDType()
			}

			natsURL := opts.NATSURL
			if opts.NATSEmbedded {
				natsServer = nats.NewServer(nats.ServerOptions{
					Port:   opts.NATSPort,
					Logger: logging.GetLogger("nats"),
				})
				if err := natsServer.Start(); err != nil {
					logger.Error("Failed to start embedded NATS server", "error", err)
					natsServer = nil
				} else if natsURL == "" {
					natsURL = natsServer.ClientURL()
				}
			}
			if natsURL != "" {
				natsPublisher = nats.NewPublisher(natsURL, eventBus, logging.GetLogger("nats"))
				natsPublisher.OnCapture(captureService.Capture, apiOpts.CaptureTimeout)
				if err := natsPublisher.Start(); err != nil {
					logger.Warn("NATS unavailable, capture events stay local", "error", err)
				}
			}

			if opts.FeaturesUSBWatch {
				usbWatcher := usbwatch.NewWatcher(eventBus, logging.GetLogger("usb"))
				go func() {
					if err := usbWatcher.Run(ctx); err != nil {
						logger.Warn("USB hotplug monitoring unavailable", "error", err)
					}
				}()
			}

			server = api.NewServer(apiOpts)
			go notifier.RunWatchdog(ctx)
			notifier.Ready()
			notifier.Status("listening on " + opts.Port)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			cancel()

			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				if stopErr := server.Stop(shutdownCtx); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
				shutdownCancel()
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}
			if natsPublisher != nil {
				natsPublisher.Close()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
			if ledIndicator != nil {
				ledIndicator.Stop()
			}

			// Waits for a running capture, then unbinds the SDK
			if captureService != nil {
				if unloadErr := captureService.UnloadLibrary(); unloadErr != nil {
					logger.Warn("Error unloading SDK library", "error", unloadErr)
				}
			}
		})
	})

	cli.Root().Use = version.Name
	cli.Root().Version = version.String()
	cli.Root().AddCommand(
		cmd.CreateCaptureCmd(),
		cmd.CreateProbeCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(c *cobra.Command, _ []string) {
				c.Println(version.String())
			},
		},
	)

	cli.Run()
}
