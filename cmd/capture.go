package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/qhynode/internal/capture"
	"github.com/smazurov/qhynode/internal/config"
	"github.com/smazurov/qhynode/internal/logging"
	"github.com/spf13/cobra"
)

type captureFlags struct {
	sdkFlags
	exposureMs  int64
	exposureUs  float64
	gain        float64
	offset      float64
	width       uint32
	height      uint32
	deviceIndex uint32
	outDir      string
	png         bool
	timeout     time.Duration
}

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd() *cobra.Command {
	var flags captureFlags

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a single frame",
		Long: `Captures one frame and prints its metadata. Settings not given on the command line ` +
			`come from the [capture] table of the config file. With --out the raw frame and its ` +
			`TOML metadata are written to the directory, plus a PNG preview with --png.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.initLogging()
			cmd.SilenceUsage = true

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if flags.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, flags.timeout)
				defer cancel()
			}

			return runCapture(ctx, cmd.OutOrStdout(), &flags, captureOptions(cmd, &flags), flags.source())
		},
	}

	flags.register(cmd)
	cmd.Flags().Int64Var(&flags.exposureMs, "exposure-ms", 1000, "Exposure in milliseconds")
	cmd.Flags().Float64Var(&flags.exposureUs, "exposure-us", 0, "Exposure in microseconds, wins over --exposure-ms when positive")
	cmd.Flags().Float64Var(&flags.gain, "gain", -1, "Sensor gain, negative leaves it untouched")
	cmd.Flags().Float64Var(&flags.offset, "offset", -1, "Sensor offset, negative leaves it untouched")
	cmd.Flags().Uint32Var(&flags.width, "width", 1920, "ROI width")
	cmd.Flags().Uint32Var(&flags.height, "height", 1080, "ROI height")
	cmd.Flags().Uint32Var(&flags.deviceIndex, "device-index", 0, "Camera index")
	cmd.Flags().StringVarP(&flags.outDir, "out", "o", "", "Directory to save the frame in")
	cmd.Flags().BoolVar(&flags.png, "png", false, "Also write a PNG preview (requires --out)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Give up waiting after this long")

	return cmd
}

// captureOptions maps the flags the user set onto capture options. Unset
// flags fall through to the config file defaults.
func captureOptions(cmd *cobra.Command, f *captureFlags) capture.Options {
	var opts capture.Options
	changed := cmd.Flags().Changed
	if changed("exposure-ms") {
		opts.ExposureMs = &f.exposureMs
	}
	if changed("exposure-us") {
		opts.ExposureUs = &f.exposureUs
	}
	if changed("gain") {
		opts.Gain = &f.gain
	}
	if changed("offset") {
		opts.Offset = &f.offset
	}
	if changed("width") {
		opts.Width = &f.width
	}
	if changed("height") {
		opts.Height = &f.height
	}
	if changed("device-index") {
		opts.DeviceIndex = &f.deviceIndex
	}
	return opts
}

func runCapture(ctx context.Context, w io.Writer, f *captureFlags, opts capture.Options, source capture.SDKSource) error {
	logger := logging.GetLogger("capture")

	defaults := config.DefaultCaptureDefaults()
	if reloadable, err := config.LoadReloadable(f.configFile); err == nil {
		defaults = reloadable.Capture
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to read capture defaults", "config", f.configFile, "error", err)
	}

	serviceOpts := []capture.ServiceOption{
		capture.WithDefaults(defaults),
		capture.WithServiceLogger(logger),
	}
	if f.outDir != "" {
		store, err := capture.NewFrameStore(f.outDir)
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, capture.WithStore(store))
	}

	svc := capture.NewService(source, serviceOpts...)
	defer func() {
		if err := svc.UnloadLibrary(); err != nil {
			logger.Warn("Error unloading SDK library", "error", err)
		}
	}()

	res, err := svc.Capture(ctx, opts)
	if err != nil {
		return fmt.Errorf("%s (%s)", capture.Message(err), capture.Kind(err))
	}

	fmt.Fprintf(w, "id:        %s\n", res.ID)
	fmt.Fprintf(w, "camera:    %s\n", res.CameraID)
	fmt.Fprintf(w, "geometry:  %dx%d, %d bpp, %d channel(s)\n", res.Width, res.Height, res.BPP, res.Channels)
	fmt.Fprintf(w, "bytes:     %d\n", len(res.Data))
	fmt.Fprintf(w, "exposure:  %s\n", time.Duration(res.ExposureUs*float64(time.Microsecond)))
	fmt.Fprintf(w, "duration:  %s\n", res.Duration.Round(time.Millisecond))

	if f.outDir == "" {
		return nil
	}
	if !res.Stored {
		return fmt.Errorf("frame captured but could not be saved to %s", f.outDir)
	}
	fmt.Fprintf(w, "saved:     %s\n", filepath.Join(f.outDir, res.ID+".raw"))

	if f.png {
		rec, err := svc.Store().Get(res.ID)
		if err != nil {
			return err
		}
		pngPath := filepath.Join(f.outDir, res.ID+".png")
		if err := writePNGFile(pngPath, rec, res.Data); err != nil {
			return err
		}
		fmt.Fprintf(w, "preview:   %s\n", pngPath)
	}
	return nil
}

func writePNGFile(path string, rec capture.Record, data []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create preview: %w", err)
	}
	if err := capture.WritePNG(file, rec, data); err != nil {
		file.Close()
		return fmt.Errorf("failed to render preview: %w", err)
	}
	return file.Close()
}
