// Package cmd holds the qhynode subcommands.
package cmd

import (
	"github.com/smazurov/qhynode/internal/capture"
	"github.com/smazurov/qhynode/internal/config"
	"github.com/smazurov/qhynode/internal/logging"
	"github.com/smazurov/qhynode/pkg/qhyccd"
	"github.com/spf13/cobra"
)

// sdkFlags select the SDK a subcommand talks to.
type sdkFlags struct {
	configFile   string
	libraryPath  string
	searchLevels int
	simulate     bool
	logJSON      bool
	logLevel     string
}

func (f *sdkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "config.toml", "Path to configuration file")
	cmd.Flags().StringVar(&f.libraryPath, "library", "", "QHYCCD SDK library path (default: sdk/<arch>/<lib> above the executable)")
	cmd.Flags().IntVar(&f.searchLevels, "search-levels", qhyccd.DefaultSearchLevels, "Directories above the executable to look for sdk/")
	cmd.Flags().BoolVar(&f.simulate, "simulate", false, "Use the built-in simulated camera")
	cmd.Flags().BoolVar(&f.logJSON, "log-json", false, "Log in JSON format")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Logging level (default: from config file)")
}

// initLogging sets up logging from the config file, then the flags.
func (f *sdkFlags) initLogging() {
	cfg := config.LoadLoggingConfig(f.configFile)
	if f.logLevel != "" {
		cfg.Level = f.logLevel
	}
	if f.logJSON {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}

// path returns the library path the flags resolve to.
func (f *sdkFlags) path() string {
	if f.libraryPath != "" {
		return f.libraryPath
	}
	return qhyccd.PathFor(f.searchLevels)
}

func (f *sdkFlags) source() capture.SDKSource {
	if f.simulate {
		return capture.NewSimulator()
	}
	return capture.NewLibraryLoader(f.path(), capture.WithLoaderLogger(logging.GetLogger("sdk")))
}
