package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// CaptureDefaults are the capture settings that can change while the server
// runs. Negative gain or offset leaves the camera's own setting untouched.
type CaptureDefaults struct {
	ExposureMs  int64   `toml:"exposure_ms"`
	ExposureUs  float64 `toml:"exposure_us"`
	Gain        float64 `toml:"gain"`
	Offset      float64 `toml:"offset"`
	Width       uint32  `toml:"width"`
	Height      uint32  `toml:"height"`
	DeviceIndex uint32  `toml:"device_index"`
}

// DefaultCaptureDefaults mirrors the built-in flag defaults.
func DefaultCaptureDefaults() CaptureDefaults {
	return CaptureDefaults{
		ExposureMs: 1000,
		Gain:       -1,
		Offset:     -1,
		Width:      1920,
		Height:     1080,
	}
}

// Reloadable is the subset of the config file applied without a restart.
type Reloadable struct {
	Capture CaptureDefaults
	Logging LoggingReload
}

// LoggingReload carries log levels from the [logging] table.
type LoggingReload struct {
	Level   string
	Modules map[string]string
}

// LoadReloadable reads the [capture] and [logging] tables from path. Keys
// missing from the file keep their defaults.
func LoadReloadable(path string) (Reloadable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reloadable{}, err
	}

	raw := struct {
		Capture CaptureDefaults `toml:"capture"`
	}{Capture: DefaultCaptureDefaults()}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Reloadable{}, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	logCfg := LoadLoggingConfig(path)
	return Reloadable{
		Capture: raw.Capture,
		Logging: LoggingReload{Level: logCfg.Level, Modules: logCfg.Modules},
	}, nil
}
