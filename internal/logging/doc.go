// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout when it is a terminal, pipe or file, to the systemd
// journal when journald is reachable, and always to an in-memory ring buffer
// that backs the /api/logs/stream endpoint.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"camera":  "debug",
//			"api":     "warn",
//		},
//	})
//
// and obtain loggers per module:
//
//	logger := logging.GetLogger("capture")
//	logger.Info("Frame captured", "width", 1920, "height", 1080)
//
// Levels can be changed later with SetLevels; existing loggers follow.
//
// Journal entries carry SYSLOG_IDENTIFIER=qhynode and one upper-cased field
// per attribute:
//
//	journalctl -t qhynode MODULE=camera
//	journalctl -t qhynode -p err
//
// TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	camera = "debug"
//	api = "warn"
package logging
