// Package logging provides structured logging with per-module log level
// configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// All records additionally land in an in-memory ring buffer that backs the
// /api/logs endpoint.
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"stream": "debug",   // Per-module overrides
//			"api":    "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("stream")
//	logger.Info("Starting up", "port", 8080)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("stream").With("stream", index)
//	logger.Info("Stream connected")  // Includes stream in all logs
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t rtsp2web              # All rtsp2web logs
//	journalctl -t rtsp2web -f           # Follow live
//	journalctl -t rtsp2web -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t rtsp2web MODULE=stream
//	journalctl -t rtsp2web STREAM=0
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	stream = "debug"
//	api = "warn"
package logging
