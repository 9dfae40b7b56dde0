// Package logging provides structured logging for Gray Logic Telemetry.
//
// This package wraps Go's standard log/slog package so that every
// component logs with the same service and version fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("publisher").Warn("write failed", "bucket", "climate")
//
// Never log the InfluxDB token.
package logging
