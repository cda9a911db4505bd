// Package logging provides structured logging for lwm2md.
//
// It wraps log/slog with JSON or text output, level filtering and default
// "service" and "version" attributes on every record.
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
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("starting service", "port", 8080)
//	registry.SetLogger(logger.Component("registration"))
//
// Never log secrets, tokens or passwords.
package logging
