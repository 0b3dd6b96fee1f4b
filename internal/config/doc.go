// Package config provides 12-factor configuration management for ptybridge.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Session: per-session worker tuning (debounce, chunk size, queue depths)
//   - Server: HTTP daemon settings (host, port)
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting for the HTTP surface
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PTYBRIDGE_DRAIN_GRACE_MS, PTYBRIDGE_READ_CHUNK
//   - PTYBRIDGE_OUTPUT_DEPTH, PTYBRIDGE_WRITE_DEPTH
//   - PTYBRIDGE_HOST, PTYBRIDGE_PORT
//   - PTYBRIDGE_LOG_LEVEL, PTYBRIDGE_LOG_DEV
//   - PTYBRIDGE_RATE_LIMIT_RPS, PTYBRIDGE_RATE_LIMIT_BURST, PTYBRIDGE_RATE_LIMIT_ENABLED
package config
