// Package logging provides a structured logging system for atlauth built on
// Go's standard slog package.
//
// All log entries carry a subsystem identifier for categorization and
// filtering. Subsystems in use include:
//
//   - **Config**: Configuration loading, validation, and live reload
//   - **Instance**: Deployment topology detection
//   - **Credentials**: Credential resolution and header admission
//   - **Session**: Session construction and cache lifecycle
//   - **OAuth**: Authorization flow, token exchange, and refresh
//   - **Retry**: Retry/backoff decisions for outbound calls
//
// # Usage
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("Config", "loaded configuration from %s", path)
//	logging.Error("OAuth", err, "token refresh failed")
//
// SECURITY: callers must never pass credential values (tokens, secrets,
// passwords) to any logging function. Only credential kinds, instance kinds,
// URLs, and timestamps may appear in log output.
package logging
