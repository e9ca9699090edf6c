package config

import (
	"os"
	"strings"
	"time"
)

// Getenv retrieves the value of an environment variable, preferring the
// provided env map over the process environment. The map form exists so
// per-request environments (and tests) can shadow process-level settings.
func Getenv(env map[string]string, name, def string) string {
	if env != nil {
		if v, ok := env[name]; ok {
			return v
		}
	}
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

// IsEnvTruthy checks if an environment variable is set to a standard truthy
// value: "true", "1", or "yes" (case-insensitive).
func IsEnvTruthy(env map[string]string, name, def string) bool {
	switch strings.ToLower(Getenv(env, name, def)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// IsEnvExtendedTruthy checks if an environment variable is set to an extended
// truthy value: "true", "1", "yes", "y", or "on" (case-insensitive). Used for
// operational kill switches where terse values are common.
func IsEnvExtendedTruthy(env map[string]string, name, def string) bool {
	switch strings.ToLower(Getenv(env, name, def)) {
	case "true", "1", "yes", "y", "on":
		return true
	}
	return false
}

// IsEnvSSLVerify checks an SSL verification setting with secure defaults:
// verification stays enabled unless the variable is explicitly set to
// "false", "0", or "no".
func IsEnvSSLVerify(env map[string]string, name string) bool {
	switch strings.ToLower(Getenv(env, name, "true")) {
	case "false", "0", "no":
		return false
	}
	return true
}

// GetenvDuration parses an environment variable as a Go duration. Unset or
// unparseable values return the default.
func GetenvDuration(env map[string]string, name string, def time.Duration) time.Duration {
	raw := Getenv(env, name, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

// ParseCustomHeaders parses comma-separated key=value pairs into a header map.
// Malformed pairs (no "=", empty key) are skipped. Returns nil for empty input
// so callers can distinguish "unset" from "set but empty".
func ParseCustomHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}

	if len(headers) == 0 {
		return nil
	}
	return headers
}
