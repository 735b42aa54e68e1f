// Package config loads, normalizes, and validates the TOML configuration
// shared by the replay daemon and CLI.
//
// Load applies defaults for every omitted field, expands ~ in path values,
// and fails fast with a descriptive error when a value cannot work. Derived
// locations (control socket, clip catalog, pid file) hang off the log
// directory so a single [paths] section pins down the whole on-disk layout.
package config
