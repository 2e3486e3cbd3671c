// Package config loads and validates cardloom's TOML configuration. Paths
// are tilde-expanded, secrets may reference environment variables with
// ${VAR} syntax, and EnsureDirectories bootstraps the on-disk layout.
package config
