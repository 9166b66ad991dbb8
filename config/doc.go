// Package config loads, normalizes and validates smartcrf settings.
//
// Settings come from an optional TOML file (by default
// ~/.config/smartcrf/config.toml). Missing keys keep the values returned by
// Default, user paths are expanded and the result is validated before it is
// handed to the rest of the program. Command-line flags are applied on top by
// the caller.
package config
