// Package config loads, normalizes, and validates harvest configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// HARVEST_BASE_URL. The Config type centralizes every knob the CLI and the
// harvesting core need: where the snapshot archive lives, how to reach the
// data source, how aggressively to resolve placeholders, and how to render
// exports.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical formats, and clear validation errors.
package config
