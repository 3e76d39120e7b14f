// Package config loads, normalizes, and validates buzzbatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and derives values that depend on the host
// such as the CPU count and the memory budget. The Config type centralizes
// every knob the batch job and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
