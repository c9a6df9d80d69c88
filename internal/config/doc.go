// Package config loads, normalizes, and validates Foundry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OLLAMA_HOST. The Config type centralizes every knob the pipeline services
// and CLI need; it is constructed once and passed into component
// constructors rather than consulted through globals.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
