// Package config loads and validates the snapcap configuration.
//
// Configuration is resolved in three layers: built-in defaults, an
// optional config file (JSON or YAML, found via a search list), and
// SNAPCAP_* environment variables, which always win. The effective
// Config is immutable once constructed and is handed to the interceptor
// factory by reference; nothing on the capture hot path performs an
// ambient config lookup.
package config
