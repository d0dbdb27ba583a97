package config

// DefaultIgnoreArgs are the parameter-name patterns redacted when no
// explicit list is configured.
var DefaultIgnoreArgs = []string{"password", "token", "secret", "key", "auth"}

// DefaultConfig returns the built-in defaults. Mode is intentionally left
// empty: retention mode is an explicit choice the caller must make, not
// something the library guesses.
func DefaultConfig() *Config {
	return &Config{
		Path:       "./snapcap",
		Retention:  2,
		IgnoreArgs: append([]string(nil), DefaultIgnoreArgs...),
		Backend:    "gob",
	}
}
