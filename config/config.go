// Package config parses bearvm's optional device-wiring file: a declarative
// TOML document naming which device kind attaches at which id, and any file
// redirection path to use in place of the host's own stdin/stdout.
package config

import "github.com/BurntSushi/toml"

// Device is one `[[device]]` entry in a wiring file.
type Device struct {
	ID   int    `toml:"id"`
	Kind string `toml:"kind"` // "stdin" or "stdout"
	Path string `toml:"path"` // empty means the host's own stream
}

// Config is the full device-wiring document for a single bearvm run.
type Config struct {
	Device []Device `toml:"device"`
}

// Load parses a TOML device-wiring file from disk.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default is the wiring used when no config file is given: a stdin-like
// device at id 0 and a stdout-like device at id 1, both bound to the host's
// own streams.
func Default() Config {
	return Config{Device: []Device{
		{ID: 0, Kind: "stdin"},
		{ID: 1, Kind: "stdout"},
	}}
}
