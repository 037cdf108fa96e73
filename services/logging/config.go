package logging

import (
	"fmt"
	"strings"
)

type Config struct {
	// STDERR, STDOUT or the path of a file to append to.
	File  string `toml:"file"`
	Level string `toml:"level"`
	// logfmt-like console output or json.
	Encoding string `toml:"encoding"`
}

func NewConfig() Config {
	return Config{
		File:     "STDERR",
		Level:    "INFO",
		Encoding: "console",
	}
}

func (c Config) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Encoding) {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log encoding %q", c.Encoding)
	}
	return nil
}
