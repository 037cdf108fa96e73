package load

import (
	"errors"
	"path/filepath"
)

type Config struct {
	Enabled bool `toml:"enabled"`
	// Directory holding action definitions as .yaml, .yml or .json files.
	Dir string `toml:"dir"`
}

func NewConfig() Config {
	return Config{
		Enabled: false,
		Dir:     "/etc/rundeck-action/actions",
	}
}

// Validate verifies that the directory specified is an absolute path.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	// Verify that the path is absolute
	if !filepath.IsAbs(c.Dir) {
		return errors.New("dir must be an absolute path")
	}

	return nil
}
