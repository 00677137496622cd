package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv populates the process environment from a dotenv file.
// Variables that are already set win. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = DefaultEnvFilename
	}

	path = filepath.Clean(path)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}

	return nil
}
