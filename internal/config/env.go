package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// environment merges the .env file at path (if any) under the process
// environment. Empty process variables do not mask file values.
func environment(path string) (map[string]string, error) {
	vars := make(map[string]string)

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to open env file: %w", err)
		default:
			defer f.Close()
			fileVars, err := godotenv.Parse(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
			}
			for k, v := range fileVars {
				vars[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && v != "" {
			vars[k] = v
		}
	}
	return vars, nil
}
