package render

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed assets/index.html assets/style.css assets/script.js
var defaultAssets embed.FS

// WriteDefaultAssets copies the bundled templates into dir. Existing files
// are left untouched. It returns the names of the files it wrote.
func WriteDefaultAssets(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create template directory: %w", err)
	}

	var written []string
	for _, name := range Assets {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}

		data, err := defaultAssets.ReadFile("assets/" + name)
		if err != nil {
			return written, fmt.Errorf("failed to read bundled asset %s: %w", name, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, name)
	}

	return written, nil
}
