package chromebridge

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed extension/manifest.json extension/worker.js
var extensionFS embed.FS

// ExtensionFiles lists the files of the bridge extension.
func ExtensionFiles() []string {
	return []string{"manifest.json", "worker.js"}
}

// ExtensionFile returns the content of one bridge extension file.
func ExtensionFile(name string) ([]byte, error) {
	return fs.ReadFile(extensionFS, "extension/"+name)
}

// WriteExtension writes the unpacked bridge extension into dir.
func WriteExtension(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, name := range ExtensionFiles() {
		data, err := ExtensionFile(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
