package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"pkt.systems/tabtidy/internal/version"
)

func main() {
	var manifestPath string
	flag.StringVar(&manifestPath, "manifest", "", "path to the bridge extension manifest.json to stamp")
	flag.Parse()

	ver := strings.TrimSpace(version.Current())
	if ver == "" {
		ver = "v0.0.0-unknown"
	}

	if manifestPath != "" {
		if err := updateManifestVersion(manifestPath, ver); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}

	fmt.Fprintln(os.Stdout, ver)
}

// manifestVersion reduces a module version to the dotted numeric form
// extension manifests accept: "v1.2.3-rc.1+dirty" becomes "1.2.3".
func manifestVersion(ver string) string {
	ver = strings.TrimPrefix(strings.TrimSpace(ver), "v")
	if i := strings.IndexAny(ver, "-+"); i != -1 {
		ver = ver[:i]
	}
	parts := strings.Split(ver, ".")
	if len(parts) > 4 {
		parts = parts[:4]
	}
	for _, part := range parts {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return "0.0.0"
		}
	}
	return strings.Join(parts, ".")
}

func updateManifestVersion(path string, ver string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat manifest: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	lines := strings.Split(string(data), "\n")
	replaced := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, `"version"`) {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon == -1 {
			return fmt.Errorf("manifest version line missing colon")
		}
		firstQuote := strings.IndexByte(line[colon:], '"')
		if firstQuote == -1 {
			return fmt.Errorf("manifest version line missing opening quote")
		}
		firstQuote += colon
		secondQuote := strings.IndexByte(line[firstQuote+1:], '"')
		if secondQuote == -1 {
			return fmt.Errorf("manifest version line missing closing quote")
		}
		secondQuote += firstQuote + 1
		lines[i] = line[:firstQuote+1] + manifestVersion(ver) + line[secondQuote:]
		replaced++
	}
	if replaced == 0 {
		return fmt.Errorf("manifest version not found in %s", path)
	}
	if replaced > 1 {
		return fmt.Errorf("manifest version appears %d times in %s", replaced, path)
	}
	out := strings.Join(lines, "\n")
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
