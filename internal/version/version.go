// Package version reports the build identity of the tabtidy binary.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/tabtidy"

// buildVersion is set via -ldflags "-X pkt.systems/tabtidy/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running build.
type Info struct {
	Module   string `json:"module"`
	Version  string `json:"version"`
	Revision string `json:"revision,omitempty"`
	Time     string `json:"time,omitempty"`
	Dirty    bool   `json:"dirty,omitempty"`
}

// String renders "module version".
func (i Info) String() string {
	return fmt.Sprintf("%s %s", i.Module, i.Version)
}

// Get returns the build identity from ldflags or embedded build info.
func Get() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

// Current returns the best available version string without a dirty suffix.
func Current() string {
	return strings.TrimSuffix(Get().Version, "+dirty")
}

func fromBuildInfo(info *debug.BuildInfo, override string) Info {
	out := Info{Module: defaultModule, Version: "v0.0.0-unknown"}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		vcs := readVCS(info)
		out.Revision, out.Time, out.Dirty = vcs.revision, vcs.time, vcs.modified
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			out.Version = v
		} else if v := vcs.pseudo(); v != "" {
			out.Version = v
		}
	}
	if v := strings.TrimSpace(override); v != "" {
		out.Version = v
	}
	return out
}

type vcsSettings struct {
	revision string
	time     string
	modified bool
}

func readVCS(info *debug.BuildInfo) vcsSettings {
	var out vcsSettings
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			out.time = setting.Value
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

// pseudo builds a Go pseudo-version from vcs settings.
func (v vcsSettings) pseudo() string {
	if v.revision == "" || v.time == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, v.time)
	if err != nil {
		return ""
	}
	rev := v.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	out := "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + rev
	if v.modified {
		out += "+dirty"
	}
	return out
}
