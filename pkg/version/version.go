package version

import (
	"runtime/debug"
	"strings"
)

// Set at build time with -ldflags, e.g.
// -X github.com/oddgeir/bedrockusage/pkg/version.Version=vX.Y.Z
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// String returns "version+commit", with commit taken from ldflags or
// the embedded VCS info.
func String() string {
	version := strings.TrimSpace(Version)
	if version == "" {
		version = "dev"
	}
	commit, _ := buildMeta()
	if commit == "" {
		return version
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return version + "+" + commit
}

// Detailed returns the multi-line version banner for a component.
func Detailed(component string) string {
	if strings.TrimSpace(component) == "" {
		component = "bua"
	}
	out := component + " " + String()
	if _, date := buildMeta(); date != "" {
		out += "\nBuilt: " + date
	}
	return out
}

func buildMeta() (commit, date string) {
	commit = strings.TrimSpace(Commit)
	date = strings.TrimSpace(Date)
	if commit != "" && date != "" {
		return commit, date
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, date
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "" {
				commit = strings.TrimSpace(s.Value)
			}
		case "vcs.time":
			if date == "" {
				date = strings.TrimSpace(s.Value)
			}
		}
	}
	return commit, date
}
