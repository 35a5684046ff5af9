// Package version reports which busrisk build produced a run.
package version

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Release builds stamp these with
// go build -ldflags "-X busrisk/internal/version.Commit=$(git rev-parse HEAD) -X busrisk/internal/version.BuildDate=$(date -u +%FT%TZ)"
var (
	Version   = "0.3.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var stampOnce sync.Once

// stamp fills Commit and BuildDate from the VCS settings go build embeds
// when ldflags left them unset
func stamp() {
	stampOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && Commit == "unknown":
				Commit = s.Value
			case s.Key == "vcs.time" && BuildDate == "unknown":
				BuildDate = s.Value
			}
		}
	})
}

// Info is the one-line form printed above analyze and summary output
func Info() string {
	stamp()
	if len(Commit) > 7 && Commit != "unknown" {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full is what `busrisk version` prints
func Full() string {
	stamp()
	return "busrisk version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}

// UserAgent names the tool in run manifests
func UserAgent() string {
	return "busrisk/" + Version
}
