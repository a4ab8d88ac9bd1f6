package buildinfo

import "runtime/debug"

// These variables are intended to be set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/citybot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/citybot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/citybot/core/buildinfo.Date=2025-08-30T12:00:00Z'
//
// Default values are useful for local dev.
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// Resolve fills Commit and Date from the embedded VCS stamp when ldflags left the defaults.
func Resolve() (version, commit, date string) {
	version, commit, date = Version, Commit, Date
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "local" && len(s.Value) >= 7 {
				commit = s.Value[:7]
			}
		case "vcs.time":
			if date == "" {
				date = s.Value
			}
		}
	}
	return
}
