package buildinfo

// These variables are intended to be set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/membergate/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/membergate/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/membergate/core/buildinfo.Date=2025-08-30T12:00:00Z'
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// Info is the JSON shape reported by health endpoints.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date,omitempty"`
}

// Current returns the linked build metadata.
func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

// String renders "version (commit)".
func (i Info) String() string {
	return i.Version + " (" + i.Commit + ")"
}
