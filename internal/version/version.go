// Package version carries build-time metadata injected via ldflags.
package version

// Set at build time, e.g.
//
//	go build -ldflags "-X .../internal/version.Version=1.4.0"
var (
	// Version is the release version.
	Version = ""
	// CommitSHA is the git commit the binary was built from.
	CommitSHA = ""
)

// String returns a human-readable version.
func String() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// DefaultGeneration derives the resource cache generation name from the
// build version, so every deployment rolls the cache without hand-editing a
// literal.
func DefaultGeneration() string {
	return "assets-" + String()
}
