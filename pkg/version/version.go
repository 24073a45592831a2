package version

var (
	// Version is the botpack release version (overridden via ldflags).
	Version = "0.1.0"
	// Commit is the build commit (set via ldflags during build)
	Commit = "unknown"
)
