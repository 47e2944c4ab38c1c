package version

// Set at build time with -ldflags "-X github.com/alexander-drabik/Yapko/pkg/version.Version=..."
var (
	Version   = "0.3.0-dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)
