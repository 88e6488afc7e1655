package version

// Set at build time via -ldflags "-X ...".
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
