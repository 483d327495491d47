package version

// Version is overridden at build time with -ldflags "-X keygate/internal/version.Version=..."
var Version = "dev"
