package main

// Build information, set via ldflags at build time:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%FT%TZ)"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// userAgent identifies the service in outgoing HTTP requests.
func userAgent() string {
	return "zwfm-capture/" + Version
}
