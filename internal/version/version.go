// Package version records the SDK version reported in job diagnostics and by
// the `version` subcommand.
package version

// Version is overridable at build time:
//
//	go build -ldflags "-X github.com/MartinKlefas/runpod-go/internal/version.Version=1.2.3"
var Version = "0.3.0"
