// unit-uploader - uploads files tagged with an organizational unit and
// notifies a completion webhook.
package main

import (
	"os"

	"github.com/indextec/unit-uploader/internal/cli"
	"github.com/indextec/unit-uploader/internal/version"
)

// Set by ldflags: -X main.Version=... -X main.BuildTime=...
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
