// Package telemetry provides the package-level logger used across icad
// for build progress and collapse statistics.
package telemetry

import (
	"io"
	"log"
	"os"
)

// Logger is the shared destination for build diagnostics. Replace it (or
// its output via SetOutput) to redirect or silence logging; a nil
// destination is never installed, so callers can log unconditionally.
var Logger = log.New(os.Stderr, "icad: ", log.LstdFlags)

// SetOutput redirects Logger's output, e.g. to io.Discard to silence it.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}
