package core

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// newDiscardLogger returns a *log.Logger writing to io.Discard, the default
// every package-level logger in this module starts from until a host wires
// one in via its SetXLogger setter.
func newDiscardLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}
