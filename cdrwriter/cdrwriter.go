package cdrwriter

import (
	"github.com/francistor/gy/core"
)

// Generates the text representation of a Diameter message for a CDR sink
type CDRFormatter interface {
	GetCDRString(dm *core.DiameterMessage) string
}

// A sink where the messages for terminated sessions are written
type CDRWriter interface {
	WriteCDR(dm *core.DiameterMessage)
	Close()
}
