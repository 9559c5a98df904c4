package gycodec

import (
	"os"
	"testing"

	"github.com/francistor/gy/core"
)

func TestMain(m *testing.M) {

	// Initialize the default configuration instance, which brings up the
	// logger, the Gy dictionary and the instrumentation server
	core.InitOcsConfigInstance("resources/searchRules.json", "testCodec", nil, true)

	os.Exit(m.Run())
}

// Parameters used by most of the tests in this package
var testCCRParams = CCRParams{
	SessionId:        "ocs.gy.client;1;1",
	OriginHost:       "client.gy.client",
	OriginRealm:      "gy.client",
	DestinationRealm: "gy.server",
	ServiceContextId: "gy@3gpp.org",
}
