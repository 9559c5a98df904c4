package httphandler

import (
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/francistor/gy/core"
	"github.com/francistor/gy/gycodec"
	"github.com/francistor/gy/ocs"
)

// Initialization
var bootstrapFile = "resources/searchRules.json"
var instanceName = "testServer"

// Initializer of the test suite.
func TestMain(m *testing.M) {
	core.InitHttpHandlerConfigInstance(bootstrapFile, instanceName, nil, true)

	// Needed to generate answers with the origin avps of the ocs server
	core.InitOcsConfigInstance(bootstrapFile, instanceName, nil, false)

	// Execute the tests and exit
	os.Exit(m.Run())
}

func TestCreditControlExchange(t *testing.T) {

	handler := NewHttpHandler(instanceName, ocs.NewCreditControlHandler(core.GetOcsConfig()).Handle)
	defer handler.Close()

	time.Sleep(200 * time.Millisecond)

	client := NewHttp2Client(2)

	ccr, err := gycodec.BuildCCRInitial(gycodec.CCRParams{
		SessionId:        "ocs.gy.client;500;1",
		OriginHost:       "client.gy.client",
		OriginRealm:      "gy.client",
		DestinationRealm: "gy.server",
		ServiceContextId: "gy@3gpp.org",
	}, "41780000003")
	if err != nil {
		t.Fatalf("error building CCR: %v", err)
	}

	cca, err := HttpDiameterRequest(client, "https://127.0.0.1:8080/diameterRequest", ccr)
	if err != nil {
		t.Fatalf("error in http diameter request: %s", err)
	}

	if cca.GetResultCode() != core.DIAMETER_SUCCESS {
		t.Errorf("result code is %d", cca.GetResultCode())
	}
	if grantedTime := cca.GetIntAVP("Granted-Service-Unit.CC-Time"); grantedTime != 3600 {
		t.Errorf("granted cc time is %d", grantedTime)
	}
	if originHost := cca.GetStringAVP("Origin-Host"); originHost != "ocs.gy.server" {
		t.Errorf("answer origin host is %s", originHost)
	}

	// A request that is not json at all is rejected before reaching the handler
	httpResp, err := client.Post("https://127.0.0.1:8080/diameterRequest", "application/json", strings.NewReader("this is not json"))
	if err != nil {
		t.Fatalf("error posting request: %s", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusBadRequest {
		t.Errorf("got status code %d", httpResp.StatusCode)
	}
}
