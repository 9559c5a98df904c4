package gycodec

import (
	"errors"
	"testing"

	"github.com/francistor/gy/core"
)

func TestBuildCCRInitial(t *testing.T) {

	ccr, err := BuildCCRInitial(testCCRParams, "41780000001")
	if err != nil {
		t.Fatalf("error building initial CCR: %v", err)
	}

	if !ccr.IsRequest {
		t.Errorf("built CCR is not a request")
	}
	if ccr.ApplicationId != core.GY_APPLICATION_ID {
		t.Errorf("application id is %d", ccr.ApplicationId)
	}
	if ccr.CommandCode != core.CREDIT_CONTROL_COMMAND {
		t.Errorf("command code is %d", ccr.CommandCode)
	}

	// AVPs come in fixed order
	expectedOrder := []string{
		"Session-Id",
		"Origin-Host",
		"Origin-Realm",
		"Destination-Realm",
		"Auth-Application-Id",
		"CC-Request-Type",
		"CC-Request-Number",
		"Service-Context-Id",
		"Subscription-Id",
	}
	if len(ccr.AVPs) != len(expectedOrder) {
		t.Fatalf("got %d avps", len(ccr.AVPs))
	}
	for i, name := range expectedOrder {
		if ccr.AVPs[i].Name != name {
			t.Errorf("avp in position %d is %s instead of %s", i, ccr.AVPs[i].Name, name)
		}
	}

	if sessionId := ccr.GetStringAVP("Session-Id"); sessionId != "ocs.gy.client;1;1" {
		t.Errorf("session id is %s", sessionId)
	}
	if requestType := ccr.GetIntAVP("CC-Request-Type"); requestType != 1 {
		t.Errorf("cc request type is %d", requestType)
	}
	if requestNumber := ccr.GetIntAVP("CC-Request-Number"); requestNumber != 0 {
		t.Errorf("cc request number is %d", requestNumber)
	}
	if msisdn := ccr.GetStringAVP("Subscription-Id.Subscription-Id-Data"); msisdn != "41780000001" {
		t.Errorf("subscription id data is %s", msisdn)
	}
	if subscriptionIdType := ccr.GetIntAVP("Subscription-Id.Subscription-Id-Type"); subscriptionIdType != 0 {
		t.Errorf("subscription id type is %d", subscriptionIdType)
	}
}

func TestBuildCCRUpdate(t *testing.T) {

	used := ServiceUnits{{"CC-Time", 300}, {"CC-Total-Octets", 1048576}}
	requested := ServiceUnits{{"CC-Time", 600}}

	ccr, err := BuildCCRUpdate(testCCRParams, 2, used, requested)
	if err != nil {
		t.Fatalf("error building update CCR: %v", err)
	}

	if requestType := ccr.GetIntAVP("CC-Request-Type"); requestType != 2 {
		t.Errorf("cc request type is %d", requestType)
	}
	if requestNumber := ccr.GetIntAVP("CC-Request-Number"); requestNumber != 2 {
		t.Errorf("cc request number is %d", requestNumber)
	}

	// The children of the grouped AVP keep the order of the slice
	usedAVP, err := ccr.GetAVP("Used-Service-Unit")
	if err != nil {
		t.Fatalf("used service unit not found: %v", err)
	}
	children := usedAVP.Value.([]core.DiameterAVP)
	if len(children) != 2 {
		t.Fatalf("used service unit has %d children", len(children))
	}
	if children[0].Name != "CC-Time" || children[0].GetInt() != 300 {
		t.Errorf("first unit is %s %d", children[0].Name, children[0].GetInt())
	}
	if children[1].Name != "CC-Total-Octets" || children[1].GetInt() != 1048576 {
		t.Errorf("second unit is %s %d", children[1].Name, children[1].GetInt())
	}

	if requestedTime := ccr.GetIntAVP("Requested-Service-Unit.CC-Time"); requestedTime != 600 {
		t.Errorf("requested cc time is %d", requestedTime)
	}
}

func TestBuildCCRUpdateWithoutUnits(t *testing.T) {

	ccr, err := BuildCCRUpdate(testCCRParams, 1, nil, nil)
	if err != nil {
		t.Fatalf("error building update CCR: %v", err)
	}

	// No empty grouped AVP may be emitted
	if _, err := ccr.GetAVP("Used-Service-Unit"); err == nil {
		t.Errorf("got a used service unit avp")
	}
	if _, err := ccr.GetAVP("Requested-Service-Unit"); err == nil {
		t.Errorf("got a requested service unit avp")
	}
}

func TestBuildCCRTerminate(t *testing.T) {

	ccr, err := BuildCCRTerminate(testCCRParams, 3, ServiceUnits{{"CC-Total-Octets", 99}})
	if err != nil {
		t.Fatalf("error building terminate CCR: %v", err)
	}

	if requestType := ccr.GetIntAVP("CC-Request-Type"); requestType != 3 {
		t.Errorf("cc request type is %d", requestType)
	}
	if usedOctets := ccr.GetIntAVP("Used-Service-Unit.CC-Total-Octets"); usedOctets != 99 {
		t.Errorf("used cc total octets is %d", usedOctets)
	}
}

func TestBuildUnresolvedAVP(t *testing.T) {

	ccr, err := BuildCCRUpdate(testCCRParams, 1, ServiceUnits{{"CC-Bogus-Unit", 1}}, nil)
	if err == nil {
		t.Fatal("building with an avp not in the dictionary did not fail")
	}
	if ccr != nil {
		t.Errorf("a message was returned along with the error")
	}

	var unresolvedError *UnresolvedAVPError
	if !errors.As(err, &unresolvedError) {
		t.Fatalf("error is %T instead of UnresolvedAVPError", err)
	}
	if unresolvedError.Name != "CC-Bogus-Unit" {
		t.Errorf("error reports avp %s", unresolvedError.Name)
	}
}
