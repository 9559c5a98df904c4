package gycodec

import (
	"reflect"
	"testing"

	"github.com/francistor/gy/core"
)

func TestParseCCRRoundTrip(t *testing.T) {

	used := ServiceUnits{{"CC-Time", 300}, {"CC-Total-Octets", 1048576}}

	ccr, err := BuildCCRUpdate(testCCRParams, 4, used, nil)
	if err != nil {
		t.Fatalf("error building update CCR: %v", err)
	}

	parsed, err := ParseCCR(ccr)
	if err != nil {
		t.Fatalf("error parsing CCR: %v", err)
	}

	if parsed.MessageType != "CCR" {
		t.Errorf("message type is %s", parsed.MessageType)
	}
	if parsed.SessionId != testCCRParams.SessionId {
		t.Errorf("session id is %s", parsed.SessionId)
	}
	if parsed.OriginHost != testCCRParams.OriginHost {
		t.Errorf("origin host is %s", parsed.OriginHost)
	}
	if parsed.DestinationRealm != testCCRParams.DestinationRealm {
		t.Errorf("destination realm is %s", parsed.DestinationRealm)
	}
	if parsed.ServiceContextId != testCCRParams.ServiceContextId {
		t.Errorf("service context id is %s", parsed.ServiceContextId)
	}

	// The parsed request type matches the dictionary value for UPDATE_REQUEST
	requestTypeItem, err := core.GetDDict().GetAVPFromName("CC-Request-Type")
	if err != nil {
		t.Fatalf("CC-Request-Type not in dictionary: %v", err)
	}
	if parsed.CCRequestType != int64(requestTypeItem.EnumValues["UPDATE_REQUEST"]) {
		t.Errorf("cc request type is %d", parsed.CCRequestType)
	}
	if parsed.CCRequestNumber != 4 {
		t.Errorf("cc request number is %d", parsed.CCRequestNumber)
	}

	expectedUnits := ServiceUnitAmounts{"CC-Time": 300, "CC-Total-Octets": 1048576}
	if !reflect.DeepEqual(parsed.UsedServiceUnit, expectedUnits) {
		t.Errorf("used service units are %v", parsed.UsedServiceUnit)
	}
	if len(parsed.RequestedServiceUnit) != 0 {
		t.Errorf("requested service units are %v", parsed.RequestedServiceUnit)
	}
	if parsed.RequestedAction != -1 {
		t.Errorf("requested action is %d", parsed.RequestedAction)
	}
}

func TestParseCCRInitialSubscriptionId(t *testing.T) {

	ccr, err := BuildCCRInitial(testCCRParams, "41780000001")
	if err != nil {
		t.Fatalf("error building initial CCR: %v", err)
	}

	parsed, err := ParseCCR(ccr)
	if err != nil {
		t.Fatalf("error parsing CCR: %v", err)
	}

	if len(parsed.SubscriptionIds) != 1 {
		t.Fatalf("got %d subscription ids", len(parsed.SubscriptionIds))
	}

	subscriptionIdTypeItem, err := core.GetDDict().GetAVPFromName("Subscription-Id-Type")
	if err != nil {
		t.Fatalf("Subscription-Id-Type not in dictionary: %v", err)
	}
	if parsed.SubscriptionIds[0].Type != int64(subscriptionIdTypeItem.EnumValues["END_USER_E164"]) {
		t.Errorf("subscription id type is %d", parsed.SubscriptionIds[0].Type)
	}
	if parsed.SubscriptionIds[0].Data != "41780000001" {
		t.Errorf("subscription id data is %s", parsed.SubscriptionIds[0].Data)
	}
}

func TestParseCCRUnknownAVP(t *testing.T) {

	ccr, err := BuildCCRInitial(testCCRParams, "41780000001")
	if err != nil {
		t.Fatalf("error building initial CCR: %v", err)
	}

	// Append an AVP with a code not in the dictionary and cycle the message
	// through the wire format, so that the parser sees it as decoded
	ccr.AddAVP(&core.DiameterAVP{
		Code:     99999,
		Name:     "UNKNOWN",
		Value:    []byte{0x01, 0x02, 0x03},
		DictItem: &core.UnknownDiameterDictItem,
	})

	messageBytes, err := ccr.MarshalBinary()
	if err != nil {
		t.Fatalf("error marshalling CCR: %v", err)
	}
	decoded, _, err := core.DiameterMessageFromBytes(messageBytes)
	if err != nil {
		t.Fatalf("error decoding CCR: %v", err)
	}

	parsed, err := ParseCCR(&decoded)
	if err != nil {
		t.Fatalf("parsing a CCR with an unknown avp failed: %v", err)
	}

	// The unknown AVP leaks into no field
	if parsed.SessionId != testCCRParams.SessionId {
		t.Errorf("session id is %s", parsed.SessionId)
	}
	if len(parsed.SubscriptionIds) != 1 {
		t.Errorf("got %d subscription ids", len(parsed.SubscriptionIds))
	}
	if len(parsed.UsedServiceUnit) != 0 || len(parsed.RequestedServiceUnit) != 0 {
		t.Errorf("unknown avp leaked into the service units")
	}
	if len(parsed.ServiceParameters) != 0 {
		t.Errorf("unknown avp leaked into the service parameters")
	}
}

func TestParseCCA(t *testing.T) {

	ccr, err := BuildCCRTerminate(testCCRParams, 5, ServiceUnits{{"CC-Total-Octets", 5242880}})
	if err != nil {
		t.Fatalf("error building terminate CCR: %v", err)
	}

	cca := core.NewDiameterAnswer(ccr)
	cca.Add("Session-Id", testCCRParams.SessionId)
	cca.Add("Result-Code", core.DIAMETER_SUCCESS)
	cca.Add("Origin-Host", "server.gy.server")
	cca.Add("Origin-Realm", "gy.server")
	cca.Add("CC-Request-Type", "TERMINATION_REQUEST")
	cca.Add("CC-Request-Number", 5)
	cca.Add("Validity-Time", 3600)

	grantedAVP, err := core.NewDiameterAVP("Granted-Service-Unit", nil)
	if err != nil {
		t.Fatalf("error creating granted service unit: %v", err)
	}
	grantedAVP.Add("CC-Time", 3600).Add("CC-Total-Octets", 104857600)

	moneyAVP, err := core.NewDiameterAVP("CC-Money", nil)
	if err != nil {
		t.Fatalf("error creating cc money: %v", err)
	}
	unitValueAVP, err := core.NewDiameterAVP("Unit-Value", nil)
	if err != nil {
		t.Fatalf("error creating unit value: %v", err)
	}
	unitValueAVP.Add("Value-Digits", 500).Add("Exponent", -2)
	moneyAVP.AddAVP(*unitValueAVP).Add("Currency-Code", 978)
	grantedAVP.AddAVP(*moneyAVP)
	cca.AddAVP(grantedAVP)

	costAVP, err := core.NewDiameterAVP("Cost-Information", nil)
	if err != nil {
		t.Fatalf("error creating cost information: %v", err)
	}
	costUnitValueAVP, err := core.NewDiameterAVP("Unit-Value", nil)
	if err != nil {
		t.Fatalf("error creating unit value: %v", err)
	}
	costUnitValueAVP.Add("Value-Digits", 52).Add("Exponent", -2)
	costAVP.AddAVP(*costUnitValueAVP).Add("Currency-Code", 978).Add("Cost-Unit", "EUR")
	cca.AddAVP(costAVP)

	finalUnitAVP, err := core.NewDiameterAVP("Final-Unit-Indication", nil)
	if err != nil {
		t.Fatalf("error creating final unit indication: %v", err)
	}
	finalUnitAVP.Add("Final-Unit-Action", "TERMINATE")
	cca.AddAVP(finalUnitAVP)

	parsed, err := ParseCCA(cca)
	if err != nil {
		t.Fatalf("error parsing CCA: %v", err)
	}

	if parsed.MessageType != "CCA" {
		t.Errorf("message type is %s", parsed.MessageType)
	}
	if parsed.ResultCode != core.DIAMETER_SUCCESS {
		t.Errorf("result code is %d", parsed.ResultCode)
	}
	if parsed.CCRequestType != 3 {
		t.Errorf("cc request type is %d", parsed.CCRequestType)
	}
	if parsed.CCRequestNumber != 5 {
		t.Errorf("cc request number is %d", parsed.CCRequestNumber)
	}
	if parsed.ValidityTime != 3600 {
		t.Errorf("validity time is %d", parsed.ValidityTime)
	}

	expectedUnits := ServiceUnitAmounts{"CC-Time": 3600, "CC-Total-Octets": 104857600}
	if !reflect.DeepEqual(parsed.GrantedServiceUnit, expectedUnits) {
		t.Errorf("granted service units are %v", parsed.GrantedServiceUnit)
	}

	if parsed.Money == nil {
		t.Fatal("cc money was not parsed")
	}
	if parsed.Money.Value.ValueDigits != 500 || parsed.Money.Value.Exponent != -2 {
		t.Errorf("money unit value is %v", parsed.Money.Value)
	}
	if parsed.Money.CurrencyCode != 978 {
		t.Errorf("money currency code is %d", parsed.Money.CurrencyCode)
	}

	if parsed.CostInformation == nil {
		t.Fatal("cost information was not parsed")
	}
	if parsed.CostInformation.Value.ValueDigits != 52 || parsed.CostInformation.Value.Exponent != -2 {
		t.Errorf("cost unit value is %v", parsed.CostInformation.Value)
	}
	if parsed.CostInformation.CostUnit != "EUR" {
		t.Errorf("cost unit is %s", parsed.CostInformation.CostUnit)
	}

	if parsed.FinalUnitAction != 0 {
		t.Errorf("final unit action is %d", parsed.FinalUnitAction)
	}
}

func TestParseCCAWithoutOptionalAVPs(t *testing.T) {

	ccr, err := BuildCCRInitial(testCCRParams, "41780000001")
	if err != nil {
		t.Fatalf("error building initial CCR: %v", err)
	}

	cca := core.NewDiameterAnswer(ccr)
	cca.Add("Session-Id", testCCRParams.SessionId)
	cca.Add("Result-Code", core.DIAMETER_UNABLE_TO_COMPLY)

	parsed, err := ParseCCA(cca)
	if err != nil {
		t.Fatalf("error parsing CCA: %v", err)
	}

	if parsed.ResultCode != core.DIAMETER_UNABLE_TO_COMPLY {
		t.Errorf("result code is %d", parsed.ResultCode)
	}
	if len(parsed.GrantedServiceUnit) != 0 {
		t.Errorf("granted service units are %v", parsed.GrantedServiceUnit)
	}
	if parsed.CostInformation != nil || parsed.Money != nil {
		t.Errorf("cost information or money parsed from an empty answer")
	}
	if parsed.FinalUnitAction != -1 {
		t.Errorf("final unit action is %d", parsed.FinalUnitAction)
	}
}
