package gycodec

import (
	"strings"
	"testing"

	"github.com/francistor/gy/core"
)

func TestRenderNestedIndentation(t *testing.T) {

	// Three levels of nesting
	serviceInfoAVP, err := core.NewDiameterAVP("3GPP-Service-Information", nil)
	if err != nil {
		t.Fatalf("error creating service information: %v", err)
	}
	psInfoAVP, err := core.NewDiameterAVP("3GPP-PS-Information", nil)
	if err != nil {
		t.Fatalf("error creating ps information: %v", err)
	}
	psInfoAVP.Add("3GPP-SGSN-MCC-MNC", "21407")
	serviceInfoAVP.AddAVP(*psInfoAVP)

	ccr, err := BuildCCRInitial(testCCRParams, "41780000001")
	if err != nil {
		t.Fatalf("error building initial CCR: %v", err)
	}
	ccr.AddAVP(serviceInfoAVP)

	rendered := Render(ccr)

	if !strings.Contains(rendered, "3GPP-Service-Information:\n") {
		t.Errorf("rendered output misses the outer group: %s", rendered)
	}
	if !strings.Contains(rendered, "\n  3GPP-PS-Information:\n") {
		t.Errorf("rendered output misses the nested group: %s", rendered)
	}
	if !strings.Contains(rendered, "\n    3GPP-SGSN-MCC-MNC: 21407\n") {
		t.Errorf("rendered output misses the leaf: %s", rendered)
	}
}

func TestRenderEnumAnnotation(t *testing.T) {

	ccr, err := BuildCCRInitial(testCCRParams, "41780000001")
	if err != nil {
		t.Fatalf("error building initial CCR: %v", err)
	}

	rendered := Render(ccr)
	if !strings.Contains(rendered, "CC-Request-Type: 1 (INITIAL_REQUEST)") {
		t.Errorf("enum annotation missing: %s", rendered)
	}
	if !strings.Contains(rendered, "Subscription-Id-Type: 0 (END_USER_E164)") {
		t.Errorf("enum annotation missing in nested avp: %s", rendered)
	}

	// An enum value with no symbol in the dictionary renders bare
	unmappedAVP, err := core.NewDiameterAVP("CC-Request-Type", 99)
	if err != nil {
		t.Fatalf("error creating enum avp: %v", err)
	}
	message := core.DiameterMessage{}
	message.AddAVP(unmappedAVP)
	rendered = Render(&message)
	if strings.Contains(rendered, "(") {
		t.Errorf("annotation fabricated for an unmapped value: %s", rendered)
	}
	if !strings.Contains(rendered, "CC-Request-Type: 99") {
		t.Errorf("unmapped enum not rendered bare: %s", rendered)
	}
}

func TestRenderOctetsFallback(t *testing.T) {

	// Not valid UTF-8
	binaryAVP, err := core.NewDiameterAVP("CC-Correlation-Id", []byte{0xff, 0xfe, 0x01})
	if err != nil {
		t.Fatalf("error creating octets avp: %v", err)
	}
	// Valid UTF-8
	textAVP, err := core.NewDiameterAVP("CC-Correlation-Id", []byte("corr-1"))
	if err != nil {
		t.Fatalf("error creating octets avp: %v", err)
	}

	message := core.DiameterMessage{}
	message.AddAVP(binaryAVP).AddAVP(textAVP)

	rendered := Render(&message)
	if !strings.Contains(rendered, "CC-Correlation-Id: 0xfffe01\n") {
		t.Errorf("binary octets not rendered as hex: %s", rendered)
	}
	if !strings.Contains(rendered, "CC-Correlation-Id: corr-1\n") {
		t.Errorf("text octets not rendered as text: %s", rendered)
	}
}

func TestRenderTimeAndAddress(t *testing.T) {

	message := core.DiameterMessage{}

	timeAVP, err := core.NewDiameterAVP("Event-Timestamp", "2026-03-01T10:00:00 UTC")
	if err != nil {
		t.Fatalf("error creating time avp: %v", err)
	}
	addressAVP, err := core.NewDiameterAVP("Host-IP-Address", "192.168.1.7")
	if err != nil {
		t.Fatalf("error creating address avp: %v", err)
	}
	message.AddAVP(timeAVP).AddAVP(addressAVP)

	rendered := Render(&message)
	if !strings.Contains(rendered, "Event-Timestamp: 2026-03-01T10:00:00 UTC\n") {
		t.Errorf("time not rendered in the canonical layout: %s", rendered)
	}
	if !strings.Contains(rendered, "Host-IP-Address: 192.168.1.7\n") {
		t.Errorf("address not rendered as text: %s", rendered)
	}
}

func TestSortForDisplay(t *testing.T) {

	avps := make([]core.DiameterAVP, 0)
	for _, spec := range []struct {
		name  string
		value interface{}
	}{
		{"Result-Code", 2001},
		{"User-Name", "frg"},
		{"Session-Id", "session-1"},
		{"Origin-Host", "host"},
	} {
		avp, err := core.NewDiameterAVP(spec.name, spec.value)
		if err != nil {
			t.Fatalf("error creating avp %s: %v", spec.name, err)
		}
		avps = append(avps, *avp)
	}

	sorted := SortForDisplay(avps)

	expectedOrder := []string{"Session-Id", "Origin-Host", "User-Name", "Result-Code"}
	for i, name := range expectedOrder {
		if sorted[i].Name != name {
			t.Errorf("avp in position %d is %s instead of %s", i, sorted[i].Name, name)
		}
	}

	// The input slice is not touched
	if avps[0].Name != "Result-Code" {
		t.Errorf("the input slice was reordered")
	}
}
