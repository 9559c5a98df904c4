package cdrwriter

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/francistor/gy/core"
)

// Initialization
var bootstrapFile = "resources/searchRules.json"
var instanceName = "testCdrWriter"

// Initializer of the test suite
func TestMain(m *testing.M) {
	core.InitOcsConfigInstance(bootstrapFile, instanceName, nil, true)

	// Execute the tests and exit
	os.Exit(m.Run())
}

// A terminated Gy session, as handed over to the CDR writers
var jTerminationCCR = `{
	"IsRequest": true,
	"ApplicationName": "Credit-Control",
	"CommandName": "Credit-Control",
	"AVPs": [
		{"Session-Id": "ocs.gy.client;1;1"},
		{"Origin-Host": "client.gy.client"},
		{"Origin-Realm": "gy.client"},
		{"Destination-Realm": "gy.server"},
		{"CC-Request-Type": "TERMINATION_REQUEST"},
		{"CC-Request-Number": 3},
		{"Service-Context-Id": "gy@3gpp.org"},
		{"Event-Timestamp": "2026-03-01T10:00:00 UTC"},
		{"Subscription-Id": [
			{"Subscription-Id-Type": "END_USER_E164"},
			{"Subscription-Id-Data": "41780000001"}
		]},
		{"Used-Service-Unit": [
			{"CC-Time": 1800},
			{"CC-Total-Octets": 52428800}
		]}
	]
}`

func buildTerminationCCR(t *testing.T) *core.DiameterMessage {
	var ccr core.DiameterMessage
	if err := json.Unmarshal([]byte(jTerminationCCR), &ccr); err != nil {
		t.Fatalf("unmarshal error for diameter message: %s", err)
	}
	return ccr.Tidy()
}

func TestLivingstoneFormat(t *testing.T) {

	ccr := buildTerminationCCR(t)

	lf := NewLivingstoneFormat(nil, []string{"Origin-Realm"}, time.RFC3339, time.RFC3339)
	cdrString := lf.GetCDRString(ccr)

	if strings.Contains(cdrString, "Origin-Realm") {
		t.Fatalf("written CDR contains filtered attribute Origin-Realm")
	}
	if !strings.Contains(cdrString, "Session-Id=\"ocs.gy.client;1;1\"") {
		t.Fatalf("missing attribute in written string")
	}
	// Enumerated values are written with the symbolic name
	if !strings.Contains(cdrString, "CC-Request-Type=\"TERMINATION_REQUEST\"") {
		t.Fatalf("enumerated attribute not written with its name")
	}
}

func TestCSVFormat(t *testing.T) {

	ccr := buildTerminationCCR(t)

	cf := NewCSVFormat([]string{
		"Session-Id",
		"Origin-Host",
		"CC-Request-Type",
		"CC-Request-Number",
		"Event-Timestamp",
		"Used-Service-Unit.CC-Total-Octets"},
		";", ",", "2006-01-02T15:04:05", true)
	cdrString := cf.GetCDRString(ccr)

	if !strings.Contains(cdrString, "\"ocs.gy.client;1;1\";") {
		t.Fatalf("missing session id in written string: %s", cdrString)
	}
	// Enumerated values are written as integers
	if !strings.Contains(cdrString, ";3;3;") {
		t.Fatalf("missing request type or number in written string: %s", cdrString)
	}
	if !strings.Contains(cdrString, "2026-03-01T10:00:00") {
		t.Fatalf("missing timestamp in written string: %s", cdrString)
	}
	// Fields may navigate into grouped AVPs
	if !strings.Contains(cdrString, "52428800") {
		t.Fatalf("missing nested attribute in written string: %s", cdrString)
	}
}

func TestJSONFormat(t *testing.T) {

	ccr := buildTerminationCCR(t)

	jf := NewJSONFormat(nil, []string{"Subscription-Id"})
	cdrString := jf.GetCDRString(ccr)

	if strings.Contains(cdrString, "Subscription-Id") {
		t.Fatalf("written CDR contains filtered attribute Subscription-Id")
	}
	if !strings.Contains(cdrString, "\"Session-Id\":\"ocs.gy.client;1;1\"") {
		t.Fatalf("missing attribute in written string: %s", cdrString)
	}

	// The output is well formed JSON
	var avps []map[string]interface{}
	if err := json.Unmarshal([]byte(cdrString), &avps); err != nil {
		t.Fatalf("written CDR is not valid JSON: %s", err)
	}
}

func TestFileCDRWriter(t *testing.T) {

	cdrDirectory := t.TempDir()

	fw := NewFileCDRWriter(cdrDirectory, "cdr_2006-01-02.txt", NewLivingstoneFormat(nil, nil, time.RFC3339, time.RFC3339), 86400)

	ccr := buildTerminationCCR(t)
	fw.WriteCDR(ccr)
	fw.WriteCDR(ccr)
	fw.Close()

	fileName := cdrDirectory + "/" + time.Now().Format("cdr_2006-01-02.txt")
	cdrBytes, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatalf("could not read the CDR file: %s", err)
	}
	if strings.Count(string(cdrBytes), "Session-Id=\"ocs.gy.client;1;1\"") != 2 {
		t.Fatalf("CDR file does not contain the two CDR written")
	}
}
