package core

import (
	"strings"
	"testing"
	"time"
)

func TestCreditControlMetrics(t *testing.T) {

	MS.ResetMetrics()

	ccr, _ := NewDiameterRequest("Credit-Control", "Credit-Control")
	ccr.Add("Origin-Host", "client.gy.client").
		Add("Origin-Realm", "gy.client").
		Add("CC-Request-Type", "INITIAL_REQUEST")
	cca := NewDiameterAnswer(ccr)
	cca.Add("Result-Code", DIAMETER_SUCCESS)

	// Generate some metrics
	RecordCreditControlRequestReceived(ccr)
	RecordCreditControlRequestReceived(ccr)
	RecordCreditControlAnswerSent(ccr, cca)
	RecordCreditControlHandlerError(ccr)
	UpdateSessionCounter(3)

	// Check Metrics
	val, err := GetMetricWithLabels("credit_control_requests_received", `{.*rt="INITIAL_REQUEST".*}`)
	if err != nil {
		t.Fatalf("error getting credit_control_requests_received %s", err)
	}
	if val != "2" {
		t.Fatalf("number of credit_control_requests_received was not 2")
	}
	val, err = GetMetricWithLabels("credit_control_answers_sent", `{.*rc="2001".*}`)
	if err != nil {
		t.Fatalf("error getting credit_control_answers_sent %s", err)
	}
	if val != "1" {
		t.Fatalf("number of credit_control_answers_sent was not 1")
	}
	val, err = GetMetricWithLabels("credit_control_handler_errors", `{.*oh="client.gy.client".*}`)
	if err != nil {
		t.Fatalf("error getting credit_control_handler_errors %s", err)
	}
	if val != "1" {
		t.Fatalf("number of credit_control_handler_errors was not 1")
	}
	val, err = GetMetricWithLabels("credit_control_sessions", "")
	if err != nil {
		t.Fatalf("error getting credit_control_sessions %s", err)
	}
	if val != "3" {
		t.Fatalf("number of credit_control_sessions was not 3")
	}
}

func TestHttpMetrics(t *testing.T) {

	MS.ResetMetrics()

	RecordHttpClientExchange("https://localhost:8080/diameterRequest", "200")
	RecordHttpClientExchange("https://localhost:8080/diameterRequest", "200")

	// The querystring is stripped, so the first two exchanges are counted together
	RecordHttpHandlerExchange("/diameterRequest?verbose=true", "200")
	RecordHttpHandlerExchange("/diameterRequest", "200")
	RecordHttpHandlerExchange("/diameterRequest", "500")

	// Check Http Client Metrics
	val, err := GetMetricWithLabels("http_client_exchanges", `{.*endpoint="https://localhost:8080/diameterRequest".*}`)
	if err != nil {
		t.Fatalf("error getting http_client_exchanges %s", err)
	}
	if val != "2" {
		t.Fatalf("number of http_client_exchanges was not 2")
	}

	// Check Http Handler Metrics
	val, err = GetMetricWithLabels("http_handler_exchanges", `{errorcode="200",path="/diameterRequest"}`)
	if err != nil {
		t.Fatalf("error getting http_handler_exchanges %s", err)
	}
	if val != "2" {
		t.Fatalf("number of http_handler_exchanges was not 2")
	}
	val, err = GetMetricWithLabels("http_handler_exchanges", `{errorcode="500",path="/diameterRequest"}`)
	if err != nil {
		t.Fatalf("error getting http_handler_exchanges %s", err)
	}
	if val != "1" {
		t.Fatalf("number of http_handler_exchanges was not 1")
	}
}

func TestCdrWriterMetrics(t *testing.T) {

	MS.ResetMetrics()

	RecordCdrWritten("file")
	RecordCdrWritten("file")
	RecordCdrWriteError("bigquery")

	val, err := GetMetricWithLabels("cdr_written", `{writer="file"}`)
	if err != nil {
		t.Fatalf("error getting cdr_written %s", err)
	}
	if val != "2" {
		t.Fatalf("number of cdr_written was not 2")
	}
	val, err = GetMetricWithLabels("cdr_write_errors", `{writer="bigquery"}`)
	if err != nil {
		t.Fatalf("error getting cdr_write_errors %s", err)
	}
	if val != "1" {
		t.Fatalf("number of cdr_write_errors was not 1")
	}
}

func TestSessionsTableInstrumentation(t *testing.T) {

	table := CreditControlSessionsTable{
		{
			SessionId:       "ocs.gy.client;900;1",
			SubscriptionId:  "41780000009",
			ChargingPlan:    "default",
			RequestNumber:   1,
			GrantedOctets:   104857600,
			UsedOctets:      52428800,
			LastRequestType: "UPDATE_REQUEST",
			LastUpdate:      time.Now(),
		},
	}
	PushCreditControlSessionsTable("metricsTest", table)

	// The push is processed asynchronously
	time.Sleep(100 * time.Millisecond)

	tables := MS.SessionsTableQuery()
	entries, found := tables["metricsTest"]
	if !found {
		t.Fatal("sessions table for the instance not found")
	}
	if len(entries) != 1 {
		t.Fatalf("sessions table has %d entries", len(entries))
	}
	if entries[0].SessionId != "ocs.gy.client;900;1" {
		t.Fatalf("bad session id in sessions table %s", entries[0].SessionId)
	}
	if entries[0].UsedOctets != 52428800 {
		t.Fatalf("bad used octets in sessions table %d", entries[0].UsedOctets)
	}

	// The table is also published in the instrumentation http server
	sessionsJSON, err := httpGet("http://localhost:9109/sessions")
	if err != nil {
		t.Fatalf("could not get sessions: %s", err)
	}
	if !strings.Contains(sessionsJSON, "ocs.gy.client;900;1") {
		t.Fatal("sessions endpoint does not contain the published session")
	}
}
