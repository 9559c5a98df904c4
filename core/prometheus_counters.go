package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics to be used in the instrumented code
var pm struct {
	CreditControlMetrics *CreditControlPrometheusMetrics
	HttpClientMetrics    *HttpClientPrometheusMetrics
	HttpHandlerMetrics   *HttpHandlerPrometheusMetrics
	CdrWriterMetrics     *CdrWriterPrometheusMetrics
}

// ///////////////////////////////////////////////////////////////
// Metrics definitions
// ///////////////////////////////////////////////////////////////
type CreditControlPrometheusMetrics struct {
	CreditControlRequestsReceived *prometheus.CounterVec
	CreditControlAnswersSent      *prometheus.CounterVec
	CreditControlHandlerErrors    *prometheus.CounterVec
	SessionCount                  *prometheus.GaugeVec
}

func (m *CreditControlPrometheusMetrics) reset() {
	m.CreditControlRequestsReceived.Reset()
	m.CreditControlAnswersSent.Reset()
	m.CreditControlHandlerErrors.Reset()
}

type HttpClientPrometheusMetrics struct {
	HttpClientExchanges *prometheus.CounterVec
}

func (m *HttpClientPrometheusMetrics) reset() {
	m.HttpClientExchanges.Reset()
}

type HttpHandlerPrometheusMetrics struct {
	HttpHandlerExchanges *prometheus.CounterVec
}

func (m *HttpHandlerPrometheusMetrics) reset() {
	m.HttpHandlerExchanges.Reset()
}

type CdrWriterPrometheusMetrics struct {
	CdrWritten     *prometheus.CounterVec
	CdrWriteErrors *prometheus.CounterVec
}

func (m *CdrWriterPrometheusMetrics) reset() {
	m.CdrWritten.Reset()
	m.CdrWriteErrors.Reset()
}

func newCreditControlPrometheusMetrics(reg prometheus.Registerer) *CreditControlPrometheusMetrics {
	m := &CreditControlPrometheusMetrics{
		CreditControlRequestsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_control_requests_received",
				Help: "Credit control requests received",
			},
			[]string{"oh", "or", "rt"}),

		CreditControlAnswersSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_control_answers_sent",
				Help: "Credit control answers sent",
			},
			[]string{"oh", "or", "rt", "rc"}),

		CreditControlHandlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_control_handler_errors",
				Help: "Errors in the credit control handler",
			},
			[]string{"oh", "or", "rt"}),

		SessionCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "credit_control_sessions",
				Help: "Total number of credit control sessions",
			},
			[]string{}),
	}

	reg.MustRegister(m.CreditControlRequestsReceived)
	reg.MustRegister(m.CreditControlAnswersSent)
	reg.MustRegister(m.CreditControlHandlerErrors)
	reg.MustRegister(m.SessionCount)

	return m
}

func newHttpClientPrometheusMetrics(reg prometheus.Registerer) *HttpClientPrometheusMetrics {
	m := &HttpClientPrometheusMetrics{
		HttpClientExchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_client_exchanges",
				Help: "Http client exchanges",
			},
			[]string{"endpoint", "errorcode"}),
	}

	reg.MustRegister(m.HttpClientExchanges)

	return m
}

func newHttpHandlerPrometheusMetrics(reg prometheus.Registerer) *HttpHandlerPrometheusMetrics {
	m := &HttpHandlerPrometheusMetrics{
		HttpHandlerExchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_handler_exchanges",
				Help: "Http handler exchanges",
			},
			[]string{"path", "errorcode"}),
	}

	reg.MustRegister(m.HttpHandlerExchanges)

	return m
}

func newCdrWriterPrometheusMetrics(reg prometheus.Registerer) *CdrWriterPrometheusMetrics {
	m := &CdrWriterPrometheusMetrics{
		CdrWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdr_written",
				Help: "CDR written",
			},
			[]string{"writer"}),

		CdrWriteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdr_write_errors",
				Help: "CDR write errors",
			},
			[]string{"writer"}),
	}

	reg.MustRegister(m.CdrWritten)
	reg.MustRegister(m.CdrWriteErrors)

	return m
}

// Helper functions

// Credit control

func LabelsFromCreditControlRequest(ccr *DiameterMessage) prometheus.Labels {
	return prometheus.Labels{
		"oh": ccr.GetStringAVP("Origin-Host"),
		"or": ccr.GetStringAVP("Origin-Realm"),
		"rt": ccr.GetStringAVP("CC-Request-Type"),
	}
}

func RecordCreditControlRequestReceived(ccr *DiameterMessage) {
	pm.CreditControlMetrics.CreditControlRequestsReceived.With(LabelsFromCreditControlRequest(ccr)).Inc()
}

func RecordCreditControlAnswerSent(ccr *DiameterMessage, cca *DiameterMessage) {
	labels := LabelsFromCreditControlRequest(ccr)
	labels["rc"] = fmt.Sprintf("%d", cca.GetResultCode())
	pm.CreditControlMetrics.CreditControlAnswersSent.With(labels).Inc()
}

func RecordCreditControlHandlerError(ccr *DiameterMessage) {
	pm.CreditControlMetrics.CreditControlHandlerErrors.With(LabelsFromCreditControlRequest(ccr)).Inc()
}

func UpdateSessionCounter(nSessions int) {
	pm.CreditControlMetrics.SessionCount.With(prometheus.Labels{}).Set(float64(nSessions))
}

// Http

func RecordHttpClientExchange(endpoint string, errorCode string) {
	pm.HttpClientMetrics.HttpClientExchanges.With(prometheus.Labels{"endpoint": endpoint, "errorcode": errorCode}).Inc()
}

func RecordHttpHandlerExchange(path string, errorCode string) {
	// Strip the querystring to the path
	pos := strings.IndexRune(path, '?')
	if pos >= 0 {
		path = path[:pos]
	}
	pm.HttpHandlerMetrics.HttpHandlerExchanges.With(prometheus.Labels{"path": path, "errorcode": errorCode}).Inc()
}

// CDR writers

func RecordCdrWritten(writer string) {
	pm.CdrWriterMetrics.CdrWritten.With(prometheus.Labels{"writer": writer}).Inc()
}

func RecordCdrWriteError(writer string) {
	pm.CdrWriterMetrics.CdrWriteErrors.With(prometheus.Labels{"writer": writer}).Inc()
}

// Helper for testing
func GetMetricWithLabels(metricName string, labelString string) (string, error) {
	metrics, err := httpGet("http://localhost:9109/metrics")
	if err != nil {
		return "", err
	}

	regex, err := regexp.Compile(fmt.Sprintf("%s%s ([0-9\\.]+)", metricName, labelString))
	if err != nil {
		return "", err
	}

	if match := regex.FindStringSubmatch(metrics); len(match) > 1 {
		return match[1], nil
	} else {
		return "", errors.New("metric and label not found")
	}

}
