package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Instrumentation of the credit control sessions table
type CreditControlSessionEntry struct {
	SessionId       string
	SubscriptionId  string
	ChargingPlan    string
	RequestNumber   int64
	GrantedOctets   int64
	UsedOctets      int64
	LastRequestType string
	LastUpdate      time.Time
}

type CreditControlSessionsTable []CreditControlSessionEntry

type CreditControlSessionsTableUpdatedEvent struct {
	InstanceName string
	Table        CreditControlSessionsTable
}

func PushCreditControlSessionsTable(instanceName string, table CreditControlSessionsTable) {
	MS.metricEventChan <- CreditControlSessionsTableUpdatedEvent{InstanceName: instanceName, Table: table}
}

// Buffer for the channel to receive the events
const INPUT_QUEUE_SIZE = 10

// Buffer for the channel to receive the queries
const QUERY_QUEUE_SIZE = 10

// The single instance of the metrics server.
var MS *InstrumentationServer

type InstrumentationServerConfiguration struct {
	BindAddress string
	Port        int
}

// Specification of a query to the metrics server. Metrics server will listen for this type
// of object in a channel
type Query struct {

	// Name of the metric to query
	Name string

	// Channel where the response is written
	RChan chan interface{}
}

// The Metrics servers holds the metrics and runs an event loop for getting the events and updating the statistics,
// answering to queries and do graceful termination
type InstrumentationServer struct {

	// To wait until termination
	doneChan chan interface{}

	// To signal closure
	controlChan chan interface{}

	// Events for metrics updating are received here
	metricEventChan chan interface{}

	// Queries are received here
	queryChan chan Query

	// Prometheus registry
	prometheusRegistry *prometheus.Registry

	// HttpServer
	httpMetricsServer *http.Server

	// One Table per configuration instance
	creditControlSessionsTables map[string]CreditControlSessionsTable
}

func NewMetricsServer(bindAddress string, port int) *InstrumentationServer {
	server := InstrumentationServer{
		doneChan:           make(chan interface{}, 1),
		controlChan:        make(chan interface{}, 1),
		metricEventChan:    make(chan interface{}, INPUT_QUEUE_SIZE), // Receives the events to record
		queryChan:          make(chan Query, QUERY_QUEUE_SIZE),       // Receives the queries
		prometheusRegistry: prometheus.NewRegistry(),
	}

	// Initialize Metrics
	server.creditControlSessionsTables = make(map[string]CreditControlSessionsTable, 1)

	pm.CreditControlMetrics = newCreditControlPrometheusMetrics(server.prometheusRegistry)
	pm.HttpClientMetrics = newHttpClientPrometheusMetrics(server.prometheusRegistry)
	pm.HttpHandlerMetrics = newHttpHandlerPrometheusMetrics(server.prometheusRegistry)
	pm.CdrWriterMetrics = newCdrWriterPrometheusMetrics(server.prometheusRegistry)

	// Start metrics server
	go server.httpLoop(bindAddress, port)

	// Start metrics processing loop
	go server.metricServerLoop()

	return &server
}

// To be called in the main function
func initMetricsServer(cm *ConfigurationManager) {

	var metricsConfig = NewConfigObject[InstrumentationServerConfiguration]("metrics.json")
	if err := metricsConfig.Update(cm); err != nil {
		panic("could not apply metrics configuration: " + err.Error())
	}

	// Make the metrics server globally available
	var config = metricsConfig.Get()
	MS = NewMetricsServer(config.BindAddress, config.Port)
}

// Shuts down the http server and the event loop
// If ever done, make sure that the whole proces is terminating or that another
// configuration instance intizialization will take place, because MetricsServer
// initialization is done there
func (is *InstrumentationServer) Close() {
	close(is.controlChan)
	<-is.doneChan

	// The other channels are not closed
}

// Sets all counters to zero
func (is *InstrumentationServer) ResetMetrics() {
	pm.CreditControlMetrics.reset()
	pm.HttpClientMetrics.reset()
	pm.HttpHandlerMetrics.reset()
	pm.CdrWriterMetrics.reset()
}

//////////////////////////////////////////////////////////////////////////////////

// Wrapper to get the sessions tables
func (is *InstrumentationServer) SessionsTableQuery() map[string]CreditControlSessionsTable {
	query := Query{Name: "CreditControlSessionsTables", RChan: make(chan interface{})}
	is.queryChan <- query
	return (<-query.RChan).(map[string]CreditControlSessionsTable)
}

// Loop for Prometheus metrics server
func (is *InstrumentationServer) httpLoop(bindAddress string, port int) {

	mux := new(http.ServeMux)
	mux.Handle("/go_metrics", promhttp.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(is.prometheusRegistry, promhttp.HandlerOpts{Registry: is.prometheusRegistry}))
	mux.HandleFunc("/sessions", is.getSessionsHandler())

	bindAddrPort := fmt.Sprintf("%s:%d", bindAddress, port)
	GetLogger().Infof("instrumentation server listening in %s", bindAddrPort)

	is.httpMetricsServer = &http.Server{
		Addr:              bindAddrPort,
		Handler:           mux,
		IdleTimeout:       1 * time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Prometheus uses plain old http
	err := is.httpMetricsServer.ListenAndServe()

	if !errors.Is(err, http.ErrServerClosed) {
		panic("error starting instrumentation handler: " + err.Error())
	}

	// Will get here only when a shutdown is invoked
	close(is.doneChan)
}

// Main loop for getting metrics and serving queries
func (is *InstrumentationServer) metricServerLoop() {

	for {
		select {

		case <-is.controlChan:
			// Shutdown server
			is.httpMetricsServer.Shutdown(context.Background())
			return

		case query := <-is.queryChan:

			switch query.Name {

			case "CreditControlSessionsTables":
				query.RChan <- is.creditControlSessionsTables
			}

			close(query.RChan)

		case event, ok := <-is.metricEventChan:

			if !ok {
				break
			}

			switch e := event.(type) {

			// Sessions table
			case CreditControlSessionsTableUpdatedEvent:
				is.creditControlSessionsTables[e.InstanceName] = e.Table
			}
		}
	}
}

func (is *InstrumentationServer) getSessionsHandler() func(w http.ResponseWriter, req *http.Request) {
	return func(writer http.ResponseWriter, request *http.Request) {

		sessionsTables := is.SessionsTableQuery()
		jAnswer, err := json.Marshal(sessionsTables)

		if err != nil {
			writer.WriteHeader(http.StatusInternalServerError)
			GetLogger().Errorf("could not marshal the sessions tables due to: %s", err.Error())
			return
		}
		writer.Header().Add("Content-Type", "application/json")
		writer.WriteHeader(http.StatusOK)
		writer.Write(jAnswer)
	}
}
