package main

import (
	"flag"

	"github.com/francistor/gy/cdrwriter"
	"github.com/francistor/gy/core"
	"github.com/francistor/gy/httphandler"
	"github.com/francistor/gy/ocs"
)

// Seconds after which a new CDR file is started
const CDR_ROTATE_SECONDS = 86400

// Seconds without trying to write to bigquery after an insertion error
const BIGQUERY_GLITCH_SECONDS = 60

func main() {

	// Get the command line arguments
	bootPtr := flag.String("boot", "resources/searchRules.json", "File or http URL with the configuration search rules")
	instancePtr := flag.String("instance", "", "Name of the instance")

	flag.Parse()

	// Initialize the configuration objects. The first one also sets up the logger,
	// the diameter dictionary and the instrumentation server
	ci := core.InitOcsConfigInstance(*bootPtr, *instancePtr, nil, true)
	core.InitHttpHandlerConfigInstance(*bootPtr, *instancePtr, nil, false)

	serverConf := ci.OcsServerConf()

	// Build the CDR writers as configured
	var writers []cdrwriter.CDRWriter
	if serverConf.CdrDirectory != "" {
		writers = append(writers, cdrwriter.NewFileCDRWriter(
			serverConf.CdrDirectory,
			serverConf.CdrFilenamePattern,
			cdrwriter.NewLivingstoneFormat(nil, nil, core.TimeFormatString, core.TimeFormatString),
			CDR_ROTATE_SECONDS))
	}
	if serverConf.BigQueryDataset != "" {
		var formatConf cdrwriter.BigQueryFormatConf
		if err := ci.CM.BuildObjectFromJsonConfig("bigqueryCdrFormat.json", &formatConf); err != nil {
			panic("could not read bigqueryCdrFormat.json: " + err.Error())
		}
		writers = append(writers, cdrwriter.NewBigQueryCDRWriter(
			serverConf.BigQueryDataset,
			serverConf.BigQueryTable,
			cdrwriter.NewBigQueryFormat(formatConf),
			BIGQUERY_GLITCH_SECONDS,
			"cdrbackup/bigquery.backup"))
	}

	// The handler implements the credit control logic
	handler := ocs.NewCreditControlHandler(ci, writers...)

	// Receives the credit control requests over http2 and invokes the handler
	httphandler.NewHttpHandler(*instancePtr, handler.Handle)

	core.GetLogger().Infof("ocs server started")

	// Block forever
	select {}
}
