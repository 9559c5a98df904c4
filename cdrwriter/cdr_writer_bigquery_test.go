package cdrwriter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/francistor/gy/core"
)

var bqdatasetName = "GyTest"
var bqtableName = "GyCdr"

// Each attribute takes its value from one or several AVP, possibly nested
var jBigQueryConfig = `{
	"SessionId": "Session-Id",
	"OriginHost": "Origin-Host",
	"RequestType": "CC-Request-Type",
	"Msisdn": "Subscription-Id.Subscription-Id-Data",
	"SessionTime": "Used-Service-Unit.CC-Time",
	"TotalOctets": "Used-Service-Unit.CC-Total-Octets",
	"Identity": "Destination-Host:Destination-Realm",
	"EventTimestamp": "Event-Timestamp"
}`

// Round trip to the backup file format. Does not need bigquery access
func TestWritableCDRRoundTrip(t *testing.T) {

	var conf BigQueryFormatConf
	if err := json.Unmarshal([]byte(jBigQueryConfig), &conf.AttributeMap); err != nil {
		t.Fatalf("bad BigQuery format: %s", err)
	}
	bqf := NewBigQueryFormat(conf)

	cdr := bqf.GetWritableCDR(buildTerminationCCR(t))

	// The ":" operator takes the first AVP that is present. Destination-Host
	// is absent in the message
	if cdr.fields["Identity"] != "gy.server" {
		t.Fatalf("identity is %v", cdr.fields["Identity"])
	}
	if cdr.fields["SessionTime"] != int64(1800) {
		t.Fatalf("session time is %v", cdr.fields["SessionTime"])
	}
	if cdr.fields["RequestType"] != int64(3) {
		t.Fatalf("request type is %v", cdr.fields["RequestType"])
	}
	if cdr.fields["Msisdn"] != "41780000001" {
		t.Fatalf("msisdn is %v", cdr.fields["Msisdn"])
	}

	// Serialize and deserialize, as done with the backup files
	recovered := NewWritableCDRFromStrings(strings.Split(strings.TrimSuffix(cdr.String(), "\n\n"), "\n"))

	if len(recovered.fields) != len(cdr.fields) {
		t.Fatalf("recovered %d fields instead of %d", len(recovered.fields), len(cdr.fields))
	}
	for k, v := range cdr.fields {
		switch val := v.(type) {
		case time.Time:
			recoveredTime, ok := recovered.fields[k].(time.Time)
			if !ok || !recoveredTime.Equal(val) {
				t.Errorf("field %s recovered as %v instead of %v", k, recovered.fields[k], v)
			}
		default:
			if recovered.fields[k] != v {
				t.Errorf("field %s recovered as %v instead of %v", k, recovered.fields[k], v)
			}
		}
	}
}

// Used for creating the bigquery resources
// Should be executed as a single test (-run TestCreateSchema) and then wait some time for the resources to be available
// Then use t.Skip() or whatever to avoid execution
func TestCreateSchema(t *testing.T) {

	t.Skip()

	var err error

	googleCredentialsFile := os.Getenv("GY_CLOUD_CREDENTIALS")
	if googleCredentialsFile == "" {
		t.Fatal("GY_CLOUD_CREDENTIALS not set")
	}

	// Create the bigquery client. It will not report any errors until really used
	ctx := context.Background()
	client, _ := getBigqueryClient(ctx)
	defer client.Close()

	// These are references. No error occurs if the dataset or the table does not exist
	myDataset := client.Dataset(bqdatasetName)
	myTable := myDataset.Table(bqtableName)

	// To capture detailed errors
	var googleError *googleapi.Error

	// Create dataset if it does not exist
	_, err = myDataset.Metadata(ctx)
	if err != nil {
		if ok := errors.As(err, &googleError); ok {
			if googleError.Code == 404 {
				t.Log("creating the dataset ...")
				if err = myDataset.Create(ctx, nil); err != nil {
					fmt.Println("could not create the dataset", err)
					return
				}
				t.Log("done.")
			}
		}
	} else {
		t.Fatal("dataset already exists")
	}

	// Create table if it does not exist
	_, err = myTable.Metadata(ctx)
	if err != nil {
		if ok := errors.As(err, &googleError); ok {
			if googleError.Code == 404 {
				fmt.Println("creating the table ...")
				cdrSchema := bigquery.Schema{
					{Name: "SessionId", Required: true, Type: bigquery.StringFieldType},
					{Name: "OriginHost", Required: false, Type: bigquery.StringFieldType},
					{Name: "RequestType", Required: false, Type: bigquery.IntegerFieldType},
					{Name: "Msisdn", Required: false, Type: bigquery.StringFieldType},
					{Name: "SessionTime", Required: false, Type: bigquery.IntegerFieldType},
					{Name: "TotalOctets", Required: false, Type: bigquery.IntegerFieldType},
					{Name: "Identity", Required: false, Type: bigquery.StringFieldType},
					{Name: "EventTimestamp", Required: false, Type: bigquery.TimestampFieldType},
				}
				if err = myTable.Create(ctx, &bigquery.TableMetadata{Schema: cdrSchema}); err != nil {
					t.Fatal("could not create the table", err)
				} else {
					t.Log("wait for some time until doing insertions")
				}
			}
		}
	} else {
		t.Fatal("table already exists")
	}
}

// NOTE: Remove t.Skip() to execute
func TestBigqueryWriter(t *testing.T) {

	t.Skip()

	// Get the current number of lines in the table
	currentLines := getBQLinesInTable(t)

	var conf BigQueryFormatConf
	if err := json.Unmarshal([]byte(jBigQueryConfig), &conf.AttributeMap); err != nil {
		t.Fatalf("bad BigQuery format: %s", err)
	}
	bqf := NewBigQueryFormat(conf)

	bqw := NewBigQueryCDRWriter(bqdatasetName, bqtableName, bqf /* Glitch seconds */, 60, "../cdr/bigquery/bigquery.backup")

	ccr := buildTerminationCCR(t)

	// The same message will be written twice
	bqw.WriteCDR(ccr)
	bqw.WriteCDR(ccr)

	time.Sleep(1 * time.Second)
	bqw.Close()

	// Get the new number of lines in the table
	newLines := getBQLinesInTable(t)
	if currentLines == newLines {
		t.Fatal("no new lines were detected as inserted")
	}
}

// NOTE: Remove t.Skip() to execute
func TestBigqueryGenAndIngestBackup(t *testing.T) {

	t.Skip()

	///////////////////////////
	// Gen backup
	//////////////////////////

	var conf BigQueryFormatConf
	if err := json.Unmarshal([]byte(jBigQueryConfig), &conf.AttributeMap); err != nil {
		t.Fatalf("bad BigQuery format: %s", err)
	}
	bqf := NewBigQueryFormat(conf)

	// Reduced glitch time
	bqw := NewBigQueryCDRWriter(bqdatasetName, bqtableName, bqf /* Glitch seconds */, 1, "../cdr/bigquery/bigquery.backup")
	bqw._forceBigQueryError = true

	ccr := buildTerminationCCR(t)

	// The same message will be written twice
	bqw.WriteCDR(ccr)
	bqw.WriteCDR(ccr)

	time.Sleep(2 * time.Second)
	bqw.Close()

	// Check that file was created
	if _, err := os.Stat("../cdr/bigquery/bigquery.backup"); err != nil {
		t.Fatal("backup file not created")
	}

	///////////////////////////
	// Ingest backup
	//////////////////////////

	// Get the current number of lines in the table
	currentLines := getBQLinesInTable(t)

	// Reduced glitch time
	bqw = NewBigQueryCDRWriter(bqdatasetName, bqtableName, bqf /* Glitch seconds */, 1, "../cdr/bigquery/bigquery.backup")

	time.Sleep(2 * time.Second)
	bqw.Close()

	// Get the new number of lines in the table
	newLines := getBQLinesInTable(t)
	if currentLines == newLines {
		t.Fatal("no new lines were detected as inserted")
	}
}

// Helper to get the current number of lines in the table, and compare after doing some insertions
func getBQLinesInTable(t *testing.T) int64 {

	// Create the bigquery client. It will not report any errors until really used
	ctx := context.Background()
	client, projectId := getBigqueryClient(ctx)
	q := client.Query("SELECT count(*) FROM " + projectId + "." + bqdatasetName + "." + bqtableName)

	it, err := q.Read(ctx)
	if err != nil {
		t.Fatal("error reading number of lines in table")
	}
	var values []bigquery.Value
	err = it.Next(&values)
	if err != nil {
		t.Fatal("error reading number of lines in table")
	}

	return values[0].(int64)
}

// Helper to create a bigquery client and the project name
// Use defer .Close() on the Client returned
func getBigqueryClient(ctx context.Context) (*bigquery.Client, string) {

	var client *bigquery.Client
	var err error

	options, projectId := core.GetGoogleAccessData()
	if options != nil {
		// Using credentials file
		if client, err = bigquery.NewClient(ctx, projectId, options); err != nil {
			panic("could not create bigquery client: " + err.Error())
		}
	} else {
		if client, err = bigquery.NewClient(ctx, projectId); err != nil {
			panic("could not create bigquery client: " + err.Error())
		}
	}

	return client, projectId
}
