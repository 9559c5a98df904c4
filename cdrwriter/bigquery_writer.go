package cdrwriter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/francistor/gy/core"
)

const (
	BIGQUERY_PACKET_BUFFER_SIZE        = 1000
	BIGQUERY_CDR_COUNT_THRESHOLD       = 500
	BIGQUERY_CDR_WRITE_TIME_MILLIS     = 500
	BIGQUERY_BACKUP_CHECK_TIME_SECONDS = 60
)

// Writes CDR to BigQuery
// If unavailability of the database lasts longer than the configured glitch time
// the CDR are written in a backup file. Backup files are processed periodically
type BigQueryCDRWriter struct {

	// This channel will receive the CDR to write
	packetChan chan *core.DiameterMessage

	// To signal that we have finished processing CDR
	doneChan chan struct{}

	// Google data
	client *bigquery.Client
	table  *bigquery.Table

	// Unavailability for this time does not lead to backing up the CDR
	glitchTime time.Duration

	// Name of the file where the CDR will be written in case of database unavailability
	backupFileName string

	// Formatter
	formatter *BigQueryFormat

	// For testing only
	_forceBigQueryError bool
}

// Builds a writer. Credentials are taken from the file pointed to by the
// GY_CLOUD_CREDENTIALS environment variable or, if empty, from the
// Application Default Credentials
func NewBigQueryCDRWriter(datasetName string, tableName string, formatter *BigQueryFormat, glitchSeconds int, backupFileName string) *BigQueryCDRWriter {

	ctx := context.Background()

	// Do some checks as soon as possible

	// Check backup file location
	if err := os.MkdirAll(filepath.Dir(backupFileName), 0770); err != nil {
		panic("while initializing, could not create directory " + filepath.Dir(backupFileName) + " :" + err.Error())
	}

	// Create the bigquery client. It will not report any errors until really used
	clientOptions, projectId := core.GetGoogleAccessData()

	var client *bigquery.Client
	var err error
	if clientOptions == nil {
		client, err = bigquery.NewClient(ctx, projectId)
	} else {
		client, err = bigquery.NewClient(ctx, projectId, clientOptions)
	}
	if err != nil {
		panic("could not create bigquery client: " + err.Error())
	}

	// Try to get table metadata to verify that the provided configuration is correct
	dataset := client.Dataset(datasetName)
	table := dataset.Table(tableName)

	if _, err = table.Metadata(ctx); err != nil {
		panic("bigquery table not available: " + projectId + "." + datasetName + "." + tableName)
	}

	w := BigQueryCDRWriter{
		packetChan:     make(chan *core.DiameterMessage, BIGQUERY_PACKET_BUFFER_SIZE),
		doneChan:       make(chan struct{}),
		formatter:      formatter,
		client:         client,
		table:          table,
		glitchTime:     time.Duration(glitchSeconds) * time.Second,
		backupFileName: backupFileName,
	}

	// Rename an old backup file if exists
	os.Rename(w.backupFileName, fmt.Sprintf("%s.%d.w", w.backupFileName, time.Now().UnixMilli()))

	// Start the event loop
	go w.eventLoop()

	// Start the backup processing loop
	go w.processBackupFiles()

	return &w
}

// Call when sure that no more write operations will be invoked
func (w *BigQueryCDRWriter) Close() {

	// Close the packet channel. The channel will receive a nil and exit
	close(w.packetChan)

	// Consume all the pending CDR in the buffer and wait here
	<-w.doneChan

	// Close the bigquery client
	if w.client != nil {
		w.client.Close()
	}
}

// Writes the Diameter CDR
func (w *BigQueryCDRWriter) WriteCDR(dm *core.DiameterMessage) {
	if dm == nil {
		return
	}
	w.packetChan <- dm
}

// Event processing loop
func (w *BigQueryCDRWriter) eventLoop() {

	var batch []*WritableCDR
	var cdrCounter = 0
	var lastWritten = time.Now()
	var lastError time.Time
	var hasBackup bool

	// Sends ticks to signal that a write must be done even if the number of
	// packets has not reached the triggering value
	var ticker = time.NewTicker(BIGQUERY_CDR_WRITE_TIME_MILLIS * time.Millisecond)

loop:
	for {
		select {
		case <-ticker.C:
			// Nothing to do

		case v := <-w.packetChan:
			if v == nil {
				break loop
			}
			cdrCounter++
			batch = append(batch, w.formatter.GetWritableCDR(v))
		}

		if cdrCounter > BIGQUERY_CDR_COUNT_THRESHOLD || time.Since(lastWritten).Milliseconds() > BIGQUERY_CDR_WRITE_TIME_MILLIS {

			err := w.sendToBigQuery(batch)
			if err != nil {
				// Not written to bq and batch not reset
				core.GetLogger().Errorf("bq writer error: %s", err)
				core.RecordCdrWriteError("bigquery")

				// Only if we are outside the glitch interval, backup the CDR
				if time.Since(lastError) > w.glitchTime && len(batch) > 0 {
					core.GetLogger().Errorf("backing up CDR!")

					// Open backup file
					file, err := os.OpenFile(w.backupFileName, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0770)
					if err != nil {
						panic("could not open " + w.backupFileName + " due to " + err.Error())
					}
					hasBackup = true

					// Write to backup
					for _, wcdr := range batch {
						_, err = file.WriteString(wcdr.String())
						if err != nil {
							panic("file write error. Filename: " + w.backupFileName + "error: " + err.Error())
						}
					}
					batch = nil
					file.Close()
				}

				// Set to 0 so that we don't try again immediately later
				cdrCounter = 0
				lastError = time.Now()

			} else {
				// Success. Empty the batch
				for range batch {
					core.RecordCdrWritten("bigquery")
				}
				batch = nil

				// Move backup file and start processing, if just recovered from an error
				if hasBackup {
					os.Rename(w.backupFileName, fmt.Sprintf("%s.%d.w", w.backupFileName, time.Now().UnixMilli()))
				}
				hasBackup = false

				// For clarity, repeated here
				cdrCounter = 0
				lastError = time.Time{}
			}
			lastWritten = time.Now()
		}
	}

	// Write the remaining CDR
	if err := w.sendToBigQuery(batch); err != nil {
		core.GetLogger().Errorf("big query writer error: %s. Some CDR may be lost", err)
		core.RecordCdrWriteError("bigquery")
	}

	ticker.Stop()
	close(w.doneChan)
}

// Sends the contents of the current batch to bigquery
func (w *BigQueryCDRWriter) sendToBigQuery(batch []*WritableCDR) error {
	if len(batch) == 0 {
		return nil
	}

	// For testing only
	if w._forceBigQueryError {
		return errors.New("fake error")
	}

	return w.table.Inserter().Put(context.Background(), batch)
}

// Processes the backup files (the ones with names terminating in ".w")
func (w *BigQueryCDRWriter) processBackupFiles() {

	// Will run forever
	for {
		// List backup files
		files, err := os.ReadDir(filepath.Dir(w.backupFileName))
		if err != nil {
			core.GetLogger().Errorf("could not list files in %s", filepath.Dir(w.backupFileName))
		}

		for _, file := range files {
			if strings.HasSuffix(file.Name(), ".w") {
				w.processBackupFile(file.Name())
			}
		}

		time.Sleep(BIGQUERY_BACKUP_CHECK_TIME_SECONDS * time.Second)
	}
}

// Inserts the contents of the backup file into Bigquery, and deletes
// the file if successful
func (w *BigQueryCDRWriter) processBackupFile(fileName string) error {

	var batch []*WritableCDR

	fullFileName := filepath.Dir(w.backupFileName) + "/" + fileName
	file, err := os.Open(fullFileName)

	core.GetLogger().Debugf("processing backup file %s", fullFileName)

	if err != nil {
		core.GetLogger().Errorf("could not open %s", fullFileName)
		return err
	}
	defer file.Close()

	fileScanner := bufio.NewScanner(file)
	// CDRs are separated by empty lines
	fileScanner.Split(splitAt("\n\n"))

	for fileScanner.Scan() {
		cdr := NewWritableCDRFromStrings(strings.Split(fileScanner.Text(), "\n"))
		batch = append(batch, cdr)
	}

	// Write the batch
	if err := w.sendToBigQuery(batch); err == nil {
		os.Remove(fullFileName)
	} else {
		core.GetLogger().Errorf("error processing backup file %s", fullFileName)
	}

	return err
}

func splitAt(substring string) func(data []byte, atEOF bool) (advance int, token []byte, err error) {
	searchBytes := []byte(substring)
	searchLength := len(substring)
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		dataLen := len(data)

		// Return nothing if at the end of file and no data passed
		if atEOF && dataLen == 0 {
			return 0, nil, nil
		}

		// Find next separator and return token
		if i := bytes.Index(data, searchBytes); i >= 0 {
			return i + searchLength, data[0:i], nil
		}

		// If we're at EOF, we have a final, non-terminated line. Return it
		if atEOF {
			return dataLen, data, nil
		}

		// Request more data
		return 0, nil, nil
	}
}
