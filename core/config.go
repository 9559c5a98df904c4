package core

import (
	"bytes"
	"crypto/tls"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/francistor/gy/resources"

	_ "github.com/go-sql-driver/mysql"
)

const (
	HTTP_TIMEOUT_SECONDS = 5
)

// Holds a SearchRule, which specifies where to look for a configuration object
type SearchRule struct {
	// Regex for the name of the object. If matching, we'll try to locate
	// it prepending the Origin property to compose the URL (file, http or
	// embedded resource). The regex contains a matching group that is the part
	// used to look for the object. For instance, in "Gy/(.*)", the part after
	// "Gy/" will be taken as the resource name to look after when retrieving
	// an object name such as Gy/peers.json
	NameRegex string

	// Compiled form of nameRegex
	Regex *regexp.Regexp

	// Can be a URL, a path, a gs:// or resource:// location, or a
	// database:table:keycolumn:paramscolumn specification
	Origin string
}

// The applicable Search Rules. Hold also the configuration for the configuration database
type SearchRules struct {
	Rules []SearchRule
	Db    struct {
		Url          string
		Driver       string
		MaxOpenConns int
	}
}

// Basic objects and methods to manage configuration objects without yet
// interpreting them. To be embedded in an ocsConfig or handlerConfig object.
// Multiple "instances" can coexist in a single executable (mainly for testing)
type ConfigurationManager struct {

	// Configuration objects are to be searched for in a path that contains
	// the instanceName first and, if not found, in a path without it. This
	// way a general configuration can be overriden
	instanceName string

	// The bootstrap file is the first configuration file read, and it contains
	// the rules for searching other files. It can be a local file or a URL
	bootstrapFile string

	// The contents of the bootstrapFile are parsed here
	searchRules SearchRules

	// Parameters to be replaced in the configuration objects, which are
	// treated as templates. Merged from GY_ prefixed environment variables
	// and the parameters passed upon initialization
	configParams map[string]string

	// Database Handle for access to the configuration database
	dbHandle *sql.DB
}

// The home location for configuration objects not referenced as absolute paths
var GyConfigBase string

// Creates and initializes a ConfigurationManager
func NewConfigurationManager(bootstrapFile string, instanceName string, configParams map[string]string) ConfigurationManager {
	cm := ConfigurationManager{
		instanceName:  instanceName,
		bootstrapFile: bootstrapFile,
		configParams:  mergeConfigParams(configParams),
	}

	cm.fillSearchRules(cm.fixBootstrapFileLocation(bootstrapFile, true))

	return cm
}

// Name of the instance for which this manager was built
func (c *ConfigurationManager) InstanceName() string {
	return c.instanceName
}

// Environment variables with the GY_ prefix are taken as configuration
// parameters, overriden by the ones explicitly passed
func mergeConfigParams(configParams map[string]string) map[string]string {

	params := make(map[string]string)
	for _, envKV := range os.Environ() {
		if strings.HasPrefix(envKV, "GY_") {
			kv := strings.SplitN(envKV, "=", 2)
			params[strings.TrimPrefix(kv[0], "GY_")] = kv[1]
		}
	}
	for k, v := range configParams {
		params[k] = v
	}

	return params
}

// Fills the object passed as parameter with the configuration object, which is
// parsed as templated JSON
func (c *ConfigurationManager) BuildObjectFromJsonConfig(objectName string, obj any) error {

	jb, err := c.GetBytesConfigObject(objectName)
	if err != nil {
		return err
	}
	return json.Unmarshal(jb, obj)
}

// Retrieves the configuration object with the template parameters replaced
func (c *ConfigurationManager) GetBytesConfigObject(objectName string) ([]byte, error) {

	cb, err := c.getObject(objectName)
	if err != nil {
		return nil, err
	}
	return c.untemplateObject(cb)
}

// Retrieves the configuration object as it is, without template processing
func (c *ConfigurationManager) GetRawBytesConfigObject(objectName string) ([]byte, error) {

	return c.getObject(objectName)
}

// Treats the object as a template and replaces the configuration parameters
func (c *ConfigurationManager) untemplateObject(object []byte) ([]byte, error) {

	tmpl, err := template.New("gy_config_object").Parse(string(object))
	if err != nil {
		return nil, fmt.Errorf("bad configuration template: %w", err)
	}

	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, c.configParams); err != nil {
		return nil, fmt.Errorf("could not execute configuration template: %w", err)
	}
	return buffer.Bytes(), nil
}

// Finds the origin from the SearchRules and reads the object, trying with
// instance name first, and then global
func (c *ConfigurationManager) getObject(objectName string) ([]byte, error) {

	// Iterate through Search Rules
	var origin string
	var innerName string

	for _, rule := range c.searchRules.Rules {
		if matches := rule.Regex.FindStringSubmatch(objectName); matches != nil {
			innerName = matches[1]
			origin = rule.Origin
			break
		}
	}
	if innerName == "" {
		// Not found
		return nil, errors.New("object name does not match any rules")
	}

	// Found, origin var contains the prefix

	if strings.HasPrefix(origin, "database:") {
		// Database object. Instance names do not apply
		return c.readResource(origin)
	}

	// Try first with instance name
	if c.instanceName != "" {
		if objectBytes, err := c.readResource(origin + c.instanceName + "/" + innerName); err == nil {
			return objectBytes, nil
		}
	}

	// Try without instance name
	return c.readResource(origin + innerName)
}

// Reads the configuration item from the specified location, which may be
// a file, an http(s) url, a google storage object, an embedded resource or
// a database table
func (c *ConfigurationManager) readResource(location string) ([]byte, error) {

	if strings.HasPrefix(location, "database") {
		// Format is database:table:keycolumn:paramscolumn
		// The returned object is always a JSON whose first level are properties,
		// not arrays, as per the values of the keycolumn
		items := strings.Split(location, ":")
		tableName := items[1]
		keyColumn := items[2]
		paramsColumn := items[3]

		// This is the object that will be returned
		entries := make(map[string]*json.RawMessage)

		stmt, err := c.dbHandle.Prepare(fmt.Sprintf("select %s, %s from %s", keyColumn, paramsColumn, tableName))
		if err != nil {
			return nil, fmt.Errorf("error reading from database. %s, %w", location, err)
		}
		rows, err := stmt.Query()
		if err != nil {
			return nil, fmt.Errorf("error reading from database. %s, %w", location, err)
		}
		defer rows.Close()

		var k string
		for rows.Next() {
			var v json.RawMessage
			err := rows.Scan(&k, &v)
			if err != nil {
				return nil, fmt.Errorf("error reading from database. %s, %w", location, err)
			}
			entries[k] = &v
		}
		err = rows.Err()
		if err != nil {
			return nil, fmt.Errorf("error reading from database. %s, %w", location, err)
		}

		return json.Marshal(entries)

	} else if strings.HasPrefix(location, "gs://") {
		// Read from google storage
		return getGoogleStorageObject(location)

	} else if strings.HasPrefix(location, "resource://") {
		// Read from the embedded resources
		return resources.Fs.ReadFile(strings.TrimPrefix(location, "resource://"))

	} else if strings.HasPrefix(location, "http:") || strings.HasPrefix(location, "https:") {
		// Read from http

		// Create client with timeout
		httpClient := http.Client{
			Timeout: HTTP_TIMEOUT_SECONDS * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // ignore self-signed SSL certificates
			},
		}

		// Location is a http URL
		resp, err := httpClient.Get(location)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("got status code %d while retrieving %s", resp.StatusCode, location)
		}
		if body, err := io.ReadAll(resp.Body); err != nil {
			return nil, err
		} else {
			return body, nil
		}

	} else {
		// Read from file
		if resp, err := os.ReadFile(GyConfigBase + location); err != nil {
			return nil, err
		} else {
			return resp, nil
		}
	}
}

// Reads the bootstrap file and fills the search rules for the Configuration Manager.
// To be called upon instantiation of the ConfigurationManager.
// The bootstrap file is not subject to instance searching rules: must reside in the
// specified location without appending instance name
func (c *ConfigurationManager) fillSearchRules(bootstrapFile string) {
	var shouldInitDB bool

	// Get the search rules object. The bootstrap file is also treated as a
	// template, so that items such as the database url may be parametrized
	rules, err := c.readResource(bootstrapFile)
	if err != nil {
		panic("could not retrieve the bootstrap file in " + bootstrapFile)
	}
	if rules, err = c.untemplateObject(rules); err != nil {
		panic("could not process the bootstrap file: " + err.Error())
	}

	// Decode Search Rules and add them to the ConfigurationManager object
	err = json.Unmarshal(rules, &c.searchRules)
	if err != nil || len(c.searchRules.Rules) == 0 {
		panic("could not decode the Search Rules or empty file")
	}

	// Add the compiled regular expression for each rule and sanity check for database origins
	for i, sr := range c.searchRules.Rules {
		if c.searchRules.Rules[i].Regex, err = regexp.Compile(sr.NameRegex); err != nil {
			panic("could not compile Search Rule Regex: " + sr.NameRegex)
		}
		origin := c.searchRules.Rules[i].Origin
		if strings.HasPrefix(origin, "database") {
			shouldInitDB = true
			if len(strings.Split(c.searchRules.Rules[i].Origin, ":")) != 4 {
				panic("bad format for database search rule: " + origin)
			}
		}
	}

	// Create database handle
	if shouldInitDB {
		if c.searchRules.Db.Driver != "" && c.searchRules.Db.Url != "" {
			c.dbHandle, err = sql.Open(c.searchRules.Db.Driver, c.searchRules.Db.Url)
			if err != nil {
				panic("could not create database object " + c.searchRules.Db.Driver)
			}
			c.dbHandle.SetMaxOpenConns(c.searchRules.Db.MaxOpenConns)

			err = c.dbHandle.Ping()
			if err != nil {
				// If the database is not available, die
				panic("could not ping database in " + c.searchRules.Db.Url)
			}
		} else {
			panic("db access parameters not specified in searchrules")
		}
	}
}

// Sets the core.GyConfigBase variable as the directory where the bootstrap file resides
// and returns the normalized location of that bootstrap file, looking for it in the current
// directory and in the parent directory, which is useful for tests
func (c *ConfigurationManager) fixBootstrapFileLocation(bootstrapFileName string, tryWithParent bool) string {

	// Skip if file is in a remote or embedded location
	if strings.HasPrefix(bootstrapFileName, "http:") || strings.HasPrefix(bootstrapFileName, "https:") ||
		strings.HasPrefix(bootstrapFileName, "resource://") || strings.HasPrefix(bootstrapFileName, "gs://") {
		return bootstrapFileName
	}

	// Try first with the specification as it is
	if fileInfo, err := os.Stat(bootstrapFileName); err == nil {
		// File found
		abs, err := filepath.Abs(bootstrapFileName)
		if err != nil {
			panic(err)
		}
		GyConfigBase = filepath.Dir(abs) + "/"
		return fileInfo.Name()
	}

	if !tryWithParent {
		panic("could not find the bootstrap file in " + bootstrapFileName)
	} else {
		return c.fixBootstrapFileLocation("../"+bootstrapFileName, false)
	}
}
