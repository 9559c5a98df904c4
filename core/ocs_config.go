package core

import (
	"fmt"
)

// Manages the configuration items for the online charging server.
// The calls to get the configuration objects return a copy. If Update
// is called later, the copy returned is not modified.
type OcsConfigurationManager struct {
	CM ConfigurationManager

	ocsServerConfig *ConfigObject[OcsServerConfig]
	chargingPlans   *TemplatedMapConfigObject[ChargingPlan, ChargingPlanParams]
}

// Slice of configuration managers
// Except during testing, there will be only one instance, which will be retrieved with GetOcsConfig().
// To retrieve a specific instance, use GetOcsConfigInstance(<instance-name>)
var ocsConfigs []*OcsConfigurationManager = make([]*OcsConfigurationManager, 0)

// Adds an OCS configuration object with the specified name to the list of ocsConfigs.
// If isDefault is true, also initializes the logger, the diameter dictionary and the
// metrics server, which are shared among all instances
func InitOcsConfigInstance(bootstrapFile string, instanceName string,
	configParams map[string]string, isDefault bool) *OcsConfigurationManager {

	// Check not already instantiated. Not perfect, since it is subject to race conditions,
	// but anyway multiple configuration managers are only used for testing, where
	// conditions are quite controlled
	for i := range ocsConfigs {
		if ocsConfigs[i].CM.instanceName == instanceName {
			panic(instanceName + " already initalized")
		}
	}

	// Better to create asap
	ocsConfig := OcsConfigurationManager{
		CM:              NewConfigurationManager(bootstrapFile, instanceName, configParams),
		ocsServerConfig: NewConfigObject[OcsServerConfig]("ocsServer.json"),
		chargingPlans:   NewTemplatedMapConfigObject[ChargingPlan, ChargingPlanParams]("chargingPlanTemplate.json", "chargingPlanParameters.json"),
	}
	ocsConfigs = append(ocsConfigs, &ocsConfig)

	// Initialize logger, dictionary and metrics, if default
	if isDefault {
		initLogger(&ocsConfig.CM)
		initDiameterDict(&ocsConfig.CM)
		initMetricsServer(&ocsConfig.CM)
	}

	// Load OCS configuraton
	var cerr error
	if cerr = ocsConfig.UpdateOcsServerConfig(); cerr != nil {
		panic(cerr)
	}
	if cerr = ocsConfig.UpdateChargingPlans(); cerr != nil {
		panic(cerr)
	}

	return &ocsConfig
}

// Retrieves a specific configuration instance
func GetOcsConfigInstance(instanceName string) *OcsConfigurationManager {

	for i := range ocsConfigs {
		if ocsConfigs[i].CM.instanceName == instanceName {
			return ocsConfigs[i]
		}
	}

	panic("configuraton instance <" + instanceName + "> not configured")
}

// Retrieves the default configuration instance, which is the first one in the list.
// Will panic if none is configured
func GetOcsConfig() *OcsConfigurationManager {
	return ocsConfigs[0]
}

///////////////////////////////////////////////////////////////////////////////

// Holds the configuration of the online charging server, as stored in the
// ocsServer.json file
type OcsServerConfig struct {
	// Value of the Origin-Host attribute in the generated answers
	OriginHost string
	// Value of the Origin-Realm attribute in the generated answers
	OriginRealm string
	// Name of the charging plan to apply when the subscriber has none assigned
	DefaultChargingPlan string

	// Directory where the CDR files are written. Empty disables file CDR writing
	CdrDirectory string
	// Pattern of the names of the CDR files, in time.Format layout
	CdrFilenamePattern string

	// BigQuery destination for CDR. Empty dataset disables bigquery CDR writing
	BigQueryDataset string
	BigQueryTable   string
}

// Defaults for the optional items
func (c *OcsServerConfig) initialize() error {
	if c.DefaultChargingPlan == "" {
		return fmt.Errorf("DefaultChargingPlan must be specified")
	}
	if c.CdrFilenamePattern == "" {
		c.CdrFilenamePattern = "cdr_2006-01-02.txt"
	}

	return nil
}

// Updates the ocs server configuration in the corresponding configuration manager
func (c *OcsConfigurationManager) UpdateOcsServerConfig() error {
	return c.ocsServerConfig.Update(&c.CM)
}

// Retrieves the contents of the ocs server configuration for this configuration manager
func (c *OcsConfigurationManager) OcsServerConf() OcsServerConfig {
	return c.ocsServerConfig.Get()
}

///////////////////////////////////////////////////////////////////////////////

// Holds the credit granted per interrogation to the subscribers of a plan, plus
// the rating parameters used to generate the Cost-Information in the final answer
type ChargingPlan struct {
	Name string

	// Seconds granted on each interrogation, sent as CC-Time
	GrantedSeconds int64
	// Octets granted on each interrogation, sent as CC-Total-Octets
	GrantedOctets int64
	// Value of the Validity-Time attribute
	ValiditySeconds int64

	// ISO 4217 numeric code for the Currency-Code attribute
	CurrencyCode int64
	// Price of each started megabyte, used to build the Cost-Information
	PricePerMegabyte float64
}

// Parameters to instantiate the charging plan template for each plan name
type ChargingPlanParams struct {
	Name             string
	GrantedSeconds   int64
	GrantedOctets    int64
	ValiditySeconds  int64
	CurrencyCode     int64
	PricePerMegabyte float64
}

// Updates the charging plans configuration in the corresponding configuration manager
func (c *OcsConfigurationManager) UpdateChargingPlans() error {
	return c.chargingPlans.Update(&c.CM)
}

// Retrieves all the charging plans defined
func (c *OcsConfigurationManager) ChargingPlans() map[string]ChargingPlan {
	return c.chargingPlans.Get()
}

// Retrieves the charging plan with the specified name, or the default one
// if the name passed is empty
func (c *OcsConfigurationManager) ChargingPlan(planName string) (ChargingPlan, error) {
	if planName == "" {
		planName = c.OcsServerConf().DefaultChargingPlan
	}
	return c.chargingPlans.GetKey(planName)
}
