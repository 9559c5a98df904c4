package core

import (
	"errors"
	"sync"
)

// The Diameter dictionary is shared by all configuration instances. It is
// loaded lazily, at most once per process, upon the first GetDDict call
var (
	diameterDict     *DiameterDict
	diameterDictErr  error
	diameterDictOnce sync.Once
	diameterDictCm   *ConfigurationManager
)

// Registers the configuration manager from which the Diameter dictionary
// will be read. The dictionary itself is not retrieved until first needed
func initDiameterDict(cm *ConfigurationManager) {
	diameterDictCm = cm
}

// Used globally to get access to the Diameter dictionary. The first caller
// triggers the load; every caller sees either the fully loaded dictionary or,
// if the load failed, an empty one where all lookups miss. A partially
// loaded dictionary is never visible
func GetDDict() *DiameterDict {
	diameterDictOnce.Do(loadDiameterDict)
	return diameterDict
}

// Returns the error recorded while loading the dictionary, nil if the load
// went well. Triggers the load if not yet done
func GetDDictError() error {
	diameterDictOnce.Do(loadDiameterDict)
	return diameterDictErr
}

func loadDiameterDict() {

	if diameterDictCm == nil {
		diameterDictErr = &DiameterDictError{errors.New("no configuration instance registered")}
		diameterDict = newEmptyDiameterDict()
		return
	}

	jDict, err := diameterDictCm.GetBytesConfigObject("gyDictionary.json")
	if err != nil {
		diameterDictErr = &DiameterDictError{err}
	} else {
		diameterDict, diameterDictErr = NewDiameterDictionaryFromJSON(jDict)
	}

	if diameterDictErr != nil {
		GetLogger().Errorf("continuing with an empty diameter dictionary: %s", diameterDictErr)
		diameterDict = newEmptyDiameterDict()
	}
}
