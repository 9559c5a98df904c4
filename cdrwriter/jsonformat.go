package cdrwriter

import (
	"encoding/json"

	"golang.org/x/exp/slices"

	"github.com/francistor/gy/core"
)

type JSONFormat struct {
	positiveFilter []string
	negativeFilter []string
}

// Creates a new instance of a JSON Formatter. If the positive filter is not
// nil, only the AVPs named there are written. AVPs named in the negative
// filter are always excluded
func NewJSONFormat(positiveFilter []string, negativeFilter []string) *JSONFormat {
	jf := JSONFormat{
		positiveFilter: positiveFilter,
		negativeFilter: negativeFilter,
	}

	return &jf
}

// There is no specific field for the Timestamp. If needed, an Event-Timestamp
// attribute must be added in the handler before writing the CDR

// Writes the Diameter CDR in JSON format
func (f *JSONFormat) GetCDRString(dm *core.DiameterMessage) string {
	toSerialize := make([]*core.DiameterAVP, 0)

	// Write AVPs
	for i := range dm.AVPs {

		// Apply filters
		if f.positiveFilter != nil && !slices.Contains(f.positiveFilter, dm.AVPs[i].Name) {
			continue
		} else if f.negativeFilter != nil && slices.Contains(f.negativeFilter, dm.AVPs[i].Name) {
			continue
		}

		toSerialize = append(toSerialize, &dm.AVPs[i])
	}

	jsonAttributes, _ := json.Marshal(toSerialize)
	return string(jsonAttributes) + "\n"
}
