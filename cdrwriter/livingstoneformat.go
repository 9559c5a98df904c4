package cdrwriter

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/francistor/gy/core"
)

type LivingstoneFormat struct {
	positiveFilter      []string
	negativeFilter      []string
	headDateFormat      string
	attributeDateFormat string
}

// Creates a new instance of a Livingstone Formatter
func NewLivingstoneFormat(positiveFilter []string, negativeFilter []string, headDateFormat string, attributeDateFormat string) *LivingstoneFormat {
	lf := LivingstoneFormat{
		positiveFilter:      positiveFilter,
		negativeFilter:      negativeFilter,
		headDateFormat:      headDateFormat,
		attributeDateFormat: attributeDateFormat,
	}

	return &lf
}

// Writes the Diameter CDR as one Name="value" line per AVP, with a
// timestamp header line
func (f *LivingstoneFormat) GetCDRString(dm *core.DiameterMessage) string {
	var builder strings.Builder

	// Write header
	builder.WriteString(time.Now().Format(f.headDateFormat))
	builder.WriteString("\n")

	// Write AVPs
	for i := range dm.AVPs {

		// Apply filters
		if f.positiveFilter != nil && !slices.Contains(f.positiveFilter, dm.AVPs[i].Name) {
			continue
		} else if f.negativeFilter != nil && slices.Contains(f.negativeFilter, dm.AVPs[i].Name) {
			continue
		}

		builder.WriteString(dm.AVPs[i].Name)

		switch dm.AVPs[i].DictItem.DiameterType {

		case core.DiameterTypeInteger32, core.DiameterTypeInteger64, core.DiameterTypeUnsigned32,
			core.DiameterTypeUnsigned64:
			builder.WriteString("=")
			builder.WriteString(fmt.Sprintf("%d", dm.AVPs[i].GetInt()))
			builder.WriteString("\n")

		case core.DiameterTypeEnumerated:
			// Try dictionary, if not found use the integer value
			var intValue = dm.AVPs[i].GetInt()
			if stringValue, ok := dm.AVPs[i].DictItem.EnumCodes[int(intValue)]; ok {
				builder.WriteString("=\"")
				builder.WriteString(stringValue)
				builder.WriteString("\"\n")
			} else {
				builder.WriteString("=")
				builder.WriteString(fmt.Sprintf("%d", intValue))
				builder.WriteString("\n")
			}

		case core.DiameterTypeTime:
			builder.WriteString("=\"")
			builder.WriteString(dm.AVPs[i].GetDate().Format(f.attributeDateFormat))
			builder.WriteString("\"\n")

		default:
			// Write as a string
			builder.WriteString("=\"")
			builder.WriteString(dm.AVPs[i].GetString())
			builder.WriteString("\"\n")
		}
	}

	builder.WriteString("\n")

	return builder.String()
}
