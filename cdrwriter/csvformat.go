package cdrwriter

import (
	"fmt"
	"strings"

	"github.com/francistor/gy/core"
)

type CSVFormat struct {
	fields              []string
	fieldSeparator      string
	attributeSeparator  string
	attributeDateFormat string
	quoteStrings        bool
}

// Creates a new instance of a CSV Formatter. The fields parameter holds the
// AVP names to write, one CSV field per name, in order. Multiple instances
// of the same AVP are joined with the attributeSeparator
func NewCSVFormat(fields []string, fieldSeparator string, attributeSeparator string, attributeDateFormat string, quoteStrings bool) *CSVFormat {
	cf := CSVFormat{
		fields:              fields,
		fieldSeparator:      fieldSeparator,
		attributeSeparator:  attributeSeparator,
		attributeDateFormat: attributeDateFormat,
		quoteStrings:        quoteStrings,
	}

	return &cf
}

// Writes the Diameter CDR as one CSV line
func (f *CSVFormat) GetCDRString(dm *core.DiameterMessage) string {
	var builder strings.Builder

	for i, field := range f.fields {

		avps := dm.GetAllAVP(field)
		// Fields may refer to attributes nested in a grouped AVP, dot separated
		if len(avps) == 0 && strings.Contains(field, ".") {
			if avp, err := dm.GetAVPFromPath(field); err == nil {
				avps = []core.DiameterAVP{avp}
			}
		}
		if len(avps) > 0 {
			switch avps[0].DictItem.DiameterType {

			case core.DiameterTypeInteger32, core.DiameterTypeInteger64, core.DiameterTypeUnsigned32,
				core.DiameterTypeUnsigned64, core.DiameterTypeEnumerated:
				for j := range avps {
					builder.WriteString(fmt.Sprintf("%d", avps[j].GetInt()))
					if j < len(avps)-1 {
						builder.WriteString(f.attributeSeparator)
					}
				}

			case core.DiameterTypeFloat32, core.DiameterTypeFloat64:
				for j := range avps {
					builder.WriteString(fmt.Sprintf("%f", avps[j].GetFloat()))
					if j < len(avps)-1 {
						builder.WriteString(f.attributeSeparator)
					}
				}

			case core.DiameterTypeTime:
				for j := range avps {
					builder.WriteString(avps[j].GetDate().Format(f.attributeDateFormat))
					if j < len(avps)-1 {
						builder.WriteString(f.attributeSeparator)
					}
				}

			default:
				// OctetString, UTF8String, DiamIdent, Address, Grouped and the rest
				// are written as strings
				if f.quoteStrings {
					builder.WriteString("\"")
				}
				for j := range avps {
					builder.WriteString(avps[j].GetString())
					if j < len(avps)-1 {
						builder.WriteString(f.attributeSeparator)
					}
				}
				if f.quoteStrings {
					builder.WriteString("\"")
				}
			}
		}

		if i < len(f.fields)-1 {
			builder.WriteString(f.fieldSeparator)
		}
	}

	builder.WriteString("\n")

	return builder.String()
}
