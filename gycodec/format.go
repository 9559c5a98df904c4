package gycodec

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/exp/slices"

	"github.com/francistor/gy/core"
)

// Canonical display position of the well known Gy AVPs. AVPs not listed
// here sort after all the listed ones, keeping their relative order
var gyDisplayOrder = []string{
	"Session-Id",
	"Origin-Host",
	"Origin-Realm",
	"Destination-Realm",
	"Destination-Host",
	"Auth-Application-Id",
	"Service-Context-Id",
	"CC-Request-Type",
	"CC-Request-Number",
	"User-Name",
	"Origin-State-Id",
	"Event-Timestamp",
	"Subscription-Id",
	"Termination-Cause",
	"Requested-Service-Unit",
	"Requested-Action",
	"Used-Service-Unit",
	"Multiple-Services-Indicator",
	"Multiple-Services-Credit-Control",
	"Service-Parameter-Info",
	"CC-Correlation-Id",
	"User-Equipment-Info",
	"Result-Code",
	"CC-Session-Failover",
	"Granted-Service-Unit",
	"Cost-Information",
	"Final-Unit-Indication",
	"Check-Balance-Result",
	"Credit-Control-Failure-Handling",
	"Direct-Debiting-Failure-Handling",
	"Validity-Time",
	"Error-Message",
	"Route-Record",
	"3GPP-Service-Information",
}

var gyDisplayRank = buildDisplayRank()

func buildDisplayRank() map[string]int {
	rank := make(map[string]int, len(gyDisplayOrder))
	for i, name := range gyDisplayOrder {
		rank[name] = i
	}
	return rank
}

// Renders the message as an indented report, one line per AVP, in message
// order. Children of grouped AVPs are indented two additional spaces per
// nesting level. Enumerated values are annotated with the symbolic name
// when the dictionary defines one. Rendering never fails: octets that are
// not valid UTF-8 are written as hex
func Render(m *core.DiameterMessage) string {

	var sb strings.Builder

	for i := range m.AVPs {
		renderAVP(&sb, &m.AVPs[i], 0)
	}

	return sb.String()
}

func renderAVP(sb *strings.Builder, avp *core.DiameterAVP, depth int) {

	indent := strings.Repeat("  ", depth)

	switch avp.DictItem.DiameterType {

	case core.DiameterTypeGrouped:
		fmt.Fprintf(sb, "%s%s:\n", indent, avp.Name)
		for _, child := range groupedAVPs(avp) {
			renderAVP(sb, &child, depth+1)
		}

	case core.DiameterTypeEnumerated:
		value := avp.GetInt()
		if symbol, found := avp.DictItem.EnumCodes[int(value)]; found {
			fmt.Fprintf(sb, "%s%s: %d (%s)\n", indent, avp.Name, value, symbol)
		} else {
			fmt.Fprintf(sb, "%s%s: %d\n", indent, avp.Name, value)
		}

	case core.DiameterTypeNone, core.DiameterTypeOctetString:
		octets := avp.GetOctets()
		if utf8.Valid(octets) {
			fmt.Fprintf(sb, "%s%s: %s\n", indent, avp.Name, string(octets))
		} else {
			fmt.Fprintf(sb, "%s%s: 0x%s\n", indent, avp.Name, hex.EncodeToString(octets))
		}

	case core.DiameterTypeTime:
		fmt.Fprintf(sb, "%s%s: %s\n", indent, avp.Name, avp.GetDate().UTC().Format(core.TimeFormatString))

	case core.DiameterTypeAddress:
		fmt.Fprintf(sb, "%s%s: %s\n", indent, avp.Name, avp.GetIPAddress())

	default:
		fmt.Fprintf(sb, "%s%s: %s\n", indent, avp.Name, avp.GetString())
	}
}

// Returns a copy of the AVPs reordered for display: the well known Gy AVPs
// in canonical order first, then the rest in their original order. The
// sort is stable, so repeated AVPs keep their relative positions
func SortForDisplay(avps []core.DiameterAVP) []core.DiameterAVP {

	sorted := make([]core.DiameterAVP, len(avps))
	copy(sorted, avps)

	slices.SortStableFunc(sorted, func(a, b core.DiameterAVP) int {
		return displayRank(a.Name) - displayRank(b.Name)
	})

	return sorted
}

func displayRank(name string) int {
	if rank, found := gyDisplayRank[name]; found {
		return rank
	}
	return len(gyDisplayOrder)
}
