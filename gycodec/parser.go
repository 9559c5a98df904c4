package gycodec

import (
	"fmt"
	"time"

	"github.com/francistor/gy/core"
)

// Service unit counters extracted from a *-Service-Unit grouped AVP,
// keyed by unit AVP name, such as "CC-Time" or "CC-Total-Octets"
type ServiceUnitAmounts map[string]int64

// One Subscription-Id occurrence. Type is the raw enumerated value
// (e.g. 0 for END_USER_E164)
type SubscriptionId struct {
	Type int64
	Data string
}

// One Service-Parameter-Info occurrence. The value is kept as raw bytes
type ServiceParameter struct {
	Type  int64
	Value []byte
}

// Decimal as transmitted in a Unit-Value grouped AVP. The amount is
// ValueDigits * 10^Exponent
type UnitValue struct {
	ValueDigits int64
	Exponent    int64
}

// Contents of a CC-Money grouped AVP
type Money struct {
	Value        UnitValue
	CurrencyCode int64
}

// Contents of a Cost-Information grouped AVP
type CostInformation struct {
	Value        UnitValue
	CurrencyCode int64
	CostUnit     string
}

// Flat view of a Credit-Control-Request. Request-level scalars plus the
// contents of the well known grouped AVPs. RequestedAction is -1 when the
// AVP was not present, since 0 is a valid value (DIRECT_DEBITING)
type ParsedCCR struct {
	MessageType          string
	SessionId            string
	OriginHost           string
	OriginRealm          string
	DestinationRealm     string
	ServiceContextId     string
	CCRequestType        int64
	CCRequestNumber      int64
	RequestedAction      int64
	SubscriptionIds      []SubscriptionId
	RequestedServiceUnit ServiceUnitAmounts
	UsedServiceUnit      ServiceUnitAmounts
	ServiceParameters    []ServiceParameter
	EventTimestamp       time.Time
}

// Flat view of a Credit-Control-Answer. FinalUnitAction is -1 when no
// Final-Unit-Indication was present, since 0 is a valid value (TERMINATE)
type ParsedCCA struct {
	MessageType        string
	SessionId          string
	ResultCode         int64
	OriginHost         string
	OriginRealm        string
	CCRequestType      int64
	CCRequestNumber    int64
	GrantedServiceUnit ServiceUnitAmounts
	ValidityTime       int64
	CostInformation    *CostInformation
	Money              *Money
	FinalUnitAction    int64
}

// Extracts the well known fields of a Credit-Control-Request in a single
// pass over the AVPs. AVPs not in the dictionary, and dictionary AVPs with
// no corresponding field, are skipped. Repeated Subscription-Id and
// Service-Parameter-Info AVPs accumulate in message order; repeated scalars
// keep the last value seen
func ParseCCR(ccr *core.DiameterMessage) (*ParsedCCR, error) {

	if ccr == nil {
		return nil, fmt.Errorf("nil diameter message")
	}

	parsed := ParsedCCR{
		MessageType:          "CCR",
		RequestedAction:      -1,
		RequestedServiceUnit: ServiceUnitAmounts{},
		UsedServiceUnit:      ServiceUnitAmounts{},
	}

	for i := range ccr.AVPs {
		avp := &ccr.AVPs[i]
		switch avp.Name {
		case "Session-Id":
			parsed.SessionId = avp.GetString()
		case "Origin-Host":
			parsed.OriginHost = avp.GetString()
		case "Origin-Realm":
			parsed.OriginRealm = avp.GetString()
		case "Destination-Realm":
			parsed.DestinationRealm = avp.GetString()
		case "Service-Context-Id":
			parsed.ServiceContextId = avp.GetString()
		case "CC-Request-Type":
			parsed.CCRequestType = avp.GetInt()
		case "CC-Request-Number":
			parsed.CCRequestNumber = avp.GetInt()
		case "Requested-Action":
			parsed.RequestedAction = avp.GetInt()
		case "Event-Timestamp":
			parsed.EventTimestamp = avp.GetDate()
		case "Subscription-Id":
			parsed.SubscriptionIds = append(parsed.SubscriptionIds, parseSubscriptionId(avp))
		case "Requested-Service-Unit":
			units, _ := parseServiceUnits(avp)
			mergeServiceUnits(parsed.RequestedServiceUnit, units)
		case "Used-Service-Unit":
			units, _ := parseServiceUnits(avp)
			mergeServiceUnits(parsed.UsedServiceUnit, units)
		case "Service-Parameter-Info":
			parsed.ServiceParameters = append(parsed.ServiceParameters, parseServiceParameter(avp))
		}
	}

	return &parsed, nil
}

// Extracts the well known fields of a Credit-Control-Answer, following the
// same skipping and accumulation rules as ParseCCR
func ParseCCA(cca *core.DiameterMessage) (*ParsedCCA, error) {

	if cca == nil {
		return nil, fmt.Errorf("nil diameter message")
	}

	parsed := ParsedCCA{
		MessageType:        "CCA",
		GrantedServiceUnit: ServiceUnitAmounts{},
		FinalUnitAction:    -1,
	}

	for i := range cca.AVPs {
		avp := &cca.AVPs[i]
		switch avp.Name {
		case "Session-Id":
			parsed.SessionId = avp.GetString()
		case "Result-Code":
			parsed.ResultCode = avp.GetInt()
		case "Origin-Host":
			parsed.OriginHost = avp.GetString()
		case "Origin-Realm":
			parsed.OriginRealm = avp.GetString()
		case "CC-Request-Type":
			parsed.CCRequestType = avp.GetInt()
		case "CC-Request-Number":
			parsed.CCRequestNumber = avp.GetInt()
		case "Validity-Time":
			parsed.ValidityTime = avp.GetInt()
		case "Granted-Service-Unit":
			units, money := parseServiceUnits(avp)
			mergeServiceUnits(parsed.GrantedServiceUnit, units)
			if money != nil {
				parsed.Money = money
			}
		case "Cost-Information":
			costInformation := parseCostInformation(avp)
			parsed.CostInformation = &costInformation
		case "Final-Unit-Indication":
			for _, child := range groupedAVPs(avp) {
				if child.Name == "Final-Unit-Action" {
					parsed.FinalUnitAction = child.GetInt()
				}
			}
		}
	}

	return &parsed, nil
}

// Returns the child AVPs of a grouped AVP, or nothing when the AVP does not
// actually hold a group
func groupedAVPs(avp *core.DiameterAVP) []core.DiameterAVP {
	children, ok := avp.Value.([]core.DiameterAVP)
	if !ok {
		return nil
	}
	return children
}

func mergeServiceUnits(into ServiceUnitAmounts, units ServiceUnitAmounts) {
	for unit, value := range units {
		into[unit] = value
	}
}

func parseSubscriptionId(avp *core.DiameterAVP) SubscriptionId {
	var subscriptionId SubscriptionId
	for _, child := range groupedAVPs(avp) {
		switch child.Name {
		case "Subscription-Id-Type":
			subscriptionId.Type = child.GetInt()
		case "Subscription-Id-Data":
			subscriptionId.Data = child.GetString()
		}
	}
	return subscriptionId
}

// Extracts the unit counters of a Requested-, Used- or Granted-Service-Unit
// grouped AVP. A CC-Money child is not a flat counter and is reported apart
func parseServiceUnits(avp *core.DiameterAVP) (ServiceUnitAmounts, *Money) {
	units := ServiceUnitAmounts{}
	var money *Money
	for _, child := range groupedAVPs(avp) {
		switch child.Name {
		case "CC-Time", "CC-Total-Octets", "CC-Input-Octets", "CC-Output-Octets", "CC-Service-Specific-Units":
			units[child.Name] = child.GetInt()
		case "CC-Money":
			m := parseMoney(&child)
			money = &m
		}
	}
	return units, money
}

func parseMoney(avp *core.DiameterAVP) Money {
	var money Money
	for _, child := range groupedAVPs(avp) {
		switch child.Name {
		case "Unit-Value":
			money.Value = parseUnitValue(&child)
		case "Currency-Code":
			money.CurrencyCode = child.GetInt()
		}
	}
	return money
}

func parseUnitValue(avp *core.DiameterAVP) UnitValue {
	var unitValue UnitValue
	for _, child := range groupedAVPs(avp) {
		switch child.Name {
		case "Value-Digits":
			unitValue.ValueDigits = child.GetInt()
		case "Exponent":
			unitValue.Exponent = child.GetInt()
		}
	}
	return unitValue
}

func parseCostInformation(avp *core.DiameterAVP) CostInformation {
	var costInformation CostInformation
	for _, child := range groupedAVPs(avp) {
		switch child.Name {
		case "Unit-Value":
			costInformation.Value = parseUnitValue(&child)
		case "Currency-Code":
			costInformation.CurrencyCode = child.GetInt()
		case "Cost-Unit":
			costInformation.CostUnit = child.GetString()
		}
	}
	return costInformation
}

func parseServiceParameter(avp *core.DiameterAVP) ServiceParameter {
	var serviceParameter ServiceParameter
	for _, child := range groupedAVPs(avp) {
		switch child.Name {
		case "Service-Parameter-Type":
			serviceParameter.Type = child.GetInt()
		case "Service-Parameter-Value":
			serviceParameter.Value = child.GetOctets()
		}
	}
	return serviceParameter
}
