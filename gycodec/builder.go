package gycodec

import (
	"fmt"

	"github.com/francistor/gy/core"
)

// UnresolvedAVPError reports that the builder tried to emit an AVP whose
// name or enumerated symbol is not in the dictionary. The build call fails
// as a whole and no message is returned
type UnresolvedAVPError struct {
	Name string
	Err  error
}

func (e *UnresolvedAVPError) Error() string {
	return fmt.Sprintf("unresolved avp %s: %v", e.Name, e.Err)
}

func (e *UnresolvedAVPError) Unwrap() error {
	return e.Err
}

// Identities and session attributes common to all CCR variants
type CCRParams struct {
	SessionId        string
	OriginHost       string
	OriginRealm      string
	DestinationRealm string
	ServiceContextId string
}

// One service unit counter, such as {"CC-Time", 300}
type UnitAmount struct {
	Unit  string
	Value int64
}

// Ordered collection of unit counters. The order of the slice is the order
// in which the corresponding AVPs are emitted
type ServiceUnits []UnitAmount

// Builds a CCR with CC-Request-Type INITIAL_REQUEST and CC-Request-Number 0,
// reporting the subscriber as a Subscription-Id of type END_USER_E164
func BuildCCRInitial(p CCRParams, msisdn string) (*core.DiameterMessage, error) {

	ccr, err := newCCR(p, "INITIAL_REQUEST", 0)
	if err != nil {
		return nil, err
	}

	subscriptionIdAVP, err := newSubscriptionIdAVP("END_USER_E164", msisdn)
	if err != nil {
		return nil, err
	}
	ccr.AddAVP(subscriptionIdAVP)

	return ccr, nil
}

// Builds a CCR with CC-Request-Type UPDATE_REQUEST and the specified
// CC-Request-Number. The used and requested unit counters are reported in a
// Used-Service-Unit and a Requested-Service-Unit grouped AVP respectively,
// one child AVP per counter, in slice order. An empty or nil slice emits no
// grouped AVP at all
func BuildCCRUpdate(p CCRParams, requestNumber int64, used ServiceUnits, requested ServiceUnits) (*core.DiameterMessage, error) {

	ccr, err := newCCR(p, "UPDATE_REQUEST", requestNumber)
	if err != nil {
		return nil, err
	}

	if len(used) > 0 {
		usedAVP, err := newServiceUnitAVP("Used-Service-Unit", used)
		if err != nil {
			return nil, err
		}
		ccr.AddAVP(usedAVP)
	}

	if len(requested) > 0 {
		requestedAVP, err := newServiceUnitAVP("Requested-Service-Unit", requested)
		if err != nil {
			return nil, err
		}
		ccr.AddAVP(requestedAVP)
	}

	return ccr, nil
}

// Builds a CCR with CC-Request-Type TERMINATION_REQUEST and the specified
// CC-Request-Number, optionally reporting the final used unit counters
func BuildCCRTerminate(p CCRParams, requestNumber int64, used ServiceUnits) (*core.DiameterMessage, error) {

	ccr, err := newCCR(p, "TERMINATION_REQUEST", requestNumber)
	if err != nil {
		return nil, err
	}

	if len(used) > 0 {
		usedAVP, err := newServiceUnitAVP("Used-Service-Unit", used)
		if err != nil {
			return nil, err
		}
		ccr.AddAVP(usedAVP)
	}

	return ccr, nil
}

// Builds the head common to all CCR variants. AVPs are emitted in fixed
// order: Session-Id, Origin-Host, Origin-Realm, Destination-Realm,
// Auth-Application-Id, CC-Request-Type, CC-Request-Number and
// Service-Context-Id
func newCCR(p CCRParams, requestType string, requestNumber int64) (*core.DiameterMessage, error) {

	ccr, err := core.NewDiameterRequest("Credit-Control", "Credit-Control")
	if err != nil {
		return nil, &UnresolvedAVPError{Name: "Credit-Control", Err: err}
	}

	if err := addAVP(ccr, "Session-Id", p.SessionId); err != nil {
		return nil, err
	}
	if err := addAVP(ccr, "Origin-Host", p.OriginHost); err != nil {
		return nil, err
	}
	if err := addAVP(ccr, "Origin-Realm", p.OriginRealm); err != nil {
		return nil, err
	}
	if err := addAVP(ccr, "Destination-Realm", p.DestinationRealm); err != nil {
		return nil, err
	}
	if err := addAVP(ccr, "Auth-Application-Id", core.GY_APPLICATION_ID); err != nil {
		return nil, err
	}
	if err := addAVP(ccr, "CC-Request-Type", requestType); err != nil {
		return nil, err
	}
	if err := addAVP(ccr, "CC-Request-Number", requestNumber); err != nil {
		return nil, err
	}
	if err := addAVP(ccr, "Service-Context-Id", p.ServiceContextId); err != nil {
		return nil, err
	}

	return ccr, nil
}

// Resolves the AVP in the dictionary and appends it to the message. A
// dictionary miss aborts the build instead of emitting a placeholder
func addAVP(ccr *core.DiameterMessage, name string, value interface{}) error {
	avp, err := core.NewDiameterAVP(name, value)
	if err != nil {
		return &UnresolvedAVPError{Name: name, Err: err}
	}
	ccr.AddAVP(avp)
	return nil
}

// Builds a Subscription-Id grouped AVP with the specified type symbol
// (e.g. END_USER_E164) and data
func newSubscriptionIdAVP(subscriptionIdType string, subscriptionIdData string) (*core.DiameterAVP, error) {

	subscriptionIdAVP, err := core.NewDiameterAVP("Subscription-Id", nil)
	if err != nil {
		return nil, &UnresolvedAVPError{Name: "Subscription-Id", Err: err}
	}

	typeAVP, err := core.NewDiameterAVP("Subscription-Id-Type", subscriptionIdType)
	if err != nil {
		return nil, &UnresolvedAVPError{Name: "Subscription-Id-Type", Err: err}
	}
	subscriptionIdAVP.AddAVP(*typeAVP)

	dataAVP, err := core.NewDiameterAVP("Subscription-Id-Data", subscriptionIdData)
	if err != nil {
		return nil, &UnresolvedAVPError{Name: "Subscription-Id-Data", Err: err}
	}
	subscriptionIdAVP.AddAVP(*dataAVP)

	return subscriptionIdAVP, nil
}

// Builds a Used-Service-Unit, Requested-Service-Unit or Granted-Service-Unit
// grouped AVP with one child AVP per unit counter, in slice order
func newServiceUnitAVP(name string, units ServiceUnits) (*core.DiameterAVP, error) {

	serviceUnitAVP, err := core.NewDiameterAVP(name, nil)
	if err != nil {
		return nil, &UnresolvedAVPError{Name: name, Err: err}
	}

	for _, unit := range units {
		unitAVP, err := core.NewDiameterAVP(unit.Unit, unit.Value)
		if err != nil {
			return nil, &UnresolvedAVPError{Name: unit.Unit, Err: err}
		}
		serviceUnitAVP.AddAVP(*unitAVP)
	}

	return serviceUnitAVP, nil
}
