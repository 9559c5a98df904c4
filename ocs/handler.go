package ocs

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/francistor/gy/cdrwriter"
	"github.com/francistor/gy/core"
	"github.com/francistor/gy/gycodec"
)

// CC-Request-Type values
const (
	INITIAL_REQUEST     = 1
	UPDATE_REQUEST      = 2
	TERMINATION_REQUEST = 3
	EVENT_REQUEST       = 4
)

// State kept for one credit control session between the initial and the
// termination interrogations
type ccSession struct {
	sessionId      string
	subscriptionId string
	chargingPlan   core.ChargingPlan
	requestNumber  int64
	grantedOctets  int64
	usedOctets     int64
	usedSeconds    int64
	lastRequest    string
	lastUpdate     time.Time
}

// Serves Gy credit control requests, granting units according to the
// charging plan of the subscriber and keeping the in-flight sessions in
// memory. Terminated sessions are sent to the CDR writers
type CreditControlHandler struct {
	ci *core.OcsConfigurationManager

	// Sinks for the CDR generated on termination
	writers []cdrwriter.CDRWriter

	// Live sessions, by Session-Id
	mutex    sync.Mutex
	sessions map[string]*ccSession
}

// Creates a handler using the configuration instance passed. The writers,
// if any, receive the termination message of each session
func NewCreditControlHandler(ci *core.OcsConfigurationManager, writers ...cdrwriter.CDRWriter) *CreditControlHandler {
	return &CreditControlHandler{
		ci:       ci,
		writers:  writers,
		sessions: make(map[string]*ccSession),
	}
}

// Satisfies core.DiameterMessageHandler
func (h *CreditControlHandler) Handle(ccr *core.DiameterMessage) (*core.DiameterMessage, error) {

	core.RecordCreditControlRequestReceived(ccr)

	core.GetLogger().Debugf("credit control request\n%s", gycodec.Render(ccr))

	parsed, err := gycodec.ParseCCR(ccr)
	if err != nil || parsed.SessionId == "" {
		core.RecordCreditControlHandlerError(ccr)
		cca := h.answer(ccr, core.DIAMETER_UNABLE_TO_COMPLY)
		core.RecordCreditControlAnswerSent(ccr, cca)
		return cca, nil
	}

	var cca *core.DiameterMessage
	switch parsed.CCRequestType {
	case INITIAL_REQUEST:
		cca, err = h.handleInitial(ccr, parsed)
	case UPDATE_REQUEST:
		cca, err = h.handleUpdate(ccr, parsed)
	case TERMINATION_REQUEST:
		cca, err = h.handleTerminate(ccr, parsed)
	case EVENT_REQUEST:
		cca = h.answer(ccr, core.DIAMETER_SUCCESS)
	default:
		cca = h.answer(ccr, core.DIAMETER_UNABLE_TO_COMPLY)
	}

	if err != nil {
		core.RecordCreditControlHandlerError(ccr)
		return nil, err
	}

	core.RecordCreditControlAnswerSent(ccr, cca)
	return cca, nil
}

// First interrogation. Creates the session and grants units per the
// charging plan
func (h *CreditControlHandler) handleInitial(ccr *core.DiameterMessage, parsed *gycodec.ParsedCCR) (*core.DiameterMessage, error) {

	plan, err := h.ci.ChargingPlan(h.planNameForSubscriber(parsed))
	if err != nil {
		return nil, fmt.Errorf("charging plan not found: %w", err)
	}

	session := &ccSession{
		sessionId:      parsed.SessionId,
		subscriptionId: firstSubscriptionId(parsed),
		chargingPlan:   plan,
		requestNumber:  parsed.CCRequestNumber,
		grantedOctets:  plan.GrantedOctets,
		lastRequest:    "INITIAL_REQUEST",
		lastUpdate:     time.Now(),
	}

	h.mutex.Lock()
	h.sessions[parsed.SessionId] = session
	h.mutex.Unlock()
	h.publishSessions()

	cca := h.answer(ccr, core.DIAMETER_SUCCESS)
	h.addGrant(cca, plan)
	return cca, nil
}

// Intermediate interrogation. Accounts the used units and grants again
func (h *CreditControlHandler) handleUpdate(ccr *core.DiameterMessage, parsed *gycodec.ParsedCCR) (*core.DiameterMessage, error) {

	h.mutex.Lock()
	session, found := h.sessions[parsed.SessionId]
	if !found {
		h.mutex.Unlock()
		return h.answer(ccr, core.DIAMETER_UNKNOWN_SESSION_ID), nil
	}

	session.usedOctets += parsed.UsedServiceUnit["CC-Total-Octets"]
	session.usedSeconds += parsed.UsedServiceUnit["CC-Time"]
	session.requestNumber = parsed.CCRequestNumber
	session.grantedOctets += session.chargingPlan.GrantedOctets
	session.lastRequest = "UPDATE_REQUEST"
	session.lastUpdate = time.Now()
	plan := session.chargingPlan
	h.mutex.Unlock()
	h.publishSessions()

	cca := h.answer(ccr, core.DIAMETER_SUCCESS)
	h.addGrant(cca, plan)
	return cca, nil
}

// Final interrogation. Accounts the used units, reports the session cost,
// writes the CDR and forgets the session
func (h *CreditControlHandler) handleTerminate(ccr *core.DiameterMessage, parsed *gycodec.ParsedCCR) (*core.DiameterMessage, error) {

	h.mutex.Lock()
	session, found := h.sessions[parsed.SessionId]
	if !found {
		h.mutex.Unlock()
		return h.answer(ccr, core.DIAMETER_UNKNOWN_SESSION_ID), nil
	}

	session.usedOctets += parsed.UsedServiceUnit["CC-Total-Octets"]
	session.usedSeconds += parsed.UsedServiceUnit["CC-Time"]
	usedOctets := session.usedOctets
	plan := session.chargingPlan
	delete(h.sessions, parsed.SessionId)
	h.mutex.Unlock()
	h.publishSessions()

	cca := h.answer(ccr, core.DIAMETER_SUCCESS)
	h.addCostInformation(cca, plan, usedOctets)

	h.writeCDR(ccr)

	return cca, nil
}

// The demo rating: all subscribers get the plan configured as default
func (h *CreditControlHandler) planNameForSubscriber(parsed *gycodec.ParsedCCR) string {
	return ""
}

// Base answer with the identification AVPs and the result code
func (h *CreditControlHandler) answer(ccr *core.DiameterMessage, resultCode int) *core.DiameterMessage {

	cca := core.NewDiameterAnswer(ccr)
	cca.AddOriginAVPs(h.ci)
	if sessionId := ccr.GetStringAVP("Session-Id"); sessionId != "" {
		cca.Add("Session-Id", sessionId)
	}
	cca.Add("Result-Code", resultCode)
	cca.Add("Auth-Application-Id", core.GY_APPLICATION_ID)
	if requestType, err := ccr.GetAVP("CC-Request-Type"); err == nil {
		cca.Add("CC-Request-Type", requestType.GetInt())
	}
	if requestNumber, err := ccr.GetAVP("CC-Request-Number"); err == nil {
		cca.Add("CC-Request-Number", requestNumber.GetInt())
	}

	return cca
}

// Grants units per the charging plan, with the corresponding validity time
func (h *CreditControlHandler) addGrant(cca *core.DiameterMessage, plan core.ChargingPlan) {

	grantedAVP, err := core.NewDiameterAVP("Granted-Service-Unit", nil)
	if err != nil {
		return
	}
	grantedAVP.Add("CC-Time", plan.GrantedSeconds).Add("CC-Total-Octets", plan.GrantedOctets)
	cca.AddAVP(grantedAVP)
	cca.Add("Validity-Time", plan.ValiditySeconds)
}

// Cost of the whole session, reported on termination. The amount is
// expressed in cents, with exponent -2
func (h *CreditControlHandler) addCostInformation(cca *core.DiameterMessage, plan core.ChargingPlan, usedOctets int64) {

	megabytes := float64(usedOctets) / (1024 * 1024)
	cents := int64(math.Round(megabytes * plan.PricePerMegabyte * 100))

	costAVP, err := core.NewDiameterAVP("Cost-Information", nil)
	if err != nil {
		return
	}
	unitValueAVP, err := core.NewDiameterAVP("Unit-Value", nil)
	if err != nil {
		return
	}
	unitValueAVP.Add("Value-Digits", cents).Add("Exponent", -2)
	costAVP.AddAVP(*unitValueAVP).Add("Currency-Code", plan.CurrencyCode)
	cca.AddAVP(costAVP)
}

// Sends the termination message to all the configured writers, adding an
// Event-Timestamp if the client did not include one
func (h *CreditControlHandler) writeCDR(ccr *core.DiameterMessage) {

	if _, err := ccr.GetAVP("Event-Timestamp"); err != nil {
		ccr.Add("Event-Timestamp", time.Now())
	}

	for _, writer := range h.writers {
		writer.WriteCDR(ccr)
	}
}

// Updates the live sessions gauge and pushes the table to the
// instrumentation server
func (h *CreditControlHandler) publishSessions() {

	h.mutex.Lock()
	table := make(core.CreditControlSessionsTable, 0, len(h.sessions))
	for _, session := range h.sessions {
		table = append(table, core.CreditControlSessionEntry{
			SessionId:       session.sessionId,
			SubscriptionId:  session.subscriptionId,
			ChargingPlan:    session.chargingPlan.Name,
			RequestNumber:   session.requestNumber,
			GrantedOctets:   session.grantedOctets,
			UsedOctets:      session.usedOctets,
			LastRequestType: session.lastRequest,
			LastUpdate:      session.lastUpdate,
		})
	}
	h.mutex.Unlock()

	core.UpdateSessionCounter(len(table))
	core.PushCreditControlSessionsTable(h.ci.CM.InstanceName(), table)
}

func firstSubscriptionId(parsed *gycodec.ParsedCCR) string {
	if len(parsed.SubscriptionIds) > 0 {
		return parsed.SubscriptionIds[0].Data
	}
	return ""
}
