package core

/*
Helpers for reading and using the Diameter dictionary
*/

import (
	"encoding/json"
	"fmt"
)

// One for each Diameter AVP Type
const (
	DiameterTypeNone        = 0
	DiameterTypeOctetString = 1
	DiameterTypeInteger32   = 2
	DiameterTypeInteger64   = 3
	DiameterTypeUnsigned32  = 4
	DiameterTypeUnsigned64  = 5
	DiameterTypeFloat32     = 6
	DiameterTypeFloat64     = 7
	DiameterTypeGrouped     = 8
	DiameterTypeAddress     = 9
	DiameterTypeTime        = 10
	DiameterTypeUTF8String  = 11
	DiameterTypeDiamIdent   = 12
	DiameterTypeDiameterURI = 13
	DiameterTypeEnumerated  = 14
)

// Used for unknown AVP. Those are treated as opaque OctetString payloads
var UnknownDiameterDictItem = DiameterAVPDictItem{
	Name: "UNKNOWN",
}

// Signals that the dictionary contents were rejected and no dictionary was
// loaded at all. Lookups against the remaining empty dictionary will miss
type DiameterDictError struct {
	Err error
}

func (e *DiameterDictError) Error() string {
	return "diameter dictionary could not be loaded: " + e.Err.Error()
}

func (e *DiameterDictError) Unwrap() error {
	return e.Err
}

// VendorId and code of AVP in a single attribute
type DiameterAVPCode struct {
	VendorId uint32
	Code     uint32
}

// Attributes of a Grouped AVP
type GroupedProperties struct {
	Mandatory bool
	MinOccurs int
	MaxOccurs int
}

// Diameter Dictionary elements
type DiameterAVPDictItem struct {
	VendorId     uint32 // 3 bytes required according to RFC 6733
	Code         uint32 // 3 bytes required according to RFC 6733
	Name         string
	DiameterType int                          // One of the constants above
	EnumValues   map[string]int               // non nil only in enum type
	EnumCodes    map[int]string               // non nil only in enum type
	Group        map[string]GroupedProperties // non nil only in grouped type
}

// Represents a Diameter Command
type DiameterCommand struct {
	Name     string
	Code     uint32
	Request  map[string]GroupedProperties
	Response map[string]GroupedProperties
}

// Represents a Diameter Application
type DiameterApplication struct {
	Name     string
	Code     uint32
	AppType  string
	Commands []DiameterCommand

	CommandByName map[string]*DiameterCommand

	CommandByCode map[uint32]*DiameterCommand
}

// Represents the full Diameter Dictionary
type DiameterDict struct {
	// Map of vendor id to vendor name
	VendorById map[uint32]string

	// Map of vendor name to vendor id
	VendorByName map[string]uint32

	// Map of vendor + code to dictionary item. Name is <vendorName>-<attributeName>
	AVPByCode map[DiameterAVPCode]*DiameterAVPDictItem

	// Map of avp name to dictionary item
	AVPByName map[string]*DiameterAVPDictItem

	// Map of bare code to dictionary item, irrespective of the vendor. When
	// several vendors define the same code, the first one registered wins. Use
	// only where the caller cannot know the vendor; prefer AVPByCode otherwise
	AVPByCodeOnly map[uint32]*DiameterAVPDictItem

	// Map of app names
	AppByName map[string]*DiameterApplication

	// Map of app codes
	AppByCode map[uint32]*DiameterApplication
}

// Returns an UNKNOWN dictionary item if the code is not found
// The user may decide to go on with an UNKNOWN dictionary item when the error is returned
func (dd *DiameterDict) GetAVPFromCode(code DiameterAVPCode) (*DiameterAVPDictItem, error) {
	if di, found := dd.AVPByCode[code]; !found {
		return &UnknownDiameterDictItem, fmt.Errorf("%v not found in dictionary", code)
	} else {
		return di, nil
	}
}

// Returns an UNKNOWN dictionary item if the name is not found
// The user may decide to go on with an UNKNOWN dictionary item when the error is returned
func (dd *DiameterDict) GetAVPFromName(name string) (*DiameterAVPDictItem, error) {
	if di, found := dd.AVPByName[name]; !found {
		return &UnknownDiameterDictItem, fmt.Errorf("%s not found in dictionary", name)
	} else {
		return di, nil
	}
}

// Returns the dictionary item for the specified code, irrespective of the
// vendor. If more than one vendor defines the code, the item registered first
// is returned
func (dd *DiameterDict) GetAVPFromCodeOnly(code uint32) (*DiameterAVPDictItem, error) {
	if di, found := dd.AVPByCodeOnly[code]; !found {
		return &UnknownDiameterDictItem, fmt.Errorf("code %d not found in dictionary", code)
	} else {
		return di, nil
	}
}

// Returns the code for the AVP with the specified name
func (dd *DiameterDict) AVPCode(name string) (uint32, error) {
	di, err := dd.GetAVPFromName(name)
	if err != nil {
		return 0, err
	}
	return di.Code, nil
}

// Returns the numeric value for the symbolic enum value of the specified AVP
func (dd *DiameterDict) EnumValue(name string, symbol string) (int, error) {
	di, err := dd.GetAVPFromName(name)
	if err != nil {
		return 0, err
	}
	value, found := di.EnumValues[symbol]
	if !found {
		return 0, fmt.Errorf("%s is not a valid value for %s", symbol, name)
	}
	return value, nil
}

// Reports whether the AVP with the specified name is of Grouped type.
// Unknown names report false
func (dd *DiameterDict) IsGrouped(name string) bool {
	di, found := dd.AVPByName[name]
	return found && di.DiameterType == DiameterTypeGrouped
}

// Returns a DiameterApplication given the appid
func (dd *DiameterDict) GetApplication(appId uint32) (*DiameterApplication, error) {
	if app, ok := dd.AppByCode[appId]; !ok {
		return nil, fmt.Errorf("appId %d not found", appId)
	} else {
		return app, nil
	}
}

// Returns a DiameterCommand given the appid and command code
func (dd *DiameterDict) GetCommand(appId uint32, commandCode uint32) (*DiameterCommand, error) {
	app, ok := dd.AppByCode[appId]
	if !ok {
		return nil, fmt.Errorf("appId %d not found", appId)
	}
	if command, ok := app.CommandByCode[commandCode]; !ok {
		return nil, fmt.Errorf("appId %d and command %d not found", appId, commandCode)
	} else {
		return command, nil
	}
}

// Returns a Diameter Dictionary object from its serialized representation.
// The returned error is a *DiameterDictError and, when not nil, no dictionary
// is returned: a structurally bad dictionary is rejected as a whole instead of
// being half loaded. Attributes with an unrecognized type are not an error:
// they are degraded to OctetString with a logged warning, so that dictionary
// sources newer than this code keep working
func NewDiameterDictionaryFromJSON(data []byte) (*DiameterDict, error) {

	// Unmarshal from JSON
	var jDict jDiameterDict
	if err := json.Unmarshal(data, &jDict); err != nil {
		return nil, &DiameterDictError{fmt.Errorf("bad diameter dictionary format: %w", err)}
	}

	// Build the dictionary
	var dict DiameterDict

	// Build the vendor maps
	dict.VendorById = make(map[uint32]string)
	dict.VendorByName = make(map[string]uint32)
	for _, v := range jDict.Vendors {
		dict.VendorById[v.VendorId] = v.VendorName
		dict.VendorByName[v.VendorName] = v.VendorId
	}

	// Build the AVP maps. The order of the Avps and Attributes arrays in the
	// serialized form determines the registration order, and thus which item
	// wins in the code-only map
	dict.AVPByCode = make(map[DiameterAVPCode]*DiameterAVPDictItem)
	dict.AVPByName = make(map[string]*DiameterAVPDictItem)
	dict.AVPByCodeOnly = make(map[uint32]*DiameterAVPDictItem)
	for _, vendorAVPs := range jDict.Avps {
		vendorId := vendorAVPs.VendorId
		vendorName := dict.VendorById[vendorId]

		// For a specific vendor
		for _, attr := range vendorAVPs.Attributes {
			avpDictItem, err := attr.toAVPDictItem(vendorId, vendorName)
			if err != nil {
				return nil, &DiameterDictError{err}
			}
			if _, alreadyRegistered := dict.AVPByName[avpDictItem.Name]; alreadyRegistered {
				return nil, &DiameterDictError{fmt.Errorf("duplicate name %s", avpDictItem.Name)}
			}
			dict.AVPByCode[DiameterAVPCode{vendorId, attr.Code}] = &avpDictItem
			dict.AVPByName[avpDictItem.Name] = &avpDictItem
			if _, alreadyRegistered := dict.AVPByCodeOnly[attr.Code]; !alreadyRegistered {
				dict.AVPByCodeOnly[attr.Code] = &avpDictItem
			}
		}
	}

	// Build the applications map
	dict.AppByCode = make(map[uint32]*DiameterApplication)
	dict.AppByName = make(map[string]*DiameterApplication)
	for i := range jDict.Applications {
		// Fill the Applications map
		// Do not use the value in the range. Copy the pointer as done here!
		app := &jDict.Applications[i]
		dict.AppByCode[app.Code] = app
		dict.AppByName[app.Name] = app

		// Fill the commands map for the application
		app.CommandByCode = make(map[uint32]*DiameterCommand)
		app.CommandByName = make(map[string]*DiameterCommand)
		for j, command := range app.Commands {
			app.CommandByCode[command.Code] = &app.Commands[j]
			app.CommandByName[command.Name] = &app.Commands[j]
		}
	}

	return &dict, nil
}

// Returns a dictionary with all the maps created but empty, where every
// lookup misses. Used in place of a dictionary that failed to load
func newEmptyDiameterDict() *DiameterDict {
	return &DiameterDict{
		VendorById:    make(map[uint32]string),
		VendorByName:  make(map[string]uint32),
		AVPByCode:     make(map[DiameterAVPCode]*DiameterAVPDictItem),
		AVPByName:     make(map[string]*DiameterAVPDictItem),
		AVPByCodeOnly: make(map[uint32]*DiameterAVPDictItem),
		AppByName:     make(map[string]*DiameterApplication),
		AppByCode:     make(map[uint32]*DiameterApplication),
	}
}

/*
The following types are helpers for unserializing the JSON Diameter Dictionary
*/

// To Unmarshal Dictionary from Json
type jDiameterAVP struct {
	Code       uint32
	Name       string
	Type       string
	EnumValues map[string]int
	Group      map[string]GroupedProperties
}

type jDiameterVendorAVPs struct {
	VendorId   uint32
	Attributes []jDiameterAVP
}

type jDiameterDict struct {
	Version int
	Vendors []struct {
		VendorId   uint32
		VendorName string
	}
	Avps         []jDiameterVendorAVPs
	Applications []DiameterApplication
}

func (javp jDiameterAVP) toAVPDictItem(v uint32, vs string) (DiameterAVPDictItem, error) {
	var diameterType int
	switch javp.Type {
	case "None":
		diameterType = DiameterTypeNone
	case "OctetString":
		diameterType = DiameterTypeOctetString
	case "Integer32":
		diameterType = DiameterTypeInteger32
	case "Integer64":
		diameterType = DiameterTypeInteger64
	case "Unsigned32":
		diameterType = DiameterTypeUnsigned32
	case "Unsigned64":
		diameterType = DiameterTypeUnsigned64
	case "Float32":
		diameterType = DiameterTypeFloat32
	case "Float64":
		diameterType = DiameterTypeFloat64
	case "Grouped":
		diameterType = DiameterTypeGrouped
	case "Address":
		diameterType = DiameterTypeAddress
	case "Time":
		diameterType = DiameterTypeTime
	case "UTF8String":
		diameterType = DiameterTypeUTF8String
	case "DiamIdent", "DiameterIdentity":
		diameterType = DiameterTypeDiamIdent
	case "DiameterURI":
		diameterType = DiameterTypeDiameterURI
	case "Enumerated":
		diameterType = DiameterTypeEnumerated
	default:
		// Unknown types degrade to OctetString instead of aborting the load
		GetLogger().Warnf("%s is not a valid DiameterType for %s. Treating as OctetString", javp.Type, javp.Name)
		diameterType = DiameterTypeOctetString
	}

	var codes map[int]string
	if javp.EnumValues != nil {
		codes = make(map[int]string)
		for enumName, enumValue := range javp.EnumValues {
			if otherName, alreadyRegistered := codes[enumValue]; alreadyRegistered {
				return DiameterAVPDictItem{}, fmt.Errorf("%s has enum value %d assigned to both %s and %s", javp.Name, enumValue, otherName, enumName)
			}
			codes[enumValue] = enumName
		}
	}

	var namePrefix string
	if vs != "" {
		namePrefix = vs + "-"
	}

	return DiameterAVPDictItem{
		VendorId:     v,
		Code:         javp.Code,
		Name:         namePrefix + javp.Name,
		DiameterType: diameterType,
		EnumValues:   javp.EnumValues,
		EnumCodes:    codes,
		Group:        javp.Group,
	}, nil
}
