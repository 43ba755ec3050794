package types

// Source documents for the GMW (monitoring well) domain. Nested lists are
// order-sensitive: the registry numbers tubes, cables and electrodes by
// position, so input order is preserved end to end.

type Electrode struct {
	ElectrodeNumber          Int    `json:"electrodeNumber"             validate:"required"`
	ElectrodePackingMaterial string `json:"electrodePackingMaterial"   validate:"required"`
	ElectrodeStatus          string `json:"electrodeStatus"             validate:"required"`
	ElectrodePosition        *Float `json:"electrodePosition,omitempty"`
}

func (e *Electrode) UnmarshalJSON(data []byte) error {
	type alias Electrode
	var a alias
	if err := decodeAliased(data, &a); err != nil {
		return err
	}
	*e = Electrode(a)
	return nil
}

type GeoOhmCable struct {
	CableNumber Int         `json:"cableNumber" validate:"required"`
	Electrodes  []Electrode `json:"electrodes,omitempty"`
}

func (g *GeoOhmCable) UnmarshalJSON(data []byte) error {
	type alias GeoOhmCable
	var a alias
	if err := decodeAliased(data, &a); err != nil {
		return err
	}
	*g = GeoOhmCable(a)
	return nil
}

// Physical floor the registry enforces on screen and plain-tube lengths.
const minTubePartLength = 0.5

type MonitoringTube struct {
	TubeNumber               Int           `json:"tubeNumber"                   validate:"required"`
	TubeType                 string        `json:"tubeType"                     validate:"required"`
	ArtesianWellCapPresent   string        `json:"artesianWellCapPresent"       validate:"required"`
	SedimentSumpPresent      string        `json:"sedimentSumpPresent"          validate:"required"`
	NumberOfGeoOhmCables     *Int          `json:"numberOfGeoOhmCables,omitempty"`
	TubeTopDiameter          *Float        `json:"tubeTopDiameter,omitempty"`
	VariableDiameter         string        `json:"variableDiameter"             validate:"required"`
	TubeStatus               string        `json:"tubeStatus"                   validate:"required"`
	TubeTopPosition          *Float        `json:"tubeTopPosition"              validate:"required"`
	TubeTopPositioningMethod string        `json:"tubeTopPositioningMethod"     validate:"required"`
	TubePackingMaterial      string        `json:"tubePackingMaterial"          validate:"required"`
	TubeMaterial             string        `json:"tubeMaterial"                 validate:"required"`
	Glue                     string        `json:"glue"                         validate:"required"`
	ScreenLength             Float         `json:"screenLength"                 validate:"required"`
	ScreenProtection         string        `json:"screenProtection,omitempty"`
	SockMaterial             string        `json:"sockMaterial"                 validate:"required"`
	PlainTubePartLength      Float         `json:"plainTubePartLength"          validate:"required"`
	SedimentSumpLength       *Float        `json:"sedimentSumpLength,omitempty"`
	GeoOhmCables             []GeoOhmCable `json:"geoOhmCables,omitempty"`
}

func (m *MonitoringTube) UnmarshalJSON(data []byte) error {
	type alias MonitoringTube
	var a alias
	if err := decodeAliased(data, &a); err != nil {
		return err
	}
	*m = MonitoringTube(a)
	return nil
}

func (m *MonitoringTube) normalize() {
	if m.ScreenLength < minTubePartLength {
		m.ScreenLength = minTubePartLength
	}
	if m.PlainTubePartLength < minTubePartLength {
		m.PlainTubePartLength = minTubePartLength
	}
	if m.NumberOfGeoOhmCables == nil {
		n := Int(len(m.GeoOhmCables))
		m.NumberOfGeoOhmCables = &n
	}
}

type GMWConstruction struct {
	ObjectIDAccountableParty     string           `json:"objectIdAccountableParty"         validate:"required"`
	NitgCode                     string           `json:"nitgCode,omitempty"`
	DeliveryContext              string           `json:"deliveryContext"                  validate:"required"`
	ConstructionStandard         string           `json:"constructionStandard"             validate:"required"`
	InitialFunction              string           `json:"initialFunction"                  validate:"required"`
	NumberOfMonitoringTubes      Int              `json:"numberOfMonitoringTubes"          validate:"required"`
	GroundLevelStable            string           `json:"groundLevelStable"                validate:"required"`
	WellStability                string           `json:"wellStability,omitempty"`
	Owner                        string           `json:"owner,omitempty"`
	MaintenanceResponsibleParty  string           `json:"maintenanceResponsibleParty,omitempty"`
	WellHeadProtector            string           `json:"wellHeadProtector"                validate:"required"`
	WellConstructionDate         string           `json:"wellConstructionDate"             validate:"required"`
	DeliveredLocation            string           `json:"deliveredLocation"                validate:"required"`
	HorizontalPositioningMethod  string           `json:"horizontalPositioningMethod"      validate:"required"`
	LocalVerticalReferencePoint  string           `json:"localVerticalReferencePoint"      validate:"required"`
	Offset                       *Float           `json:"offset"                           validate:"required"`
	VerticalDatum                string           `json:"verticalDatum"                    validate:"required"`
	GroundLevelPosition          *Float           `json:"groundLevelPosition,omitempty"`
	GroundLevelPositioningMethod string           `json:"groundLevelPositioningMethod"     validate:"required"`
	MonitoringTubes              []MonitoringTube `json:"monitoringTubes"                  validate:"required,min=1,dive"`
	DateToBeCorrected            string           `json:"dateToBeCorrected,omitempty"`
}

func (g *GMWConstruction) UnmarshalJSON(data []byte) error {
	type alias GMWConstruction
	var a alias
	if err := decodeAliased(data, &a); err != nil {
		return err
	}
	*g = GMWConstruction(a)
	return nil
}

// Validate normalizes the construction tree and checks every field the
// registry requires. Tube order is untouched.
func (g *GMWConstruction) Validate() error {
	for i := range g.MonitoringTubes {
		g.MonitoringTubes[i].normalize()
	}
	if g.NumberOfMonitoringTubes == 0 {
		g.NumberOfMonitoringTubes = Int(len(g.MonitoringTubes))
	}

	if err := valid.Validate(g); err != nil {
		return wrapValidationError(err)
	}
	return nil
}
