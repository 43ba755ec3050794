package types

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	ObservationTypeRegular = "reguliereMeting"
	ObservationTypeControl = "controlemeting"

	ValidationStatusUnknown = "onbekend"
)

type TimeValuePair struct {
	Time                 string  `json:"time"                 validate:"required"`
	Value                *Float  `json:"value"`
	StatusQualityControl string  `json:"statusQualityControl" validate:"required"`
	CensorReason         *string `json:"censorReason"`
	CensoringLimitvalue  *Float  `json:"censoringLimitvalue,omitempty"`
}

func (t *TimeValuePair) UnmarshalJSON(data []byte) error {
	type alias TimeValuePair
	var a alias
	if err := decodeAliased(data, &a); err != nil {
		return err
	}
	*t = TimeValuePair(a)
	return nil
}

// GLDAddition is one delivery of groundwater level observations against an
// existing dossier. Observation order is preserved; the registry reads the
// series sequentially.
type GLDAddition struct {
	Date                        string          `json:"date,omitempty"`
	ObservationID               string          `json:"observationId,omitempty"`
	ObservationProcessID        string          `json:"observationProcessId,omitempty"`
	MeasurementTimeseriesID     string          `json:"measurementTimeseriesId,omitempty"`
	ValidationStatus            *string         `json:"validationStatus"`
	InvestigatorKvK             string          `json:"investigatorKvk"              validate:"required"`
	ObservationType             string          `json:"observationType"              validate:"required"`
	EvaluationProcedure         string          `json:"evaluationProcedure"          validate:"required"`
	MeasurementInstrumentType   string          `json:"measurementInstrumentType"    validate:"required"`
	ProcessReference            string          `json:"processReference"             validate:"required"`
	AirPressureCompensationType string          `json:"airPressureCompensationType,omitempty"`
	BeginPosition               string          `json:"beginPosition"                validate:"required"`
	EndPosition                 string          `json:"endPosition"                  validate:"required"`
	ResultTime                  string          `json:"resultTime,omitempty"`
	TimeValuePairs              []TimeValuePair `json:"timeValuePairs"               validate:"required,min=1,dive"`
}

func (g *GLDAddition) UnmarshalJSON(data []byte) error {
	type alias GLDAddition
	var a alias
	if err := decodeAliased(data, &a); err != nil {
		return err
	}
	*g = GLDAddition(a)
	return nil
}

func generatedID() string {
	return fmt.Sprintf("_%s", uuid.New())
}

// normalize runs before field validation. The validation-status rule is
// order-dependent: a regular observation without an explicit status defaults
// to "onbekend", a control observation never carries one.
func (g *GLDAddition) normalize() {
	if g.ObservationID == "" {
		g.ObservationID = generatedID()
	}
	if g.ObservationProcessID == "" {
		g.ObservationProcessID = generatedID()
	}
	if g.MeasurementTimeseriesID == "" {
		g.MeasurementTimeseriesID = generatedID()
	}

	switch {
	case g.ObservationType == ObservationTypeRegular &&
		(g.ValidationStatus == nil || *g.ValidationStatus == ""):
		status := ValidationStatusUnknown
		g.ValidationStatus = &status
	case g.ObservationType == ObservationTypeControl:
		g.ValidationStatus = nil
	}
}

func (g *GLDAddition) Validate() error {
	g.normalize()

	if err := valid.Validate(g); err != nil {
		return wrapValidationError(err)
	}
	return nil
}

type GLDStartRegistration struct {
	ObjectIDAccountableParty  string   `json:"objectIdAccountableParty,omitempty"`
	GroundwaterMonitoringNets []string `json:"groundwaterMonitoringNets,omitempty"`
	GmwBroID                  string   `json:"gmwBroId"   validate:"required"`
	TubeNumber                Int      `json:"tubeNumber" validate:"required"`
}

func (g *GLDStartRegistration) UnmarshalJSON(data []byte) error {
	type alias GLDStartRegistration
	var a alias
	if err := decodeAliased(data, &a); err != nil {
		return err
	}
	*g = GLDStartRegistration(a)
	return nil
}

func (g *GLDStartRegistration) Validate() error {
	if err := valid.Validate(g); err != nil {
		return wrapValidationError(err)
	}
	return nil
}
