package types

// Metadata envelopes for the multipart bulk-upload endpoint. Each domain
// attaches its own file fields; see the registry client's PostBulk helpers.

type GARBulkUploadMetadata struct {
	RequestReference          string   `json:"requestReference"                   validate:"required"`
	QualityRegime             string   `json:"qualityRegime"                      validate:"required,eq=IMBRO|eq=IMBRO/A"`
	DeliveryAccountableParty  string   `json:"deliveryAccountableParty,omitempty"`
	QualityControlMethod      string   `json:"qualityControlMethod,omitempty"`
	GroundwaterMonitoringNets []string `json:"groundwaterMonitoringNets,omitempty"`
	SamplingOperator          string   `json:"samplingOperator,omitempty"`
}

type GLDBulkUploadMetadata struct {
	RequestReference         string `json:"requestReference"                   validate:"required"`
	QualityRegime            string `json:"qualityRegime"                      validate:"required,eq=IMBRO|eq=IMBRO/A"`
	DeliveryAccountableParty string `json:"deliveryAccountableParty,omitempty"`
	BroID                    string `json:"broId"                              validate:"required"`
}

type GMNBulkUploadMetadata struct {
	RequestReference         string `json:"requestReference"                   validate:"required"`
	QualityRegime            string `json:"qualityRegime"                      validate:"required,eq=IMBRO|eq=IMBRO/A"`
	DeliveryAccountableParty string `json:"deliveryAccountableParty,omitempty"`
	BroID                    string `json:"broId"                              validate:"required"`
}

func (m *GARBulkUploadMetadata) Validate() error {
	if err := valid.Validate(m); err != nil {
		return wrapValidationError(err)
	}
	return nil
}

func (m *GLDBulkUploadMetadata) Validate() error {
	if err := valid.Validate(m); err != nil {
		return wrapValidationError(err)
	}
	return nil
}

func (m *GMNBulkUploadMetadata) Validate() error {
	if err := valid.Validate(m); err != nil {
		return wrapValidationError(err)
	}
	return nil
}
