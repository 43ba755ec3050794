package types

import (
	"github.com/nens/brostar-sync/internal/validator"
)

var valid = validator.Create()

type UploadTaskMetadata struct {
	RequestReference         string `json:"requestReference"                   validate:"required"`
	DeliveryAccountableParty string `json:"deliveryAccountableParty,omitempty"`
	QualityRegime            string `json:"qualityRegime"                      validate:"required,eq=IMBRO|eq=IMBRO/A"`
	BroID                    string `json:"broId,omitempty"`
	CorrectionReason         string `json:"correctionReason,omitempty"`
}

func (m *UploadTaskMetadata) UnmarshalJSON(data []byte) error {
	type alias UploadTaskMetadata
	var a alias
	if err := decodeAliased(data, &a); err != nil {
		return err
	}
	*m = UploadTaskMetadata(a)
	return nil
}

// UploadTask is the registry's unit of asynchronous work. It is created
// locally, submitted, then only observed through polling; past submission a
// task is never mutated in place, corrections go out as fresh tasks.
type UploadTask struct {
	UUID             string             `json:"uuid,omitempty"`
	URL              string             `json:"url,omitempty"`
	BroDomain        BroDomain          `json:"broDomain"        validate:"required,eq=GMW|eq=GLD|eq=GMN|eq=GAR|eq=FRD"`
	ProjectNumber    string             `json:"projectNumber"    validate:"required"`
	RegistrationType RegistrationType   `json:"registrationType" validate:"required"`
	RequestType      RequestType        `json:"requestType"      validate:"required,eq=registration|eq=replace|eq=insert|eq=move|eq=delete"`
	Metadata         UploadTaskMetadata `json:"metadata"`
	SourceDocument   any                `json:"sourcedocumentData" validate:"required"`
	Status           TaskStatus         `json:"status,omitempty"`
	Progress         float64            `json:"progress,omitempty"`
	Log              string             `json:"log,omitempty"`
	BroErrors        string             `json:"broErrors,omitempty"`
	BroID            string             `json:"broId,omitempty"`
	BroDeliveryURL   string             `json:"broDeliveryUrl,omitempty"`
	DataOwner        string             `json:"dataOwner,omitempty"`
	CreatedAt        string             `json:"createdAt,omitempty"`
	UpdatedAt        string             `json:"updatedAt,omitempty"`
}

func (t *UploadTask) UnmarshalJSON(data []byte) error {
	type alias UploadTask
	var a alias
	if err := decodeAliased(data, &a); err != nil {
		return err
	}
	*t = UploadTask(a)
	return nil
}

// Validate checks the task envelope, including the correction-reason
// invariant: corrections carry a reason, initial registrations must not.
func (t *UploadTask) Validate() error {
	if err := valid.Validate(t); err != nil {
		return wrapValidationError(err)
	}

	switch t.RequestType {
	case RequestTypeRegistration:
		if t.Metadata.CorrectionReason != "" {
			return FieldError("correctionReason", "must be absent for registration requests")
		}
	case RequestTypeReplace, RequestTypeInsert, RequestTypeMove, RequestTypeDelete:
		if t.Metadata.CorrectionReason == "" {
			return FieldError("correctionReason", "required for correction requests")
		}
	}

	return nil
}

// StripServerManaged drops the fields the registry owns, so that a fetched
// task can be resubmitted as a new one.
func (t *UploadTask) StripServerManaged() {
	t.UUID = ""
	t.URL = ""
	t.DataOwner = ""
	t.CreatedAt = ""
	t.UpdatedAt = ""
}

// ClearDeliveryState resets the mutable lifecycle fields ahead of
// resubmission.
func (t *UploadTask) ClearDeliveryState() {
	t.Status = TaskStatusPending
	t.Log = ""
	t.BroErrors = ""
	t.Progress = 0
	t.BroID = ""
	t.BroDeliveryURL = ""
}

// Diagnostics returns the text remediation scans for error signatures.
func (t *UploadTask) Diagnostics() string {
	if t.BroErrors == "" {
		return t.Log
	}
	if t.Log == "" {
		return t.BroErrors
	}
	return t.Log + "\n" + t.BroErrors
}
