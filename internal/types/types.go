package types

type BroDomain string

const (
	BroDomainGMW BroDomain = "GMW"
	BroDomainGLD BroDomain = "GLD"
	BroDomainGMN BroDomain = "GMN"
	BroDomainGAR BroDomain = "GAR"
	BroDomainFRD BroDomain = "FRD"
)

type RequestType string

const (
	RequestTypeRegistration RequestType = "registration"
	RequestTypeReplace      RequestType = "replace"
	RequestTypeInsert       RequestType = "insert"
	RequestTypeMove         RequestType = "move"
	RequestTypeDelete       RequestType = "delete"
)

type RegistrationType string

const (
	RegistrationTypeGMWConstruction      RegistrationType = "GMW_Construction"
	RegistrationTypeGLDAddition          RegistrationType = "GLD_Addition"
	RegistrationTypeGLDStartRegistration RegistrationType = "GLD_StartRegistration"
)

// Lifecycle states as reported by the registry. A task may stay PROCESSING
// indefinitely server-side; the client imposes its own polling ceiling.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusUnfinished TaskStatus = "UNFINISHED"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

const (
	QualityRegimeIMBRO  = "IMBRO"
	QualityRegimeIMBROA = "IMBRO/A"
)

const CorrectionReasonOwn = "eigenCorrectie"
