package audit

import (
	"encoding/json"
	"time"

	"github.com/nens/brostar-sync/internal/logger"
)

const schemaVersion = "1.0"

type Disposition string

const (
	DispositionGood    Disposition = "good"
	DispositionBad     Disposition = "bad"
	DispositionNeutral Disposition = "neutral"
)

type EventType string

const (
	EvtTaskCompleted  EventType = "upload_task_completed"
	EvtTaskFailed     EventType = "upload_task_failed"
	EvtTaskSkipped    EventType = "upload_task_skipped"
	EvtTaskRemediated EventType = "upload_task_remediated"
	EvtChunkDelivered EventType = "chunk_delivered"
)

type Context struct {
	Organisation  string
	ProjectNumber string
}

type envelope struct {
	SchemaVersion string      `json:"schema_version"`
	Timestamp     int64       `json:"timestamp"`
	Type          EventType   `json:"type"`
	Disposition   Disposition `json:"disposition"`
	Organisation  string      `json:"organisation,omitempty"`
	ProjectNumber string      `json:"project_number,omitempty"`
	Event         any         `json:"event"`
}

func emit(c Context, eventType EventType, disposition Disposition, event any) {
	entry := envelope{
		SchemaVersion: schemaVersion,
		Timestamp:     time.Now().UTC().UnixMilli(),
		Type:          eventType,
		Disposition:   disposition,
		Organisation:  c.Organisation,
		ProjectNumber: c.ProjectNumber,
		Event:         event,
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		logger.Logger.Error("could not serialize audit event", "type", eventType)
		return
	}
	logger.Logger.Info("audit", "event", json.RawMessage(encoded))
}

type taskEvent struct {
	UUID   string `json:"uuid,omitempty"`
	BroID  string `json:"bro_id,omitempty"`
	Status string `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func LogTaskCompleted(c Context, uuid, broID string) {
	emit(c, EvtTaskCompleted, DispositionGood, taskEvent{UUID: uuid, BroID: broID})
}

func LogTaskFailed(c Context, uuid, status, detail string) {
	emit(c, EvtTaskFailed, DispositionBad, taskEvent{UUID: uuid, Status: status, Detail: detail})
}

func LogTaskSkipped(c Context, broID, reason string) {
	emit(c, EvtTaskSkipped, DispositionNeutral, taskEvent{BroID: broID, Detail: reason})
}

func LogTaskRemediated(c Context, uuid, signature string) {
	emit(c, EvtTaskRemediated, DispositionNeutral, taskEvent{UUID: uuid, Detail: signature})
}

type chunkEvent struct {
	BroID  string `json:"bro_id"`
	Index  int    `json:"index"`
	Count  int    `json:"count"`
	Status string `json:"status"`
}

func LogChunkDelivered(c Context, broID string, index, count int, status string) {
	disposition := DispositionGood
	if status != "COMPLETED" {
		disposition = DispositionNeutral
	}
	emit(c, EvtChunkDelivered, disposition, chunkEvent{
		BroID:  broID,
		Index:  index,
		Count:  count,
		Status: status,
	})
}
