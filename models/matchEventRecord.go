package models

import (
	"encoding/json"
	"time"

	"github.com/mmdatafocus/agromatch_backend/matching"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// MatchEventRecord is the transactional outbox row of an execution event. It is
// written in the same transaction as the execution update; the dispatcher
// publishes it to Pub/Sub after commit.
type MatchEventRecord struct {
	ID               int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventType        string     `gorm:"size:60;not null" json:"event_type"`
	MatchExecutionID int        `gorm:"not null;index" json:"match_execution_id"`
	PayloadJSON      []byte     `gorm:"type:json" json:"payload"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func newMatchEventRecord(event matching.ExecutionEvent) (*MatchEventRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &MatchEventRecord{
		EventType:        event.Type,
		MatchExecutionID: event.ExecutionID,
		PayloadJSON:      payload,
		PublishStatus:    OutboxPublishStatusPending,
		CorrelationId:    event.CorrelationID,
	}, nil
}

// Attributes are the Pub/Sub message attributes subscribers filter on.
func (r *MatchEventRecord) Attributes() map[string]string {
	attrs := map[string]string{"event_type": r.EventType}
	if r.CorrelationId != "" {
		attrs["correlation_id"] = r.CorrelationId
	}
	return attrs
}
