package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/agromatch_backend/config"
	"github.com/mmdatafocus/agromatch_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublishFunc sends one event payload and returns the broker message id.
type PublishFunc func(ctx context.Context, payload []byte, attributes map[string]string) (string, error)

// OutboxDispatcher drains match_event_records to Pub/Sub. Rows are claimed with
// SKIP LOCKED so several instances can run side by side.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string
	Publish      PublishFunc
	Now          func() time.Time

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		Publish:        config.PublishMatchEventWithResult,
		Now:            func() time.Time { return time.Now().UTC() },
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// dispatchOnce claims one batch and publishes it. It returns how many rows were published.
func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) int {
	db := d.DB
	if db == nil || d.Publish == nil {
		return 0
	}
	now := d.Now()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.MatchEventRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale (dispatcher crashed mid-batch), reclaim after LockTimeout
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.MatchEventRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].PublishAttempts++
			if err := tx.Model(&models.MatchEventRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          &d.DispatcherID,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(d.logger(), "OutboxDispatcher", "dispatchOnce", "claim batch", d.DispatcherID, err)
		return 0
	}

	published := 0
	for _, rec := range claimed {
		if rec.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		pubID, pubErr := d.Publish(ctx, rec.PayloadJSON, rec.Attributes())
		if pubErr != nil {
			d.markPublishFailed(ctx, rec, pubErr)
			continue
		}
		d.markPublishSent(ctx, rec.ID, pubID)
		published++
	}
	return published
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, recordID int, pubsubMsgID string) {
	now := d.Now()
	id := pubsubMsgID
	err := d.DB.WithContext(ctx).Model(&models.MatchEventRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusSent,
			"published_at":       &now,
			"pub_sub_message_id": &id,
			"locked_at":          nil,
			"locked_by":          nil,
			"next_attempt_at":    nil,
		}).Error
	if err != nil {
		config.LogError(d.logger(), "OutboxDispatcher", "markPublishSent", "update record", recordID, err)
	}
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, rec models.MatchEventRecord, err error) {
	db := d.DB.WithContext(ctx)
	msg := err.Error()
	attempt := rec.PublishAttempts

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = db.Model(&models.MatchEventRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error

		d.logger().WithFields(logrus.Fields{
			"field":              "OutboxDispatcher",
			"record_id":          rec.ID,
			"match_execution_id": rec.MatchExecutionID,
			"attempt":            attempt,
		}).Error("outbox publish moved to DEAD after max attempts: " + msg)
		return
	}

	next := d.Now().Add(d.backoff(attempt))
	_ = db.Model(&models.MatchEventRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error

	d.logger().WithFields(logrus.Fields{
		"field":              "OutboxDispatcher",
		"record_id":          rec.ID,
		"match_execution_id": rec.MatchExecutionID,
		"attempt":            attempt,
		"next_attempt_at":    next.Format(time.RFC3339Nano),
	}).Error("outbox publish failed: " + msg)
}

// backoff doubles per attempt from InitialBackoff, capped at ten minutes.
func (d *OutboxDispatcher) backoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return backoff
}

func (d *OutboxDispatcher) logger() *logrus.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return config.GetLogger()
}
