// Package events handles event emission for entity lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes entity lifecycle events. Emission is best-effort: a
// failed publish is logged and swallowed so it never undoes a committed
// merge. A nil producer disables emission entirely.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitEntityMerged emits an entity.merged event after a merge commits. The
// absorbed entity IDs ride along as source entities.
func (e *Emitter) EmitEntityMerged(ctx context.Context, primary *models.Entity, mergedIDs []string) {
	if e.producer == nil {
		return
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntityMerged")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"name":           primary.Name,
		"merged_count":   primary.Metadata.Data.MergedCount,
	})

	event := &kafka.EntityEvent{
		EventType:      "entity.merged",
		UserID:         primary.UserID,
		EntityID:       primary.ID,
		EntityType:     primary.Type,
		Data:           data,
		SourceEntities: mergedIDs,
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.merged event")
	}
}

// EmitEntitiesDeleted emits an entity.deleted event for each entity a merge
// removed.
func (e *Emitter) EmitEntitiesDeleted(ctx context.Context, userID string, entityIDs []string) {
	if e.producer == nil || len(entityIDs) == 0 {
		return
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntitiesDeleted")
	defer span.End()

	for _, id := range entityIDs {
		event := &kafka.EntityEvent{
			EventType: "entity.deleted",
			UserID:    userID,
			EntityID:  id,
		}
		if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
			e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.deleted event")
		}
	}
}

// EmitDuplicatesDetected emits a summary event after a duplicate scan.
func (e *Emitter) EmitDuplicatesDetected(ctx context.Context, userID string, groups []models.DuplicateGroup) {
	if e.producer == nil || len(groups) == 0 {
		return
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDuplicatesDetected")
	defer span.End()

	duplicates := 0
	for _, g := range groups {
		duplicates += len(g.Duplicates)
	}

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"groups":         len(groups),
		"duplicates":     duplicates,
	})

	event := &kafka.EntityEvent{
		EventType: "duplicates.detected",
		UserID:    userID,
		EntityID:  userID, // keyed by user; the scan spans many entities
		Data:      data,
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit duplicates.detected event")
	}
}
