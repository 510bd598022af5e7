// Package merging consolidates duplicate entities without losing data.
package merging

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/customfield"
	"github.com/Ramsey-B/fern/internal/repositories/engagement"
	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/entityrelationship"
	"github.com/Ramsey-B/fern/internal/repositories/identifier"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/internal/repositories/tagging"
	"github.com/Ramsey-B/fern/pkg/dedupe"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Engine handles entity merging
type Engine struct {
	logger           ectologger.Logger
	entityRepo       *entity.Repository
	identifierRepo   *identifier.Repository
	relationshipRepo *relationship.Repository
	entityRelRepo    *entityrelationship.Repository
	engagementRepo   *engagement.Repository
	customFieldRepo  *customfield.Repository
	taggingRepo      *tagging.Repository
	detector         *dedupe.Detector
	emitter          *events.Emitter
	locker           *redis.Locker
	lockTTL          time.Duration
	lockWait         time.Duration
}

// NewEngine creates a new merge engine
func NewEngine(
	logger ectologger.Logger,
	entityRepo *entity.Repository,
	identifierRepo *identifier.Repository,
	relationshipRepo *relationship.Repository,
	entityRelRepo *entityrelationship.Repository,
	engagementRepo *engagement.Repository,
	customFieldRepo *customfield.Repository,
	taggingRepo *tagging.Repository,
	detector *dedupe.Detector,
	emitter *events.Emitter,
	locker *redis.Locker,
	lockTTL time.Duration,
	lockWait time.Duration,
) *Engine {
	return &Engine{
		logger:           logger,
		entityRepo:       entityRepo,
		identifierRepo:   identifierRepo,
		relationshipRepo: relationshipRepo,
		entityRelRepo:    entityRelRepo,
		engagementRepo:   engagementRepo,
		customFieldRepo:  customFieldRepo,
		taggingRepo:      taggingRepo,
		detector:         detector,
		emitter:          emitter,
		locker:           locker,
		lockTTL:          lockTTL,
		lockWait:         lockWait,
	}
}

// MergeDuplicateEntities merges the duplicates into the primary inside one
// transaction. All dependent rows move to the primary, scalars the primary is
// missing are backfilled, provenance metadata accumulates, and the duplicates
// are hard-deleted. On any failure nothing is changed. Merges for a user are
// serialized behind a distributed lock.
func (e *Engine) MergeDuplicateEntities(ctx context.Context, userID, primaryID string, duplicateIDs []string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.MergeDuplicateEntities")
	defer span.End()

	lock, err := e.acquireUserLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx)

	primary, err := e.mergeGroup(ctx, userID, primaryID, duplicateIDs)
	if err != nil {
		return nil, err
	}

	e.emitter.EmitEntityMerged(ctx, primary, duplicateIDs)
	e.emitter.EmitEntitiesDeleted(ctx, userID, duplicateIDs)
	return primary, nil
}

// mergeGroup runs one merge transaction. Callers hold the user lock.
func (e *Engine) mergeGroup(ctx context.Context, userID, primaryID string, duplicateIDs []string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.mergeGroup")
	defer span.End()

	if len(duplicateIDs) == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "no duplicates to merge")
	}
	for _, id := range duplicateIDs {
		if id == primaryID {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, "cannot merge an entity into itself")
		}
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"user_id":    userID,
		"primary_id": primaryID,
		"duplicates": len(duplicateIDs),
	})

	ctxTx, tx, err := e.entityRepo.DB().GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	primary, err := e.entityRepo.Get(ctxTx, userID, primaryID)
	if err != nil {
		return nil, err
	}

	primaryIdentifiers, err := e.identifierRepo.ListByEntity(ctxTx, primaryID)
	if err != nil {
		return nil, err
	}
	identifierKeys := identifierKeySet(primaryIdentifiers)

	primaryFields, err := e.customFieldRepo.ListByEntity(ctxTx, primaryID)
	if err != nil {
		return nil, err
	}
	fieldKeys := customFieldKeySet(primaryFields)

	metadata := primary.Metadata.Data
	metadata.Absorb(primary)

	for _, dupID := range duplicateIDs {
		dup, err := e.entityRepo.Get(ctxTx, userID, dupID)
		if err != nil {
			return nil, err
		}

		if err := e.migrateDuplicate(ctxTx, userID, primary, dup, identifierKeys, fieldKeys); err != nil {
			return nil, err
		}

		backfillScalars(primary, dup)
		metadata.Absorb(dup)
	}

	metadata.RecordMerge(len(duplicateIDs), time.Now().UTC())
	primary.Metadata.Data = metadata

	if err := e.entityRepo.UpdateMergeResult(ctxTx, primary); err != nil {
		return nil, err
	}

	if err := e.entityRepo.HardDelete(ctxTx, userID, duplicateIDs); err != nil {
		return nil, err
	}

	identifiers, err := e.identifierRepo.ListByEntity(ctxTx, primaryID)
	if err != nil {
		return nil, err
	}
	primary.Identifiers = identifiers

	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	log.Info("Merged duplicate entities")
	return primary, nil
}

// migrateDuplicate moves one duplicate's dependent rows onto the primary.
func (e *Engine) migrateDuplicate(ctx context.Context, userID string, primary, dup *models.Entity, identifierKeys, fieldKeys map[string]bool) error {
	dupIdentifiers, err := e.identifierRepo.ListByEntity(ctx, dup.ID)
	if err != nil {
		return err
	}
	deleteIDs, moveIDs := splitIdentifiers(identifierKeys, dupIdentifiers)
	if err := e.identifierRepo.DeleteByIDs(ctx, deleteIDs); err != nil {
		return err
	}
	if err := e.identifierRepo.Repoint(ctx, moveIDs, primary.ID); err != nil {
		return err
	}

	if err := e.relationshipRepo.Repoint(ctx, userID, dup.ID, primary.ID); err != nil {
		return err
	}
	if err := e.entityRelRepo.Repoint(ctx, dup.ID, primary.ID); err != nil {
		return err
	}

	if _, err := e.engagementRepo.RepointInteractions(ctx, dup.ID, primary.ID); err != nil {
		return err
	}
	if _, err := e.engagementRepo.RepointConversations(ctx, dup.ID, primary.ID); err != nil {
		return err
	}
	if _, err := e.engagementRepo.RepointReminders(ctx, dup.ID, primary.ID); err != nil {
		return err
	}

	dupFields, err := e.customFieldRepo.ListByEntity(ctx, dup.ID)
	if err != nil {
		return err
	}
	deleteFieldIDs, moveFieldIDs := splitCustomFields(fieldKeys, dupFields)
	if err := e.customFieldRepo.DeleteByIDs(ctx, deleteFieldIDs); err != nil {
		return err
	}
	if err := e.customFieldRepo.Repoint(ctx, moveFieldIDs, primary.ID); err != nil {
		return err
	}

	// tag and group links belong to the contact the user curated them on;
	// they are dropped rather than migrated
	if err := e.taggingRepo.DeleteEntityLinks(ctx, dup.ID); err != nil {
		return err
	}

	return nil
}

// acquireUserLock serializes merges per user.
func (e *Engine) acquireUserLock(ctx context.Context, userID string) (*redis.Lock, error) {
	lock, err := e.locker.TryAcquire(ctx, "merge:user:"+userID, e.lockTTL, e.lockWait)
	if err != nil {
		if err == redis.ErrLockNotAcquired {
			return nil, httperror.NewHTTPError(http.StatusConflict, "another merge is in progress for this user")
		}
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to acquire merge lock")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to acquire merge lock")
	}
	return lock, nil
}
