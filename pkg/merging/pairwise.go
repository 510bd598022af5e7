package merging

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// MergeEntities is the user-driven two-entity merge: the source entity is
// absorbed into the target and deleted. Which collections move is controlled
// by opts; unlike MergeDuplicateEntities it does not consolidate provenance
// metadata, it just reports what it transferred.
func (e *Engine) MergeEntities(ctx context.Context, userID, sourceID, targetID string, opts models.MergeOptions) (*models.MergeTransferSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.MergeEntities")
	defer span.End()

	if sourceID == targetID {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "cannot merge an entity into itself")
	}

	lock, err := e.acquireUserLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx)

	ctxTx, tx, err := e.entityRepo.DB().GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	source, err := e.entityRepo.Get(ctxTx, userID, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := e.entityRepo.Get(ctxTx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if err := validatePair(source, target); err != nil {
		return nil, err
	}

	summary := &models.MergeTransferSummary{}

	if opts.Identifiers {
		targetIdentifiers, err := e.identifierRepo.ListByEntity(ctxTx, targetID)
		if err != nil {
			return nil, err
		}
		sourceIdentifiers, err := e.identifierRepo.ListByEntity(ctxTx, sourceID)
		if err != nil {
			return nil, err
		}
		deleteIDs, moveIDs := splitIdentifiers(identifierKeySet(targetIdentifiers), sourceIdentifiers)
		if err := e.identifierRepo.DeleteByIDs(ctxTx, deleteIDs); err != nil {
			return nil, err
		}
		if err := e.identifierRepo.Repoint(ctxTx, moveIDs, targetID); err != nil {
			return nil, err
		}
		summary.IdentifiersTransferred = len(moveIDs)
	}

	if opts.Tags {
		moved, err := e.taggingRepo.RepointTags(ctxTx, sourceID, targetID)
		if err != nil {
			return nil, err
		}
		summary.TagsTransferred = int(moved)
	}

	if opts.Interactions {
		moved, err := e.engagementRepo.RepointInteractions(ctxTx, sourceID, targetID)
		if err != nil {
			return nil, err
		}
		summary.InteractionsTransferred = int(moved)
	}

	// the user's relationship row and entity links always follow the
	// surviving entity; anything left behind goes down with the source
	if err := e.relationshipRepo.Repoint(ctxTx, userID, sourceID, targetID); err != nil {
		return nil, err
	}
	if err := e.entityRelRepo.Repoint(ctxTx, sourceID, targetID); err != nil {
		return nil, err
	}

	if err := e.entityRepo.HardDelete(ctxTx, userID, []string{sourceID}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	e.emitter.EmitEntityMerged(ctx, target, []string{sourceID})
	e.emitter.EmitEntitiesDeleted(ctx, userID, []string{sourceID})
	return summary, nil
}

// validatePair rejects merges between entities that cannot represent the
// same contact.
func validatePair(source, target *models.Entity) error {
	if source.ID == target.ID {
		return httperror.NewHTTPError(http.StatusBadRequest, "cannot merge an entity into itself")
	}
	if source.Type != target.Type {
		return httperror.NewHTTPError(http.StatusBadRequest, "entity types do not match")
	}
	return nil
}
