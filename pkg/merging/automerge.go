package merging

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// AutoMergeDuplicates detects all duplicate groups for a user and merges
// each one in its own transaction. A group that fails to merge is counted
// and skipped; the remaining groups still go through. The whole pass runs
// behind the per-user merge lock.
func (e *Engine) AutoMergeDuplicates(ctx context.Context, userID string) (*models.AutoMergeSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.AutoMergeDuplicates")
	defer span.End()

	lock, err := e.acquireUserLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx)

	groups, err := e.detector.FindAllDuplicates(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &models.AutoMergeSummary{}
	for _, group := range groups {
		// a pass over many groups can outlive the initial TTL
		if err := lock.Extend(ctx, e.lockTTL); err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Warn("Failed to extend merge lock")
		}

		duplicateIDs := make([]string, len(group.Duplicates))
		for i, dup := range group.Duplicates {
			duplicateIDs[i] = dup.ID
		}

		primary, err := e.mergeGroup(ctx, userID, group.Primary.ID, duplicateIDs)
		if err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"user_id":    userID,
				"primary_id": group.Primary.ID,
			}).Warn("Skipping duplicate group that failed to merge")
			summary.FailedGroups++
			continue
		}

		e.emitter.EmitEntityMerged(ctx, primary, duplicateIDs)
		e.emitter.EmitEntitiesDeleted(ctx, userID, duplicateIDs)
		summary.MergedGroups++
		summary.TotalDuplicatesRemoved += len(duplicateIDs)
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"user_id":       userID,
		"merged_groups": summary.MergedGroups,
		"failed_groups": summary.FailedGroups,
		"removed":       summary.TotalDuplicatesRemoved,
	}).Info("Auto-merge pass complete")

	return summary, nil
}
