package entity

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var entityColumns = []string{
	"id", "user_id", "type", "name", "description", "avatar_url",
	"external_id", "source", "metadata", "last_interaction_at",
	"archived", "created_at", "updated_at",
}

// Repository handles entity persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// DB exposes the underlying database handle so callers can open transactions
func (r *Repository) DB() database.DB {
	return r.db
}

// Get fetches an entity owned by the user
func (r *Repository) Get(ctx context.Context, userID, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(entityColumns...)
	sb.From("entities")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("user_id", userID),
	)

	query, args := sb.Build()

	var entity models.Entity
	if err := r.db.GetContext(ctx, &entity, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "entity not found")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": id}).Error("Failed to get entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity")
	}

	return &entity, nil
}

// ListActive lists the user's non-archived entities, oldest first. A limit of
// zero means no limit.
func (r *Repository) ListActive(ctx context.Context, userID string, limit int) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ListActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(entityColumns...)
	sb.From("entities")
	sb.Where(
		sb.Equal("user_id", userID),
		sb.Equal("archived", false),
	)
	sb.OrderBy("created_at", "id").Asc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()

	var entities []models.Entity
	if err := r.db.SelectContext(ctx, &entities, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to list entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list entities")
	}

	return entities, nil
}

// UpdateMergeResult persists the fields a merge may have changed on the
// surviving entity: backfilled scalars and the accumulated metadata.
func (r *Repository) UpdateMergeResult(ctx context.Context, entity *models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.UpdateMergeResult")
	defer span.End()

	entity.UpdatedAt = time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("entities")
	ub.Set(
		ub.Assign("description", entity.Description),
		ub.Assign("avatar_url", entity.AvatarURL),
		ub.Assign("last_interaction_at", entity.LastInteractionAt),
		ub.Assign("metadata", entity.Metadata),
		ub.Assign("updated_at", entity.UpdatedAt),
	)
	ub.Where(
		ub.Equal("id", entity.ID),
		ub.Equal("user_id", entity.UserID),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entity.ID}).Error("Failed to update merged entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update entity")
	}

	return nil
}

// HardDelete removes entities permanently. Dependent rows must already be
// repointed or deleted; remaining ones go down with the entity via cascade.
func (r *Repository) HardDelete(ctx context.Context, userID string, ids []string) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.HardDelete")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("entities")
	db.Where(
		db.Equal("user_id", userID),
		db.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_ids": ids}).Error("Failed to delete entities")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete entities")
	}

	return nil
}
