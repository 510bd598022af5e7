package customfield

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var customFieldColumns = []string{
	"id", "entity_id", "name", "category", "value", "created_at",
}

// Repository handles custom field persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new custom field repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListByEntity lists an entity's custom fields
func (r *Repository) ListByEntity(ctx context.Context, entityID string) ([]models.CustomField, error) {
	ctx, span := tracing.StartSpan(ctx, "customfield.Repository.ListByEntity")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(customFieldColumns...)
	sb.From("custom_fields")
	sb.Where(
		sb.Equal("entity_id", entityID),
	)
	sb.OrderBy("created_at", "id").Asc()

	query, args := sb.Build()

	var fields []models.CustomField
	if err := r.db.SelectContext(ctx, &fields, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to list custom fields")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list custom fields")
	}

	return fields, nil
}

// DeleteByIDs removes custom fields
func (r *Repository) DeleteByIDs(ctx context.Context, ids []string) error {
	ctx, span := tracing.StartSpan(ctx, "customfield.Repository.DeleteByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("custom_fields")
	db.Where(
		db.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"field_ids": ids}).Error("Failed to delete custom fields")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete custom fields")
	}

	return nil
}

// Repoint moves custom fields onto another entity
func (r *Repository) Repoint(ctx context.Context, ids []string, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "customfield.Repository.Repoint")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("custom_fields")
	ub.Set(
		ub.Assign("entity_id", entityID),
	)
	ub.Where(
		ub.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"field_ids": ids, "entity_id": entityID}).Error("Failed to repoint custom fields")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint custom fields")
	}

	return nil
}
