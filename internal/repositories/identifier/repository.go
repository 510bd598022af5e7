package identifier

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

var identifierColumns = []string{
	"id", "entity_id", "type", "value", "normalized_value",
	"label", "is_primary", "created_at",
}

// Repository handles identifier persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new identifier repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListByEntity lists an entity's identifiers in creation order
func (r *Repository) ListByEntity(ctx context.Context, entityID string) ([]models.Identifier, error) {
	return r.ListByEntityIDs(ctx, []string{entityID})
}

// ListByEntityIDs lists identifiers for a batch of entities in creation order
func (r *Repository) ListByEntityIDs(ctx context.Context, entityIDs []string) ([]models.Identifier, error) {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.ListByEntityIDs")
	defer span.End()

	if len(entityIDs) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(identifierColumns...)
	sb.From("identifiers")
	sb.Where(
		sb.In("entity_id", sqlbuilder.Flatten(entityIDs)...),
	)
	sb.OrderBy("created_at", "id").Asc()

	query, args := sb.Build()

	var identifiers []models.Identifier
	if err := r.db.SelectContext(ctx, &identifiers, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_ids": entityIDs}).Error("Failed to list identifiers")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list identifiers")
	}

	return identifiers, nil
}

// DeleteByIDs removes identifiers
func (r *Repository) DeleteByIDs(ctx context.Context, ids []string) error {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.DeleteByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("identifiers")
	db.Where(
		db.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"identifier_ids": ids}).Error("Failed to delete identifiers")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete identifiers")
	}

	return nil
}

// Repoint moves identifiers onto another entity. Moved identifiers are
// demoted to non-primary so the receiving entity keeps its own primaries.
func (r *Repository) Repoint(ctx context.Context, ids []string, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.Repoint")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("identifiers")
	ub.Set(
		ub.Assign("entity_id", entityID),
		ub.Assign("is_primary", false),
	)
	ub.Where(
		ub.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"identifier_ids": ids, "entity_id": entityID}).Error("Failed to repoint identifiers")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint identifiers")
	}

	return nil
}
