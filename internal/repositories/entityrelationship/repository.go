package entityrelationship

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles entity-to-entity relationship rows
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity relationship repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Repoint rewrites links so any that referenced the old entity, on either
// side, reference the new one. Links that collapse into self-references are
// deleted.
func (r *Repository) Repoint(ctx context.Context, fromEntityID, toEntityID string) error {
	ctx, span := tracing.StartSpan(ctx, "entityrelationship.Repository.Repoint")
	defer span.End()

	for _, column := range []string{"source_entity_id", "target_entity_id"} {
		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update("entity_relationships")
		ub.Set(
			ub.Assign(column, toEntityID),
		)
		ub.Where(
			ub.Equal(column, fromEntityID),
		)

		query, args := ub.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"from": fromEntityID, "to": toEntityID, "column": column}).Error("Failed to repoint entity relationships")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint entity relationships")
		}
	}

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("entity_relationships")
	del.Where(
		del.Equal("source_entity_id", toEntityID),
		"source_entity_id = target_entity_id",
	)

	query, args := del.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to prune self-referencing links")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint entity relationships")
	}

	return nil
}
