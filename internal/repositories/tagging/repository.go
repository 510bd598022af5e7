package tagging

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles tag and group membership join rows
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new tagging repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// DeleteEntityLinks removes an entity's tag links and group memberships
func (r *Repository) DeleteEntityLinks(ctx context.Context, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "tagging.Repository.DeleteEntityLinks")
	defer span.End()

	for _, table := range []string{"entity_tags", "group_members"} {
		db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
		db.DeleteFrom(table)
		db.Where(
			db.Equal("entity_id", entityID),
		)

		query, args := db.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"table": table, "entity_id": entityID}).Error("Failed to delete entity links")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete "+table)
		}
	}

	return nil
}

// RepointTags moves tag links onto another entity and returns the number of
// links moved. Links the receiving entity already has are dropped instead of
// moved.
func (r *Repository) RepointTags(ctx context.Context, fromEntityID, toEntityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "tagging.Repository.RepointTags")
	defer span.End()

	existing := sqlbuilder.PostgreSQL.NewSelectBuilder()
	existing.Select("tag_id")
	existing.From("entity_tags")
	existing.Where(
		existing.Equal("entity_id", toEntityID),
	)

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("entity_tags")
	ub.Set(
		ub.Assign("entity_id", toEntityID),
	)
	ub.Where(
		ub.Equal("entity_id", fromEntityID),
		ub.NotIn("tag_id", existing),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"from": fromEntityID, "to": toEntityID}).Error("Failed to repoint tag links")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint tags")
	}

	moved, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"from": fromEntityID, "to": toEntityID}).Error("Failed to count repointed tag links")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint tags")
	}

	// drop whatever remains (links the target already had)
	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("entity_tags")
	del.Where(
		del.Equal("entity_id", fromEntityID),
	)

	query, args = del.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": fromEntityID}).Error("Failed to drop leftover tag links")
		return moved, httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint tags")
	}

	return moved, nil
}
