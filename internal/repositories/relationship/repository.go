package relationship

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles the user-to-entity relationship rows
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new relationship repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Repoint moves the user's relationship row from one entity to another. A
// user has at most one relationship row per entity, so when the receiving
// entity already has one the moving row is dropped instead.
func (r *Repository) Repoint(ctx context.Context, userID, fromEntityID, toEntityID string) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Repoint")
	defer span.End()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("relationships")
	sub := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sub.Select("1")
	sub.From("relationships r2")
	sub.Where(
		sub.Equal("r2.user_id", userID),
		sub.Equal("r2.entity_id", toEntityID),
	)
	del.Where(
		del.Equal("user_id", userID),
		del.Equal("entity_id", fromEntityID),
		del.Exists(sub),
	)

	query, args := del.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"from": fromEntityID, "to": toEntityID}).Error("Failed to drop duplicate relationship")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint relationship")
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("relationships")
	ub.Set(
		ub.Assign("entity_id", toEntityID),
	)
	ub.Where(
		ub.Equal("user_id", userID),
		ub.Equal("entity_id", fromEntityID),
	)

	query, args = ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"from": fromEntityID, "to": toEntityID}).Error("Failed to repoint relationship")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint relationship")
	}

	return nil
}
