package engagement

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles the engagement history tables (interactions,
// conversations, reminders). They share a shape: rows hang off an entity and
// merges move them wholesale.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new engagement repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// RepointInteractions moves interactions onto another entity and returns the
// number of rows moved
func (r *Repository) RepointInteractions(ctx context.Context, fromEntityID, toEntityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "engagement.Repository.RepointInteractions")
	defer span.End()

	return r.repoint(ctx, "interactions", fromEntityID, toEntityID)
}

// RepointConversations moves conversations onto another entity and returns
// the number of rows moved
func (r *Repository) RepointConversations(ctx context.Context, fromEntityID, toEntityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "engagement.Repository.RepointConversations")
	defer span.End()

	return r.repoint(ctx, "conversations", fromEntityID, toEntityID)
}

// RepointReminders moves reminders onto another entity and returns the number
// of rows moved
func (r *Repository) RepointReminders(ctx context.Context, fromEntityID, toEntityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "engagement.Repository.RepointReminders")
	defer span.End()

	return r.repoint(ctx, "reminders", fromEntityID, toEntityID)
}

func (r *Repository) repoint(ctx context.Context, table, fromEntityID, toEntityID string) (int64, error) {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("entity_id", toEntityID),
	)
	ub.Where(
		ub.Equal("entity_id", fromEntityID),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"table": table, "from": fromEntityID, "to": toEntityID}).Error("Failed to repoint engagement rows")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint "+table)
	}

	moved, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"table": table, "from": fromEntityID, "to": toEntityID}).Error("Failed to count repointed engagement rows")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint "+table)
	}
	return moved, nil
}
