package entity

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/identifier"
	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// Register registers entity routes
func Register(g *echo.Group) {
	g.GET("", ListEntities)
	g.GET("/:id", GetEntity)
	g.POST("/merge", MergeEntities)
}

// ListEntities lists the user's non-archived entities
func ListEntities(c echo.Context) error {
	ctx := c.Request().Context()
	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*entityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entities, err := repo.ListActive(ctx, userID, limit)
	if err != nil {
		return err
	}

	if entities == nil {
		entities = []models.Entity{}
	}
	return c.JSON(http.StatusOK, entities)
}

// GetEntity fetches an entity with its identifiers
func GetEntity(c echo.Context) error {
	ctx := c.Request().Context()
	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*entityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entity, err := repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	ctx, identifierRepo, err := ectoinject.GetContext[*identifier.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	identifiers, err := identifierRepo.ListByEntity(ctx, entity.ID)
	if err != nil {
		return err
	}
	entity.Identifiers = identifiers

	return c.JSON(http.StatusOK, entity)
}

// MergeEntitiesRequest describes a pairwise merge
type MergeEntitiesRequest struct {
	SourceID            string `json:"source_id" validate:"required,uuid"`
	TargetID            string `json:"target_id" validate:"required,uuid"`
	MigrateIdentifiers  *bool  `json:"migrate_identifiers"`
	MigrateTags         *bool  `json:"migrate_tags"`
	MigrateInteractions *bool  `json:"migrate_interactions"`
}

// MergeEntities absorbs the source entity into the target
func MergeEntities(c echo.Context) error {
	ctx := c.Request().Context()
	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	req, err := utils.BindRequest[MergeEntitiesRequest](c)
	if err != nil {
		return err
	}

	opts := models.DefaultMergeOptions()
	if req.MigrateIdentifiers != nil {
		opts.Identifiers = *req.MigrateIdentifiers
	}
	if req.MigrateTags != nil {
		opts.Tags = *req.MigrateTags
	}
	if req.MigrateInteractions != nil {
		opts.Interactions = *req.MigrateInteractions
	}

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	summary, err := engine.MergeEntities(ctx, userID, req.SourceID, req.TargetID, opts)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}
