package duplicates

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/dedupe"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// Register registers duplicate detection and merge routes
func Register(g *echo.Group) {
	g.GET("", ListDuplicates)
	g.POST("/check", CheckDuplicates)
	g.POST("/merge", MergeDuplicates)
	g.POST("/auto-merge", AutoMergeDuplicates)
}

// ListDuplicates scans the user's entities and returns duplicate groups
func ListDuplicates(c echo.Context) error {
	ctx := c.Request().Context()
	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	ctx, detector, err := ectoinject.GetContext[*dedupe.Detector](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	groups, err := detector.FindAllDuplicates(ctx, userID)
	if err != nil {
		return err
	}

	if ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx); err == nil {
		emitter.EmitDuplicatesDetected(ctx, userID, groups)
	}

	if groups == nil {
		groups = []models.DuplicateGroup{}
	}
	return c.JSON(http.StatusOK, groups)
}

// CheckDuplicatesRequest describes a prospective contact to check
type CheckDuplicatesRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

// CheckDuplicates returns existing entities that resemble a prospective contact
func CheckDuplicates(c echo.Context) error {
	ctx := c.Request().Context()
	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	req, err := utils.BindRequest[CheckDuplicatesRequest](c)
	if err != nil {
		return err
	}

	ctx, detector, err := ectoinject.GetContext[*dedupe.Detector](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	matches, err := detector.FindDuplicates(ctx, userID, dedupe.Lookup{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		return err
	}

	if matches == nil {
		matches = []models.DuplicateMatch{}
	}
	return c.JSON(http.StatusOK, matches)
}

// MergeDuplicatesRequest names the surviving entity and its duplicates
type MergeDuplicatesRequest struct {
	PrimaryID    string   `json:"primary_id" validate:"required,uuid"`
	DuplicateIDs []string `json:"duplicate_ids" validate:"required,min=1,dive,uuid"`
}

// MergeDuplicates merges the duplicates into the primary entity
func MergeDuplicates(c echo.Context) error {
	ctx := c.Request().Context()
	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	req, err := utils.BindRequest[MergeDuplicatesRequest](c)
	if err != nil {
		return err
	}

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	primary, err := engine.MergeDuplicateEntities(ctx, userID, req.PrimaryID, req.DuplicateIDs)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, primary)
}

// AutoMergeDuplicates detects and merges all duplicate groups for the user
func AutoMergeDuplicates(c echo.Context) error {
	ctx := c.Request().Context()
	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	summary, err := engine.AutoMergeDuplicates(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}
