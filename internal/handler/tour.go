package handler

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/roamly/tours-api/internal/apperr"
	"github.com/roamly/tours-api/internal/model"
	"github.com/roamly/tours-api/internal/repository"
)

// TourHandler wraps the generic resource for /tours plus the aliased
// listing endpoints.
type TourHandler struct {
	Tours    *repository.TourRepo
	Resource Resource[model.Tour]
}

func NewTourHandler(tours *repository.TourRepo) *TourHandler {
	return &TourHandler{
		Tours:    tours,
		Resource: Resource[model.Tour]{Name: "tour", Store: tours},
	}
}

// CreateTour binds the full tour document and inserts it.
func (h *TourHandler) CreateTour(c echo.Context) error {
	return h.Resource.CreateOne(func(c echo.Context, ctx context.Context) (model.Tour, error) {
		var t model.Tour
		if err := c.Bind(&t); err != nil {
			return model.Tour{}, apperr.BadRequest("invalid body")
		}
		return h.Tours.Insert(ctx, t)
	})(c)
}

// TopCheapTours pre-loads the query string with the classic "5 best cheap
// tours" alias before handing off to the generic listing.
func (h *TourHandler) TopCheapTours(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		q := c.Request().URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		c.Request().URL.RawQuery = q.Encode()
		return next(c)
	}
}

// TourStats aggregates per-difficulty figures over non-secret tours with
// ratingsAverage >= 4.5.
func (h *TourHandler) TourStats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.Tours.Stats(ctx)
	if err != nil {
		return storeErr(err, "tour")
	}
	return respondList(c, len(stats), echo.Map{"stats": stats})
}

// MonthlyPlan counts tour starts per month of the given year.
func (h *TourHandler) MonthlyPlan(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1900 || year > 2200 {
		return apperr.BadRequest("invalid year")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	plan, err := h.Tours.MonthlyPlan(ctx, year)
	if err != nil {
		return storeErr(err, "tour")
	}
	return respondList(c, len(plan), echo.Map{"plan": plan})
}
