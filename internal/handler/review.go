package handler

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/roamly/tours-api/internal/apperr"
	"github.com/roamly/tours-api/internal/middleware"
	"github.com/roamly/tours-api/internal/model"
	"github.com/roamly/tours-api/internal/query"
	"github.com/roamly/tours-api/internal/repository"
	"github.com/roamly/tours-api/internal/service"
)

// ReviewHandler wires the generic resource for reviews to the rating
// aggregator: every write that lands re-derives the owning tour's rating
// figures before the response goes out.
type ReviewHandler struct {
	Reviews  *repository.ReviewRepo
	Resource Resource[model.Review]
}

func NewReviewHandler(reviews *repository.ReviewRepo, ratings *service.RatingAggregator) *ReviewHandler {
	h := &ReviewHandler{Reviews: reviews}
	h.Resource = Resource[model.Review]{
		Name:  "review",
		Store: reviews,
		Authorize: func(c echo.Context, doc model.Review) error {
			u, ok := middleware.CurrentUser(c)
			if !ok {
				return apperr.Unauthorized("you are not logged in, please log in to get access")
			}
			if u.Role != model.RoleAdmin && u.ID != doc.UserID {
				return apperr.Forbidden("you can only modify your own reviews")
			}
			return nil
		},
		AfterChange: func(ctx context.Context, doc model.Review) error {
			return ratings.Recompute(ctx, doc.TourID)
		},
	}
	return h
}

// CreateReview inserts a review.  The tour comes from the nested route
// when present, the author always from the session; both silently win
// over anything the client put in the body.
func (h *ReviewHandler) CreateReview(c echo.Context) error {
	return h.Resource.CreateOne(func(c echo.Context, ctx context.Context) (model.Review, error) {
		var rv model.Review
		if err := c.Bind(&rv); err != nil {
			return model.Review{}, apperr.BadRequest("invalid body")
		}
		if tourID, err := nestedTourID(c); err != nil {
			return model.Review{}, err
		} else if tourID != 0 {
			rv.TourID = tourID
		}
		u, ok := middleware.CurrentUser(c)
		if !ok {
			return model.Review{}, apperr.Unauthorized("you are not logged in, please log in to get access")
		}
		rv.UserID = u.ID
		return h.Reviews.Insert(ctx, rv)
	})(c)
}

// ListReviews serves both the flat and the nested listing; the base
// filter is a no-op when no :tourId is in the path.
func (h *ReviewHandler) ListReviews() echo.HandlerFunc {
	return h.Resource.GetAll(reviewBaseFilter)
}

// reviewBaseFilter narrows nested listings (/tours/:tourId/reviews) to the
// tour in the path.
func reviewBaseFilter(c echo.Context) ([]query.Cond, error) {
	tourID, err := nestedTourID(c)
	if err != nil {
		return nil, err
	}
	if tourID == 0 {
		return nil, nil
	}
	return []query.Cond{{Field: "tour", Op: query.OpEq, Value: strconv.FormatUint(tourID, 10)}}, nil
}

func nestedTourID(c echo.Context) (uint64, error) {
	raw := c.Param("tourId")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.BadRequest("invalid tour id")
	}
	return id, nil
}
