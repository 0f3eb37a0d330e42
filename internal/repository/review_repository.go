package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roamly/tours-api/internal/model"
	"github.com/roamly/tours-api/internal/query"
)

const reviewCols = "id,review,rating,tour_id,user_id,created_at"

// ReviewColumns is the query-engine whitelist for review listings.  "tour"
// and "user" are the client-facing names of the foreign keys; nested routes
// scope by "tour".
var ReviewColumns = query.Columns{
	"id":        "id",
	"review":    "review",
	"rating":    "rating",
	"tour":      "tour_id",
	"user":      "user_id",
	"createdAt": "created_at",
}

type ReviewRepo struct{ DB *sql.DB }

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{DB: db} }

func scanReview(row interface{ Scan(...any) error }) (model.Review, error) {
	var rv model.Review
	err := row.Scan(&rv.ID, &rv.Review, &rv.Rating, &rv.TourID, &rv.UserID, &rv.CreatedAt)
	if err != nil {
		return model.Review{}, err
	}
	return rv, nil
}

func validateReview(rv model.Review) error {
	body := strings.TrimSpace(rv.Review)
	if body == "" {
		return fmt.Errorf("%w: a review cannot be empty", ErrValidation)
	}
	if len(body) > model.ReviewMaxLen {
		return fmt.Errorf("%w: review must be at most %d characters", ErrValidation, model.ReviewMaxLen)
	}
	if rv.Rating < model.RatingMin || rv.Rating > model.RatingMax {
		return fmt.Errorf("%w: rating must be between %d and %d", ErrValidation, model.RatingMin, model.RatingMax)
	}
	if rv.TourID == 0 {
		return fmt.Errorf("%w: review must belong to a tour", ErrValidation)
	}
	if rv.UserID == 0 {
		return fmt.Errorf("%w: review must belong to a user", ErrValidation)
	}
	return nil
}

// Insert creates a review.  The UNIQUE(tour_id, user_id) key turns a
// concurrent duplicate into ErrDuplicateReview atomically; a dangling tour
// or user reference surfaces as a validation error.
func (r *ReviewRepo) Insert(ctx context.Context, rv model.Review) (model.Review, error) {
	if err := validateReview(rv); err != nil {
		return model.Review{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO reviews (review, rating, tour_id, user_id) VALUES (?,?,?,?)",
		strings.TrimSpace(rv.Review), rv.Rating, rv.TourID, rv.UserID)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Review{}, ErrDuplicateReview
		}
		if isForeignKeyMiss(err) {
			return model.Review{}, fmt.Errorf("%w: tour or user does not exist", ErrValidation)
		}
		return model.Review{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Review{}, err
	}
	return r.FindByID(ctx, uint64(id))
}

// FindByID fetches a review by id.
func (r *ReviewRepo) FindByID(ctx context.Context, id uint64) (model.Review, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+reviewCols+" FROM reviews WHERE id=? LIMIT 1", id)
	rv, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Review{}, ErrNotFound
	}
	return rv, err
}

// FindAll lists reviews according to the query spec.  Nested routes add a
// "tour" condition to the spec before calling.
func (r *ReviewRepo) FindAll(ctx context.Context, spec query.Spec) ([]model.Review, error) {
	sqlText, args := spec.SelectSQL(reviewCols, "reviews", ReviewColumns)
	rows, err := r.DB.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []model.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

var reviewUpdatable = map[string]string{
	"review": "review",
	"rating": "rating",
}

// UpdateByID patches the body and/or rating of a review and returns the
// fresh row.  The tour and author references are immutable.
func (r *ReviewRepo) UpdateByID(ctx context.Context, id uint64, fields map[string]any) (model.Review, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return model.Review{}, err
	}

	set := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for f, v := range fields {
		col, ok := reviewUpdatable[f]
		if !ok {
			return model.Review{}, fmt.Errorf("%w: field %q is not updatable", ErrValidation, f)
		}
		switch f {
		case "review":
			s, ok := v.(string)
			if !ok {
				return model.Review{}, fmt.Errorf("%w: review must be a string", ErrValidation)
			}
			current.Review = s
		case "rating":
			n, ok := v.(float64)
			if !ok {
				return model.Review{}, fmt.Errorf("%w: rating must be a number", ErrValidation)
			}
			current.Rating = int(n)
		}
		set = append(set, col+"=?")
		args = append(args, v)
	}
	if len(set) == 0 {
		return model.Review{}, fmt.Errorf("%w: no updatable fields provided", ErrValidation)
	}
	if err := validateReview(current); err != nil {
		return model.Review{}, err
	}
	args = append(args, id)

	if _, err := r.DB.ExecContext(ctx,
		"UPDATE reviews SET "+strings.Join(set, ",")+" WHERE id=?", args...); err != nil {
		return model.Review{}, err
	}
	return r.FindByID(ctx, id)
}

// DeleteByID removes a review and returns the deleted row so the caller
// can recompute the parent tour's aggregates.
func (r *ReviewRepo) DeleteByID(ctx context.Context, id uint64) (model.Review, error) {
	rv, err := r.FindByID(ctx, id)
	if err != nil {
		return model.Review{}, err
	}
	if _, err := r.DB.ExecContext(ctx, "DELETE FROM reviews WHERE id=?", id); err != nil {
		return model.Review{}, err
	}
	return rv, nil
}
