// Package service holds the explicit side-effect steps the mutation paths
// invoke: rating aggregation and reset-mail dispatch.  They used to be
// implicit persistence hooks in an earlier life of this system; keeping
// them as named services makes each one testable in isolation.
package service

import (
	"context"
	"database/sql"

	"github.com/roamly/tours-api/internal/model"
)

// RatingAggregator recomputes a tour's ratings_average/ratings_quantity
// from the current set of its reviews.  It always runs a fresh full scan,
// never an incremental adjustment, so concurrent review mutations on the
// same tour converge to the same final state regardless of interleaving.
type RatingAggregator struct{ DB *sql.DB }

func NewRatingAggregator(db *sql.DB) *RatingAggregator { return &RatingAggregator{DB: db} }

// Recompute scans the tour's reviews and writes both aggregate fields in
// one transaction.  With no reviews left the average resets to the column
// default (4.5) and the quantity to zero.  Callers invoke this after every
// review create/update/delete, before the HTTP response is written, so the
// next read of the tour observes the new aggregates.
func (a *RatingAggregator) Recompute(ctx context.Context, tourID uint64) error {
	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var quantity int
	var average float64
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(rating), ?) FROM reviews WHERE tour_id=?",
		model.DefaultRatingAverage, tourID).Scan(&quantity, &average)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE tours SET ratings_quantity=?, ratings_average=ROUND(?,1) WHERE id=?",
		quantity, average, tourID); err != nil {
		return err
	}
	return tx.Commit()
}
