package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roamly/tours-api/internal/model"
	"github.com/roamly/tours-api/internal/query"
	"github.com/roamly/tours-api/internal/utils"
)

const tourCols = "id,name,slug,duration,max_group_size,difficulty,ratings_average," +
	"ratings_quantity,price,price_discount,summary,description,image_cover,images," +
	"start_dates,secret_tour,created_at"

// TourColumns is the query-engine whitelist for tour listings.  The derived
// rating fields are filterable and sortable but never writable.
var TourColumns = query.Columns{
	"id":              "id",
	"name":            "name",
	"slug":            "slug",
	"duration":        "duration",
	"maxGroupSize":    "max_group_size",
	"difficulty":      "difficulty",
	"ratingsAverage":  "ratings_average",
	"ratingsQuantity": "ratings_quantity",
	"price":           "price",
	"priceDiscount":   "price_discount",
	"createdAt":       "created_at",
}

// ScopePublicTours hides secret tours from every read path, the explicit
// counterpart of the old implicit "not secret" scoping.
var ScopePublicTours = query.Scope{Name: "exclude-secret-tours", Where: "secret_tour = 0"}

type TourRepo struct{ DB *sql.DB }

func NewTourRepo(db *sql.DB) *TourRepo { return &TourRepo{DB: db} }

func scanTour(row interface{ Scan(...any) error }) (model.Tour, error) {
	var t model.Tour
	var discount sql.NullFloat64
	var summary, description, imageCover sql.NullString
	var images, startDates []byte
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Duration, &t.MaxGroupSize, &t.Difficulty,
		&t.RatingsAverage, &t.RatingsQuantity, &t.Price, &discount, &summary,
		&description, &imageCover, &images, &startDates, &t.SecretTour, &t.CreatedAt)
	if err != nil {
		return model.Tour{}, err
	}
	if discount.Valid {
		d := discount.Float64
		t.PriceDiscount = &d
	}
	t.Summary = summary.String
	t.Description = description.String
	t.ImageCover = imageCover.String
	if len(images) > 0 {
		_ = json.Unmarshal(images, &t.Images)
	}
	if len(startDates) > 0 {
		_ = json.Unmarshal(startDates, &t.StartDates)
	}
	return t, nil
}

// validateTour enforces the entity rules shared by insert and update.
func validateTour(t model.Tour) error {
	if n := len(strings.TrimSpace(t.Name)); n < 10 || n > 40 {
		return fmt.Errorf("%w: tour name must be 10-40 characters", ErrValidation)
	}
	if t.Duration <= 0 {
		return fmt.Errorf("%w: tour must have a duration", ErrValidation)
	}
	if t.MaxGroupSize <= 0 {
		return fmt.Errorf("%w: tour must have a group size", ErrValidation)
	}
	switch t.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyDifficult:
	default:
		return fmt.Errorf("%w: difficulty is either easy, medium or difficult", ErrValidation)
	}
	if t.Price <= 0 {
		return fmt.Errorf("%w: tour must have a price", ErrValidation)
	}
	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		return fmt.Errorf("%w: discount price should be below regular price", ErrValidation)
	}
	return nil
}

// Insert creates a tour and returns the stored row.  The slug is derived
// from the name here, as an explicit service step rather than a hidden
// persistence hook.  Rating fields always start at their column defaults.
func (r *TourRepo) Insert(ctx context.Context, t model.Tour) (model.Tour, error) {
	t.Name = strings.TrimSpace(t.Name)
	if err := validateTour(t); err != nil {
		return model.Tour{}, err
	}
	images, err := json.Marshal(t.Images)
	if err != nil {
		return model.Tour{}, err
	}
	startDates, err := json.Marshal(t.StartDates)
	if err != nil {
		return model.Tour{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO tours (name, slug, duration, max_group_size, difficulty, price,
		 price_discount, summary, description, image_cover, images, start_dates, secret_tour)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.Name, utils.Slugify(t.Name), t.Duration, t.MaxGroupSize, t.Difficulty, t.Price,
		t.PriceDiscount, t.Summary, t.Description, t.ImageCover, images, startDates, t.SecretTour)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Tour{}, ErrTourNameExists
		}
		return model.Tour{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Tour{}, err
	}
	return r.findByIDAnyVisibility(ctx, uint64(id))
}

// FindByID fetches a non-secret tour by id.
func (r *TourRepo) FindByID(ctx context.Context, id uint64) (model.Tour, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+tourCols+" FROM tours WHERE id=? AND "+ScopePublicTours.Where+" LIMIT 1", id)
	t, err := scanTour(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tour{}, ErrNotFound
	}
	return t, err
}

// findByIDAnyVisibility skips the secret-tour scope; used right after a
// write so a freshly created secret tour can still be returned to its
// creator.
func (r *TourRepo) findByIDAnyVisibility(ctx context.Context, id uint64) (model.Tour, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+tourCols+" FROM tours WHERE id=? LIMIT 1", id)
	t, err := scanTour(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tour{}, ErrNotFound
	}
	return t, err
}

// FindAll lists non-secret tours according to the query spec.
func (r *TourRepo) FindAll(ctx context.Context, spec query.Spec) ([]model.Tour, error) {
	sqlText, args := spec.SelectSQL(tourCols, "tours", TourColumns, ScopePublicTours)
	rows, err := r.DB.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tours := []model.Tour{}
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		tours = append(tours, t)
	}
	return tours, rows.Err()
}

var tourUpdatable = map[string]string{
	"name":          "name",
	"duration":      "duration",
	"maxGroupSize":  "max_group_size",
	"difficulty":    "difficulty",
	"price":         "price",
	"priceDiscount": "price_discount",
	"summary":       "summary",
	"description":   "description",
	"imageCover":    "image_cover",
	"secretTour":    "secret_tour",
}

// UpdateByID patches the whitelisted fields of a tour, re-validates the
// resulting row and returns it.  Renames recompute the slug.  The derived
// rating fields are absent from the whitelist on purpose.
func (r *TourRepo) UpdateByID(ctx context.Context, id uint64, fields map[string]any) (model.Tour, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return model.Tour{}, err
	}

	set := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for f, v := range fields {
		col, ok := tourUpdatable[f]
		if !ok {
			return model.Tour{}, fmt.Errorf("%w: field %q is not updatable", ErrValidation, f)
		}
		if err := applyTourField(&current, f, v); err != nil {
			return model.Tour{}, err
		}
		set = append(set, col+"=?")
		args = append(args, normalizeTourValue(f, v))
	}
	if err := validateTour(current); err != nil {
		return model.Tour{}, err
	}
	if _, renamed := fields["name"]; renamed {
		set = append(set, "slug=?")
		args = append(args, utils.Slugify(current.Name))
	}
	if len(set) == 0 {
		return model.Tour{}, fmt.Errorf("%w: no updatable fields provided", ErrValidation)
	}
	args = append(args, id)

	if _, err := r.DB.ExecContext(ctx,
		"UPDATE tours SET "+strings.Join(set, ",")+" WHERE id=?", args...); err != nil {
		if isDuplicateKey(err) {
			return model.Tour{}, ErrTourNameExists
		}
		return model.Tour{}, err
	}
	return r.findByIDAnyVisibility(ctx, id)
}

// applyTourField mirrors a patch onto the in-memory copy so the combined
// row can be validated before touching the database.  A value of the
// wrong JSON type is a validation error; it must never reach the UPDATE
// with the mirror still holding the old value.
func applyTourField(t *model.Tour, field string, v any) error {
	switch field {
	case "name":
		s, ok := v.(string)
		if !ok {
			return typeErr(field, "a string")
		}
		t.Name = strings.TrimSpace(s)
	case "duration":
		f, ok := v.(float64)
		if !ok {
			return typeErr(field, "a number")
		}
		t.Duration = int(f)
	case "maxGroupSize":
		f, ok := v.(float64)
		if !ok {
			return typeErr(field, "a number")
		}
		t.MaxGroupSize = int(f)
	case "difficulty":
		s, ok := v.(string)
		if !ok {
			return typeErr(field, "a string")
		}
		t.Difficulty = s
	case "price":
		f, ok := v.(float64)
		if !ok {
			return typeErr(field, "a number")
		}
		t.Price = f
	case "priceDiscount":
		if v == nil {
			t.PriceDiscount = nil
			break
		}
		f, ok := v.(float64)
		if !ok {
			return typeErr(field, "a number or null")
		}
		t.PriceDiscount = &f
	case "summary":
		s, ok := v.(string)
		if !ok {
			return typeErr(field, "a string")
		}
		t.Summary = s
	case "description":
		s, ok := v.(string)
		if !ok {
			return typeErr(field, "a string")
		}
		t.Description = s
	case "imageCover":
		s, ok := v.(string)
		if !ok {
			return typeErr(field, "a string")
		}
		t.ImageCover = s
	case "secretTour":
		b, ok := v.(bool)
		if !ok {
			return typeErr(field, "a boolean")
		}
		t.SecretTour = b
	}
	return nil
}

func typeErr(field, want string) error {
	return fmt.Errorf("%w: %s must be %s", ErrValidation, field, want)
}

// normalizeTourValue trims the name so slug and column stay in sync.
func normalizeTourValue(field string, v any) any {
	if field == "name" {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return v
}

// TourStatsRow is one per-difficulty aggregate bucket.
type TourStatsRow struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

// Stats groups well-rated public tours by difficulty.
func (r *TourRepo) Stats(ctx context.Context) ([]TourStatsRow, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT UPPER(difficulty), COUNT(*), SUM(ratings_quantity),
		 AVG(ratings_average), AVG(price), MIN(price), MAX(price)
		 FROM tours WHERE `+ScopePublicTours.Where+` AND ratings_average >= 4.5
		 GROUP BY difficulty ORDER BY AVG(price)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []TourStatsRow{}
	for rows.Next() {
		var s TourStatsRow
		if err := rows.Scan(&s.Difficulty, &s.NumTours, &s.NumRatings,
			&s.AvgRating, &s.AvgPrice, &s.MinPrice, &s.MaxPrice); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// MonthlyPlanRow counts the tours starting in one month of a year.
type MonthlyPlanRow struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// MonthlyPlan buckets start dates of public tours by month of the given
// year.  start_dates lives in a JSON column, so the unpacking happens here
// rather than in SQL; the tour table is small enough for a full scan.
func (r *TourRepo) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlanRow, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT name, start_dates FROM tours WHERE "+ScopePublicTours.Where)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byMonth := map[int]*MonthlyPlanRow{}
	for rows.Next() {
		var name string
		var raw []byte
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		var dates []time.Time
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &dates)
		}
		for _, d := range dates {
			if d.Year() != year {
				continue
			}
			m := int(d.Month())
			row, ok := byMonth[m]
			if !ok {
				row = &MonthlyPlanRow{Month: m}
				byMonth[m] = row
			}
			row.NumTourStarts++
			row.Tours = append(row.Tours, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	plan := make([]MonthlyPlanRow, 0, len(byMonth))
	for _, row := range byMonth {
		plan = append(plan, *row)
	}
	sort.Slice(plan, func(i, j int) bool {
		if plan[i].NumTourStarts != plan[j].NumTourStarts {
			return plan[i].NumTourStarts > plan[j].NumTourStarts
		}
		return plan[i].Month < plan[j].Month
	})
	return plan, nil
}

// DeleteByID removes a tour and returns the deleted row.  Reviews cascade
// at the schema level.
func (r *TourRepo) DeleteByID(ctx context.Context, id uint64) (model.Tour, error) {
	t, err := r.FindByID(ctx, id)
	if err != nil {
		return model.Tour{}, err
	}
	if _, err := r.DB.ExecContext(ctx, "DELETE FROM tours WHERE id=?", id); err != nil {
		return model.Tour{}, err
	}
	return t, nil
}
