package model

import "time"

// Tour difficulty levels accepted by validation.
const (
    DifficultyEasy      = "easy"
    DifficultyMedium    = "medium"
    DifficultyDifficult = "difficult"
)

// Rating bounds and the value a tour starts (and resets) with before any
// review exists.
const (
    RatingMin            = 1
    RatingMax            = 5
    DefaultRatingAverage = 4.5
)

// Tour represents a row in the `tours` table.  RatingsAverage and
// RatingsQuantity are derived fields: they are recomputed from the tour's
// reviews after every review mutation and are never writable through the
// API.  Images and StartDates are stored as JSON columns.
type Tour struct {
    ID              uint64      `json:"id"`
    Name            string      `json:"name"`
    Slug            string      `json:"slug"`
    Duration        int         `json:"duration"`
    MaxGroupSize    int         `json:"maxGroupSize"`
    Difficulty      string      `json:"difficulty"`
    RatingsAverage  float64     `json:"ratingsAverage"`
    RatingsQuantity int         `json:"ratingsQuantity"`
    Price           float64     `json:"price"`
    PriceDiscount   *float64    `json:"priceDiscount,omitempty"`
    Summary         string      `json:"summary"`
    Description     string      `json:"description,omitempty"`
    ImageCover      string      `json:"imageCover"`
    Images          []string    `json:"images,omitempty"`
    StartDates      []time.Time `json:"startDates,omitempty"`
    SecretTour      bool        `json:"-"`
    CreatedAt       time.Time   `json:"createdAt"`
}
