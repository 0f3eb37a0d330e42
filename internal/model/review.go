package model

import "time"

// ReviewMaxLen bounds the free-text body of a review.
const ReviewMaxLen = 500

// Review represents a row in the `reviews` table.  A UNIQUE(tour_id,
// user_id) key guarantees at most one review per tour and author; the
// constraint lives in the database so concurrent creations fail atomically
// instead of racing through an application-level check.
type Review struct {
    ID        uint64    `json:"id"`
    Review    string    `json:"review"`
    Rating    int       `json:"rating"`
    TourID    uint64    `json:"tour"`
    UserID    uint64    `json:"user"`
    CreatedAt time.Time `json:"createdAt"`
}
