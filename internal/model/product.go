package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a tracked product. ID is derived from the source site and the
// site's own product identifier (for example "amazon_B0ABC12345"), so the
// same listing registered twice resolves to the same Product.
type Product struct {
	ID            string             `bson:"_id" json:"product_id"`
	URL           string             `bson:"url" json:"url"`
	Name          string             `bson:"name" json:"name"`
	Site          string             `bson:"site" json:"site"`
	ImageURL      string             `bson:"image_url" json:"image_url"`
	Active        bool               `bson:"active" json:"-"`
	CreatedAt     primitive.DateTime `bson:"created_at" json:"-"`
	LastCheckedAt primitive.DateTime `bson:"last_checked_at" json:"-"`
}

// Age is the time since the product was first registered.
func (p Product) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt.Time())
}

// CheckedWithin reports whether the product completed a check cycle within d
// of now. A product that has never been checked reports false for any d.
func (p Product) CheckedWithin(now time.Time, d time.Duration) bool {
	if p.LastCheckedAt == 0 {
		return false
	}
	return now.Sub(p.LastCheckedAt.Time()) < d
}
