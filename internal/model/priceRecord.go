package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// PriceRecord is one check attempt for a product. Failed attempts are
// recorded too, with Success false, a zero price and Reason set. Changed
// marks a successful check whose price differs from the previous successful
// one.
type PriceRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ProductID string             `bson:"product_id" json:"-"`
	Price     float64            `bson:"pr" json:"pr"`
	Success   bool               `bson:"ok" json:"ok"`
	Changed   bool               `bson:"ch,omitempty" json:"ch,omitempty"`
	Reason    string             `bson:"rs,omitempty" json:"rs,omitempty"`
	Timestamp primitive.DateTime `bson:"ts" json:"ts"`
}
