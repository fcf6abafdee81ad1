package database

import (
	"context"
	"time"

	"pricewatch/internal/model"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrackingStats aggregates the live tracking counters.
func (db Database) TrackingStats(ctx context.Context) (model.TrackingStats, error) {
	var s model.TrackingStats
	var err error
	products := db.Collection(CollectionProducts)
	records := db.Collection(CollectionPriceRecords)

	if s.TotalProducts, err = products.CountDocuments(ctx, bson.M{}); err != nil {
		return s, errors.Wrap(err, "error counting Products")
	}
	if s.ActiveProducts, err = products.CountDocuments(ctx, bson.M{"active": true}); err != nil {
		return s, errors.Wrap(err, "error counting active Products")
	}
	if s.TotalChecks, err = records.CountDocuments(ctx, bson.M{}); err != nil {
		return s, errors.Wrap(err, "error counting PriceRecords")
	}
	if s.TotalChanges, err = records.CountDocuments(ctx, bson.M{"ch": true}); err != nil {
		return s, errors.Wrap(err, "error counting changed PriceRecords")
	}
	dayAgo := primitive.NewDateTimeFromTime(time.Now().Add(-24 * time.Hour))
	if s.ChecksLast24h, err = records.CountDocuments(ctx, bson.M{"ts": bson.M{"$gte": dayAgo}}); err != nil {
		return s, errors.Wrap(err, "error counting PriceRecords from the last 24h")
	}
	if s.TotalChecks > 0 {
		s.ChangeRate = float64(s.TotalChanges) / float64(s.TotalChecks)
	}
	return s, nil
}
