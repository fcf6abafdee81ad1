package database

import (
	"context"
	"time"

	"pricewatch/internal/model"
	"pricewatch/internal/tracker"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db Database) PriceRecordInsert(ctx context.Context, rec model.PriceRecord) error {
	_, err := db.Collection(CollectionPriceRecords).InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(tracker.ErrWriteConflict, "duplicate PriceRecord for ProductID: %s at %s",
				rec.ProductID, rec.Timestamp.Time().Format(time.RFC3339Nano))
		}
		return errors.Wrapf(err, "error inserting PriceRecord: %+v", rec)
	}
	return nil
}

func (db Database) PriceRecordFindLatestSuccess(ctx context.Context, productID string) (model.PriceRecord, error) {
	var rec model.PriceRecord
	opts := options.FindOne().SetSort(bson.M{"ts": -1})
	err := db.Collection(CollectionPriceRecords).FindOne(ctx,
		bson.M{"product_id": productID, "ok": true}, opts).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return rec, errors.Wrapf(tracker.ErrNotFound, "no successful PriceRecord for ProductID: %s", productID)
		}
		return rec, errors.Wrapf(err, "error finding latest successful PriceRecord for ProductID: %s", productID)
	}
	return rec, nil
}

// PriceRecordFindRecent returns the newest limit records in oldest-first
// order.
func (db Database) PriceRecordFindRecent(ctx context.Context, productID string, limit int) ([]model.PriceRecord, error) {
	var recs []model.PriceRecord
	opts := options.Find().SetSort(bson.M{"ts": -1}).SetLimit(int64(limit))
	cur, err := db.Collection(CollectionPriceRecords).Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find recent PriceRecords for ProductID: %s", productID)
	}
	if err = cur.All(ctx, &recs); err != nil {
		return nil, errors.Wrapf(err, "error getting recent PriceRecords from cursor for ProductID: %s", productID)
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

func (db Database) PriceRecordFindRange(
	ctx context.Context, productID string, start time.Time, end time.Time,
) ([]model.PriceRecord, error) {
	var recs []model.PriceRecord
	opts := options.Find().SetSort(bson.M{"ts": 1})
	cur, err := db.Collection(CollectionPriceRecords).Find(ctx, bson.M{
		"product_id": productID,
		"ts": bson.M{
			"$gte": primitive.NewDateTimeFromTime(start),
			"$lte": primitive.NewDateTimeFromTime(end),
		},
	}, opts)
	if err != nil {
		return nil, errors.Wrapf(err,
			"error getting cursor to find PriceRecords for ProductID: %s, start: %s, end: %s",
			productID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if err = cur.All(ctx, &recs); err != nil {
		return nil, errors.Wrapf(err,
			"error getting PriceRecords from cursor for ProductID: %s, start: %s, end: %s",
			productID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return recs, nil
}

// PriceRecordPrune keeps the newest keep records for one product and
// deletes the rest, reporting how many went.
func (db Database) PriceRecordPrune(ctx context.Context, productID string, keep int) (int64, error) {
	if keep < 1 {
		return 0, errors.Errorf("invalid number of PriceRecords to keep: %d", keep)
	}
	var cutoff model.PriceRecord
	opts := options.FindOne().SetSort(bson.M{"ts": -1}).SetSkip(int64(keep - 1))
	err := db.Collection(CollectionPriceRecords).FindOne(ctx, bson.M{"product_id": productID}, opts).Decode(&cutoff)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "error finding prune cutoff for ProductID: %s", productID)
	}
	res, err := db.Collection(CollectionPriceRecords).DeleteMany(ctx, bson.M{
		"product_id": productID,
		"ts":         bson.M{"$lt": cutoff.Timestamp},
	})
	if err != nil {
		return 0, errors.Wrapf(err, "error pruning PriceRecords for ProductID: %s", productID)
	}
	return res.DeletedCount, nil
}

func (db Database) PriceRecordDeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.Collection(CollectionPriceRecords).DeleteMany(ctx, bson.M{
		"ts": bson.M{"$lt": primitive.NewDateTimeFromTime(cutoff)},
	})
	if err != nil {
		return 0, errors.Wrapf(err, "error deleting PriceRecords older than %s", cutoff.Format(time.RFC3339))
	}
	return res.DeletedCount, nil
}
