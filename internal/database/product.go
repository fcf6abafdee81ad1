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
)

// ProductUpsert starts tracking a product. A new listing is inserted; a
// known one is reactivated with its history intact and its metadata
// refreshed. The returned bool reports whether the product is new.
func (db Database) ProductUpsert(ctx context.Context, p model.Product) (model.Product, bool, error) {
	var existing model.Product
	err := db.Collection(CollectionProducts).FindOne(ctx, bson.M{"_id": p.ID}).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			p.Active = true
			p.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
			if _, err := db.Collection(CollectionProducts).InsertOne(ctx, p); err != nil {
				return model.Product{}, false, errors.Wrapf(err, "error inserting Product: %+v", p)
			}
			return p, true, nil
		}
		return model.Product{}, false, errors.Wrapf(err, "error trying to find existing Product: %+v", p)
	}

	set := bson.M{"active": true, "url": p.URL, "site": p.Site}
	if p.Name != "" {
		set["name"] = p.Name
	}
	if p.ImageURL != "" {
		set["image_url"] = p.ImageURL
	}
	if _, err := db.Collection(CollectionProducts).UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": set}); err != nil {
		return model.Product{}, false, errors.Wrapf(err, "error reactivating Product with ID: %s", p.ID)
	}
	existing.Active = true
	existing.URL = p.URL
	existing.Site = p.Site
	if p.Name != "" {
		existing.Name = p.Name
	}
	if p.ImageURL != "" {
		existing.ImageURL = p.ImageURL
	}
	return existing, false, nil
}

func (db Database) ProductFind(ctx context.Context, id string) (model.Product, error) {
	var p model.Product
	err := db.Collection(CollectionProducts).FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return p, errors.Wrapf(tracker.ErrNotFound, "no Product with ID: %s", id)
		}
		return p, errors.Wrapf(err, "error finding Product with ID: %s", id)
	}
	return p, nil
}

func (db Database) ProductFindAllActive(ctx context.Context) ([]model.Product, error) {
	var ps []model.Product
	cur, err := db.Collection(CollectionProducts).Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, errors.Wrap(err, "error getting cursor to find active Products")
	}
	if err = cur.All(ctx, &ps); err != nil {
		return nil, errors.Wrap(err, "error getting active Products from cursor")
	}
	return ps, nil
}

// ProductFindStale returns the active products last checked before
// olderThan. A never-checked product stores the zero time and is always
// stale.
func (db Database) ProductFindStale(ctx context.Context, olderThan time.Time) ([]model.Product, error) {
	var ps []model.Product
	cur, err := db.Collection(CollectionProducts).Find(ctx, bson.M{
		"active":          true,
		"last_checked_at": bson.M{"$lt": primitive.NewDateTimeFromTime(olderThan)},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find stale Products, olderThan: %s",
			olderThan.Format(time.RFC3339))
	}
	if err = cur.All(ctx, &ps); err != nil {
		return nil, errors.Wrapf(err, "error getting stale Products from cursor, olderThan: %s",
			olderThan.Format(time.RFC3339))
	}
	return ps, nil
}

func (db Database) ProductMetadataUpdate(ctx context.Context, id string, name string, imageURL string) error {
	set := bson.M{"name": name}
	if imageURL != "" {
		set["image_url"] = imageURL
	}
	res, err := db.Collection(CollectionProducts).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrapf(err, "error updating metadata for Product with ID: %s", id)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(tracker.ErrNotFound, "no Product to update metadata for, ID: %s", id)
	}
	return nil
}

// ProductLastCheckedUpdate advances the product's check time. The filter
// refuses to move the clock backwards, so an interleaved writer surfaces as
// ErrWriteConflict instead of silently rewinding the product.
func (db Database) ProductLastCheckedUpdate(ctx context.Context, id string, checkedAt time.Time) error {
	res, err := db.Collection(CollectionProducts).UpdateOne(
		ctx,
		bson.M{
			"_id":             id,
			"last_checked_at": bson.M{"$lte": primitive.NewDateTimeFromTime(checkedAt)},
		},
		bson.M{"$set": bson.M{"last_checked_at": primitive.NewDateTimeFromTime(checkedAt)}},
	)
	if err != nil {
		return errors.Wrapf(err, "error updating last checked time for Product with ID: %s", id)
	}
	if res.MatchedCount == 0 {
		exists, err := db.productExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Wrapf(tracker.ErrNotFound, "no Product to update last checked time for, ID: %s", id)
		}
		return errors.Wrapf(tracker.ErrWriteConflict, "Product check time moved past %s concurrently, ID: %s",
			checkedAt.Format(time.RFC3339), id)
	}
	return nil
}

func (db Database) productExists(ctx context.Context, id string) (bool, error) {
	n, err := db.Collection(CollectionProducts).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, errors.Wrapf(err, "error counting Products with ID: %s", id)
	}
	return n > 0, nil
}

// ProductDeactivate stops tracking without touching history, so a later
// re-track picks up where it left off.
func (db Database) ProductDeactivate(ctx context.Context, id string) error {
	res, err := db.Collection(CollectionProducts).UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return errors.Wrapf(err, "error deactivating Product with ID: %s", id)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(tracker.ErrNotFound, "no Product to deactivate with ID: %s", id)
	}
	return nil
}
