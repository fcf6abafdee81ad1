package database

import (
	"context"

	"pricewatch/internal/tracker"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	Name                   = "pricewatch_db"
	CollectionProducts     = "products"
	CollectionPriceRecords = "price_records"
)

// Database implements the engine's store on MongoDB.
type Database struct {
	*mongo.Database
}

var _ tracker.Store = Database{}

func ConnectDB(ctx context.Context, dbURI string) (*mongo.Client, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(dbURI))
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionProducts).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys: bson.D{
				{Key: "active", Value: 1},
				{Key: "last_checked_at", Value: 1},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	// The unique index doubles as the write-conflict detector: two writers
	// recording the same product at the same instant cannot both land.
	_, err = c.Database(Name).Collection(CollectionPriceRecords).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys: bson.D{
				{Key: "product_id", Value: 1},
				{Key: "ts", Value: -1},
			},
			Options: options.Index().SetUnique(true),
		},
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}
