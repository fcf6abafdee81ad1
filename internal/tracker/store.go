package tracker

import (
	"context"
	"time"

	"pricewatch/internal/model"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by a Store when the requested product or record
// does not exist. During a batch it means the product was removed
// concurrently and is skipped.
var ErrNotFound = errors.New("not found")

// ErrWriteConflict is returned by a Store when an update lost against a
// concurrent writer. The engine owns every write to a product, so a conflict
// is an invariant violation and is surfaced loudly.
var ErrWriteConflict = errors.New("write conflict")

// Store is the persistence capability the engine needs. Implementations map
// their own error values onto ErrNotFound and ErrWriteConflict.
type Store interface {
	ProductFind(ctx context.Context, id string) (model.Product, error)
	ProductFindAllActive(ctx context.Context) ([]model.Product, error)
	ProductFindStale(ctx context.Context, olderThan time.Time) ([]model.Product, error)
	ProductMetadataUpdate(ctx context.Context, id string, name string, imageURL string) error
	ProductLastCheckedUpdate(ctx context.Context, id string, checkedAt time.Time) error

	PriceRecordInsert(ctx context.Context, rec model.PriceRecord) error
	// PriceRecordFindRecent returns up to limit newest records for the
	// product, ordered oldest to newest.
	PriceRecordFindRecent(ctx context.Context, productID string, limit int) ([]model.PriceRecord, error)
	PriceRecordFindLatestSuccess(ctx context.Context, productID string) (model.PriceRecord, error)
	// PriceRecordPrune deletes all but the keep newest records of the
	// product and returns how many were deleted.
	PriceRecordPrune(ctx context.Context, productID string, keep int) (int64, error)
	PriceRecordDeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	TrackingStats(ctx context.Context) (model.TrackingStats, error)
}

// PriceSample is what a single successful fetch yields.
type PriceSample struct {
	Price    float64
	Name     string
	ImageURL string
}

// Fetcher retrieves the current price of a product. Implementations classify
// failures by wrapping ErrFetchParse or ErrFetchBlocked; anything else is
// treated as a network failure, and a context deadline as a timeout.
type Fetcher interface {
	Fetch(ctx context.Context, p model.Product) (PriceSample, error)
}
