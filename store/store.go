// Package store persists products in a document store and keeps their
// month-keyed price series and derived metrics consistent.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"vinskraper/models"
)

// Upsert is one atomic per-document write: the patch is applied as a
// single field-set update keyed by the product index, so a partially
// applied document is never observable.
type Upsert struct {
	Index int
	Patch bson.M
}

// Store is the operation contract the pipeline needs from the document
// store. Implemented by Mongo and by in-memory fakes in tests.
type Store interface {
	Find(ctx context.Context, filter bson.M) ([]bson.M, error)
	Distinct(ctx context.Context, field string, filter bson.M) ([]interface{}, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	BulkUpsert(ctx context.Context, ops []Upsert) (models.WriteSummary, error)
	Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error)
	// ArchiveExpired moves documents flagged utgått to the expired
	// collection and reports how many were moved.
	ArchiveExpired(ctx context.Context) (int64, error)
}
