package store

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vinskraper/config"
	"vinskraper/models"
)

// Mongo implements Store on a MongoDB collection pair: the live product
// collection and the expired-product archive.
type Mongo struct {
	client   *mongo.Client
	products *mongo.Collection
	expired  *mongo.Collection
}

// Open connects to MongoDB and binds the configured collections.
func Open(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	return &Mongo{
		client:   client,
		products: db.Collection(cfg.MongoCollection),
		expired:  db.Collection(cfg.ExpiredCollection),
	}, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	cursor, err := m.products.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("drain cursor: %w", err)
	}
	return docs, nil
}

func (m *Mongo) Distinct(ctx context.Context, field string, filter bson.M) ([]interface{}, error) {
	values, err := m.products.Distinct(ctx, field, filter)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}
	return values, nil
}

func (m *Mongo) Count(ctx context.Context, filter bson.M) (int64, error) {
	count, err := m.products.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// BulkUpsert applies each patch as one atomic $set update keyed by the
// product index, inserting documents that do not exist yet. The batch is
// unordered; categories never share indexes so write order is irrelevant.
func (m *Mongo) BulkUpsert(ctx context.Context, ops []Upsert) (models.WriteSummary, error) {
	if len(ops) == 0 {
		return models.WriteSummary{}, nil
	}

	writes := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"index": op.Index}).
			SetUpdate(bson.M{"$set": op.Patch}).
			SetUpsert(true))
	}

	result, err := m.products.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return models.WriteSummary{}, fmt.Errorf("bulk write: %w", err)
	}
	return models.WriteSummary{
		Matched:  result.MatchedCount,
		Inserted: result.UpsertedCount,
	}, nil
}

func (m *Mongo) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	cursor, err := m.products.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("drain cursor: %w", err)
	}
	return docs, nil
}

// ArchiveExpired moves every document flagged utgått into the expired
// collection. Reconciliation itself never deletes; this runs as a
// separate post-pass.
func (m *Mongo) ArchiveExpired(ctx context.Context) (int64, error) {
	docs, err := m.Find(ctx, bson.M{"utgått": true})
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	records := make([]interface{}, 0, len(docs))
	indexes := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc)
		indexes = append(indexes, doc["index"])
	}

	if _, err := m.expired.InsertMany(ctx, records); err != nil {
		return 0, fmt.Errorf("archive insert: %w", err)
	}
	result, err := m.products.DeleteMany(ctx, bson.M{"index": bson.M{"$in": indexes}})
	if err != nil {
		return 0, fmt.Errorf("archive delete: %w", err)
	}

	slog.Info("archived expired products", slog.Int64("moved", result.DeletedCount))
	return result.DeletedCount, nil
}
