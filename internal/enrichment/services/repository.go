package services

import (
	"context"
	"time"

	"go-battles/internal/enrichment/models"
	"go-battles/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

func NewRepository(db *database.MongoDB) *Repository {
	return &Repository{
		db:         db,
		collection: db.Database.Collection(models.EnrichmentCollection),
	}
}

// Claim moves a record to processing, creating it when absent, and bumps the
// attempt counter. A record that already succeeded is not re-claimed: the
// second return value reports whether the claim took effect.
func (r *Repository) Claim(ctx context.Context, killmailID int64) (bool, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"killmail_id": killmailID,
		"status":      bson.M{"$ne": models.StatusSucceeded},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     models.StatusProcessing,
			"updated_at": now,
		},
		"$inc": bson.M{"attempts": 1},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"created_at": now,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// The upsert races the unique index when the record already
		// succeeded: the filter excludes it, so Mongo tries to insert a
		// second row. That means there is nothing left to do.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkSucceeded finalizes a record with its resolved entities.
func (r *Repository) MarkSucceeded(ctx context.Context, killmailID int64, entities []models.ResolvedEntity) error {
	now := time.Now().UTC()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"killmail_id": killmailID},
		bson.M{"$set": bson.M{
			"status":     models.StatusSucceeded,
			"entities":   entities,
			"last_error": "",
			"fetched_at": now,
			"updated_at": now,
		}},
	)
	return err
}

// MarkPending resets a record for another attempt after a retryable failure.
func (r *Repository) MarkPending(ctx context.Context, killmailID int64, lastError string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"killmail_id": killmailID},
		bson.M{"$set": bson.M{
			"status":     models.StatusPending,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		}},
	)
	return err
}

// MarkFailed parks a record with a short error tag.
func (r *Repository) MarkFailed(ctx context.Context, killmailID int64, tag string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"killmail_id": killmailID},
		bson.M{"$set": bson.M{
			"status":     models.StatusFailed,
			"last_error": tag,
			"updated_at": time.Now().UTC(),
		}},
	)
	return err
}

// SweepStale resets processing records untouched since the cutoff back to
// pending and returns their killmail IDs for requeueing. Covers workers that
// died mid-record.
func (r *Repository) SweepStale(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return r.resetMatching(ctx, bson.M{
		"status":     models.StatusProcessing,
		"updated_at": bson.M{"$lt": cutoff},
	}, "stale processing")
}

// RetryFailed re-admits failed records still under the attempt budget.
func (r *Repository) RetryFailed(ctx context.Context, maxAttempts int) ([]int64, error) {
	return r.resetMatching(ctx, bson.M{
		"status":   models.StatusFailed,
		"attempts": bson.M{"$lt": maxAttempts},
	}, "failed retry")
}

func (r *Repository) resetMatching(ctx context.Context, filter bson.M, _ string) ([]int64, error) {
	cursor, err := r.collection.Find(ctx, filter,
		options.Find().SetProjection(bson.M{"killmail_id": 1}).SetLimit(1000))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		KillmailID int64 `bson:"killmail_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.KillmailID)
	}

	_, err = r.collection.UpdateMany(ctx,
		bson.M{"killmail_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{
			"status":     models.StatusPending,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetByKillmailID loads one record, nil when absent.
func (r *Repository) GetByKillmailID(ctx context.Context, killmailID int64) (*models.EnrichmentRecord, error) {
	var record models.EnrichmentRecord
	err := r.collection.FindOne(ctx, bson.M{"killmail_id": killmailID}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByKillmailIDs loads a batch of records for response hydration.
func (r *Repository) GetByKillmailIDs(ctx context.Context, killmailIDs []int64) (map[int64]*models.EnrichmentRecord, error) {
	if len(killmailIDs) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"killmail_id": bson.M{"$in": killmailIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make(map[int64]*models.EnrichmentRecord, len(killmailIDs))
	for cursor.Next(ctx) {
		var record models.EnrichmentRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		out[record.KillmailID] = &record
	}
	return out, cursor.Err()
}

// CountByStatus returns record counts per state for the dashboard.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	cursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Status] = row.Count
	}
	return counts, cursor.Err()
}

// CreateIndexes creates the enrichment indexes.
func (r *Repository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "killmail_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
