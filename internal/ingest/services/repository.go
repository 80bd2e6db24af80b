package services

import (
	"context"

	"go-battles/internal/ingest/models"
	"go-battles/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
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
		collection: db.Database.Collection(models.ConsumerStateCollection),
	}
}

// SaveConsumerState upserts the consumer snapshot keyed by queue ID.
func (r *Repository) SaveConsumerState(ctx context.Context, state *models.ConsumerState) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": state.QueueID}, state, opts)
	return err
}

// GetConsumerState loads a previous snapshot, nil on first run.
func (r *Repository) GetConsumerState(ctx context.Context, queueID string) (*models.ConsumerState, error) {
	var state models.ConsumerState
	err := r.collection.FindOne(ctx, bson.M{"_id": queueID}).Decode(&state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}
