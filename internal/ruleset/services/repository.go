package services

import (
	"context"

	"go-battles/internal/ruleset/models"
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
		collection: db.Database.Collection(models.RulesetsCollection),
	}
}

// GetActive loads the single active ruleset, nil when no operator has written
// one yet.
func (r *Repository) GetActive(ctx context.Context) (*models.Ruleset, error) {
	var ruleset models.Ruleset
	err := r.collection.FindOne(ctx, bson.M{"_id": models.ActiveRulesetID}).Decode(&ruleset)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &ruleset, nil
}

// Upsert replaces the active ruleset document.
func (r *Repository) Upsert(ctx context.Context, ruleset *models.Ruleset) error {
	ruleset.ID = models.ActiveRulesetID
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": models.ActiveRulesetID}, ruleset, opts)
	return err
}
