package services

import (
	"context"
	"time"

	"go-battles/internal/killmails/models"
	"go-battles/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertResult distinguishes the two normal outcomes of storing an event.
type InsertResult int

const (
	InsertStored InsertResult = iota
	InsertDuplicate
)

// ListFilter narrows the recent-killmails listing.
type ListFilter struct {
	SystemID      int64
	AllianceID    int64
	CorporationID int64
	CharacterID   int64
	SpaceType     string

	// Cursor position: only rows strictly older than this sort key.
	Before   time.Time
	BeforeID int64
}

type Repository struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

func NewRepository(db *database.MongoDB) *Repository {
	return &Repository{
		db:         db,
		collection: db.Database.Collection(models.KillmailEventsCollection),
	}
}

// Insert stores an event. A killmail already present reports
// InsertDuplicate; duplication is a normal outcome, not an error.
func (r *Repository) Insert(ctx context.Context, event *models.KillmailEvent) (InsertResult, error) {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return InsertDuplicate, nil
		}
		return 0, err
	}
	return InsertStored, nil
}

// GetByKillmailID retrieves one event, nil when absent.
func (r *Repository) GetByKillmailID(ctx context.Context, killmailID int64) (*models.KillmailEvent, error) {
	var event models.KillmailEvent
	err := r.collection.FindOne(ctx, bson.M{"killmail_id": killmailID}).Decode(&event)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// GetByKillmailIDs retrieves a batch of events by ID.
func (r *Repository) GetByKillmailIDs(ctx context.Context, killmailIDs []int64) ([]models.KillmailEvent, error) {
	if len(killmailIDs) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx,
		bson.M{"killmail_id": bson.M{"$in": killmailIDs}},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "killmail_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.KillmailEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// FetchUnprocessed returns events not yet consumed by the clustering engine,
// older than the given time, in deterministic (occurred_at, killmail_id)
// ascending order.
func (r *Repository) FetchUnprocessed(ctx context.Context, limit int, olderThan time.Time) ([]models.KillmailEvent, error) {
	filter := bson.M{
		"processed_at": nil,
		"occurred_at":  bson.M{"$lt": olderThan},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "killmail_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.KillmailEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// MarkProcessed stamps events as consumed by the clustering engine. The
// processed_at-is-nil guard makes concurrent engine replicas safe: the loser
// matches zero rows. battleID may be empty for filtered-out leftovers that
// formed no battle. Returns how many rows were actually claimed.
func (r *Repository) MarkProcessed(ctx context.Context, killmailIDs []int64, battleID string, ts time.Time) (int64, error) {
	if len(killmailIDs) == 0 {
		return 0, nil
	}

	filter := bson.M{
		"killmail_id":  bson.M{"$in": killmailIDs},
		"processed_at": nil,
	}
	set := bson.M{"processed_at": ts}
	if battleID != "" {
		set["battle_id"] = battleID
	}

	res, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// ListRecent pages events newest first over (occurred_at DESC, killmail_id
// DESC), filtered per ListFilter.
func (r *Repository) ListRecent(ctx context.Context, f ListFilter, limit int) ([]models.KillmailEvent, error) {
	filter := bson.M{}

	if f.SystemID != 0 {
		filter["solar_system_id"] = f.SystemID
	}
	if f.SpaceType != "" {
		filter["space_type"] = f.SpaceType
	}
	if f.AllianceID != 0 {
		filter["$or"] = []bson.M{
			{"victim.alliance_id": f.AllianceID},
			{"attackers.alliance_id": f.AllianceID},
		}
	} else if f.CorporationID != 0 {
		filter["$or"] = []bson.M{
			{"victim.corporation_id": f.CorporationID},
			{"attackers.corporation_id": f.CorporationID},
		}
	} else if f.CharacterID != 0 {
		filter["$or"] = []bson.M{
			{"victim.character_id": f.CharacterID},
			{"attackers.character_id": f.CharacterID},
		}
	}

	if !f.Before.IsZero() {
		filter["$and"] = []bson.M{
			{"$or": []bson.M{
				{"occurred_at": bson.M{"$lt": f.Before}},
				{"occurred_at": f.Before, "killmail_id": bson.M{"$lt": f.BeforeID}},
			}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}, {Key: "killmail_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.KillmailEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountEvents counts stored events, optionally only unprocessed ones.
func (r *Repository) CountEvents(ctx context.Context, unprocessedOnly bool) (int64, error) {
	filter := bson.M{}
	if unprocessedOnly {
		filter["processed_at"] = nil
	}
	return r.collection.CountDocuments(ctx, filter)
}

// CreateIndexes creates the indexes the event store depends on. The unique
// killmail_id index is what turns a replayed event into a duplicate instead
// of a second row.
func (r *Repository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "killmail_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "occurred_at", Value: -1}, {Key: "killmail_id", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "processed_at", Value: 1}, {Key: "occurred_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "solar_system_id", Value: 1}, {Key: "occurred_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "space_type", Value: 1}, {Key: "occurred_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "victim.alliance_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "attackers.alliance_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "victim.character_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "attackers.character_id", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
