package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go-battles/internal/battles/models"
	"go-battles/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BattleFilter narrows the battle listing.
type BattleFilter struct {
	SystemID     int64
	SecurityType string
	Since        time.Time
	Until        time.Time

	// BattleIDs restricts to a precomputed set (entity lookups). nil means
	// no restriction; an empty non-nil set matches nothing.
	BattleIDs []string

	// Cursor position: only battles strictly older than this sort key.
	Before   time.Time
	BeforeID string
}

// EntityStats aggregates a pilot's, corporation's, or alliance's presence
// across battles.
type EntityStats struct {
	Battles      int64         `bson:"battles" json:"battles"`
	Kills        int64         `bson:"kills" json:"kills"`
	ISKDestroyed float64       `bson:"isk_destroyed" json:"isk_destroyed"`
	TopSystems   []SystemCount `bson:"top_systems" json:"top_systems"`
}

// SystemCount is one system's battle count for a ranking.
type SystemCount struct {
	SystemID int64 `bson:"_id" json:"system_id"`
	Battles  int64 `bson:"battles" json:"battles"`
}

// DashboardStats summarizes the whole battle store.
type DashboardStats struct {
	TotalBattles      int64         `json:"total_battles"`
	BattlesLast24h    int64         `json:"battles_last_24h"`
	TotalKills        int64         `json:"total_kills"`
	TotalISKDestroyed float64       `json:"total_isk_destroyed"`
	TopSystems        []SystemCount `json:"top_systems"`
}

type Repository struct {
	db           *database.MongoDB
	battles      *mongo.Collection
	killmails    *mongo.Collection
	participants *mongo.Collection
	shipHistory  *mongo.Collection
}

func NewRepository(db *database.MongoDB) *Repository {
	return &Repository{
		db:           db,
		battles:      db.Database.Collection(models.BattlesCollection),
		killmails:    db.Database.Collection(models.BattleKillmailsCollection),
		participants: db.Database.Collection(models.BattleParticipantsCollection),
		shipHistory:  db.Database.Collection(models.PilotShipHistoryCollection),
	}
}

// WithTransaction runs fn inside one multi-document transaction. The engine
// commits each battle's full row set through this; an error aborts the
// transaction and leaves the events unprocessed for the next tick.
func (r *Repository) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	session, err := r.db.Client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// UpsertBattleRows writes one battle's complete row set. Every write is an
// upsert keyed on the row's uniqueness constraint, so replaying the same
// cluster is a no-op.
func (r *Repository) UpsertBattleRows(ctx context.Context, rows *BattleRows) error {
	opts := options.Replace().SetUpsert(true)

	if _, err := r.battles.ReplaceOne(ctx, bson.M{"_id": rows.Battle.ID}, rows.Battle, opts); err != nil {
		return fmt.Errorf("failed to upsert battle: %w", err)
	}

	for i := range rows.Killmails {
		edge := &rows.Killmails[i]
		filter := bson.M{"battle_id": edge.BattleID, "killmail_id": edge.KillmailID}
		if _, err := r.killmails.ReplaceOne(ctx, filter, edge, opts); err != nil {
			return fmt.Errorf("failed to upsert battle killmail %d: %w", edge.KillmailID, err)
		}
	}

	for i := range rows.Participants {
		p := &rows.Participants[i]
		filter := bson.M{"battle_id": p.BattleID, "character_id": p.CharacterID, "ship_type_id": p.ShipTypeID}
		if _, err := r.participants.ReplaceOne(ctx, filter, p, opts); err != nil {
			return fmt.Errorf("failed to upsert participant %d: %w", p.CharacterID, err)
		}
	}

	for i := range rows.ShipHistory {
		h := &rows.ShipHistory[i]
		filter := bson.M{"character_id": h.CharacterID, "killmail_id": h.KillmailID}
		if _, err := r.shipHistory.ReplaceOne(ctx, filter, h, opts); err != nil {
			return fmt.Errorf("failed to upsert ship history for %d: %w", h.CharacterID, err)
		}
	}

	return nil
}

// GetBattle retrieves one battle by UUID, nil when absent.
func (r *Repository) GetBattle(ctx context.Context, battleID string) (*models.Battle, error) {
	var battle models.Battle
	err := r.battles.FindOne(ctx, bson.M{"_id": battleID}).Decode(&battle)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &battle, nil
}

// ListBattles pages battles newest first over (start_time DESC, _id DESC).
func (r *Repository) ListBattles(ctx context.Context, f BattleFilter, limit int) ([]models.Battle, error) {
	filter := bson.M{}

	if f.SystemID != 0 {
		filter["system_id"] = f.SystemID
	}
	if f.SecurityType != "" {
		filter["security_type"] = f.SecurityType
	}
	if f.BattleIDs != nil {
		filter["_id"] = bson.M{"$in": f.BattleIDs}
	}

	timeRange := bson.M{}
	if !f.Since.IsZero() {
		timeRange["$gte"] = f.Since
	}
	if !f.Until.IsZero() {
		timeRange["$lte"] = f.Until
	}
	if len(timeRange) > 0 {
		filter["start_time"] = timeRange
	}

	if !f.Before.IsZero() {
		filter["$or"] = []bson.M{
			{"start_time": bson.M{"$lt": f.Before}},
			{"start_time": f.Before, "_id": bson.M{"$lt": f.BeforeID}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.battles.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var battles []models.Battle
	if err := cursor.All(ctx, &battles); err != nil {
		return nil, err
	}
	return battles, nil
}

// GetBattleKillmails returns a battle's edges in kill order.
func (r *Repository) GetBattleKillmails(ctx context.Context, battleID string) ([]models.BattleKillmail, error) {
	cursor, err := r.killmails.Find(ctx,
		bson.M{"battle_id": battleID},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "killmail_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var edges []models.BattleKillmail
	if err := cursor.All(ctx, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

// GetBattleParticipants returns a battle's participant rows.
func (r *Repository) GetBattleParticipants(ctx context.Context, battleID string) ([]models.BattleParticipant, error) {
	cursor, err := r.participants.Find(ctx,
		bson.M{"battle_id": battleID},
		options.Find().SetSort(bson.D{{Key: "character_id", Value: 1}, {Key: "ship_type_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []models.BattleParticipant
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// BattleIDsForEntity returns the distinct battles an alliance, corporation,
// or character participated in. field must be one of alliance_id,
// corporation_id, character_id. Alliances are additionally resolved through
// the killmail edges: a character-less structure loss leaves no participant
// row, so the victim and attacker alliance columns are consulted too.
func (r *Repository) BattleIDsForEntity(ctx context.Context, field string, id int64) ([]string, error) {
	raw, err := r.participants.Distinct(ctx, "battle_id", bson.M{field: id})
	if err != nil {
		return nil, err
	}
	fromParticipants := battleIDStrings(raw)

	if field != "alliance_id" {
		return fromParticipants, nil
	}

	raw, err = r.killmails.Distinct(ctx, "battle_id", bson.M{"$or": []bson.M{
		{"victim_alliance_id": id},
		{"attacker_alliance_ids": id},
	}})
	if err != nil {
		return nil, err
	}
	return unionBattleIDs(fromParticipants, battleIDStrings(raw)), nil
}

func battleIDStrings(raw []interface{}) []string {
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids
}

// unionBattleIDs merges ID sets, deduplicated and sorted for stable paging.
func unionBattleIDs(sets ...[]string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, set := range sets {
		for _, id := range set {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// StatsForBattles aggregates battle count, kills, ISK, and top systems over
// a battle ID set.
func (r *Repository) StatsForBattles(ctx context.Context, battleIDs []string) (*EntityStats, error) {
	stats := &EntityStats{TopSystems: []SystemCount{}}
	if len(battleIDs) == 0 {
		return stats, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": battleIDs}}}},
		{{Key: "$facet", Value: bson.M{
			"totals": mongo.Pipeline{
				{{Key: "$group", Value: bson.M{
					"_id":           nil,
					"battles":       bson.M{"$sum": 1},
					"kills":         bson.M{"$sum": "$total_kills"},
					"isk_destroyed": bson.M{"$sum": "$total_isk_destroyed"},
				}}},
			},
			"top_systems": mongo.Pipeline{
				{{Key: "$group", Value: bson.M{"_id": "$system_id", "battles": bson.M{"$sum": 1}}}},
				{{Key: "$sort", Value: bson.D{{Key: "battles", Value: -1}, {Key: "_id", Value: 1}}}},
				{{Key: "$limit", Value: 5}},
			},
		}}},
	}

	cursor, err := r.battles.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []struct {
		Totals []struct {
			Battles      int64   `bson:"battles"`
			Kills        int64   `bson:"kills"`
			ISKDestroyed float64 `bson:"isk_destroyed"`
		} `bson:"totals"`
		TopSystems []SystemCount `bson:"top_systems"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}

	if len(result) > 0 {
		if len(result[0].Totals) > 0 {
			stats.Battles = result[0].Totals[0].Battles
			stats.Kills = result[0].Totals[0].Kills
			stats.ISKDestroyed = result[0].Totals[0].ISKDestroyed
		}
		stats.TopSystems = result[0].TopSystems
	}
	return stats, nil
}

// GetDashboardStats summarizes the battle store for the dashboard route.
func (r *Repository) GetDashboardStats(ctx context.Context, now time.Time) (*DashboardStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"totals": mongo.Pipeline{
				{{Key: "$group", Value: bson.M{
					"_id":           nil,
					"battles":       bson.M{"$sum": 1},
					"kills":         bson.M{"$sum": "$total_kills"},
					"isk_destroyed": bson.M{"$sum": "$total_isk_destroyed"},
				}}},
			},
			"recent": mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"start_time": bson.M{"$gte": now.Add(-24 * time.Hour)}}}},
				{{Key: "$count", Value: "battles"}},
			},
			"top_systems": mongo.Pipeline{
				{{Key: "$group", Value: bson.M{"_id": "$system_id", "battles": bson.M{"$sum": 1}}}},
				{{Key: "$sort", Value: bson.D{{Key: "battles", Value: -1}, {Key: "_id", Value: 1}}}},
				{{Key: "$limit", Value: 5}},
			},
		}}},
	}

	cursor, err := r.battles.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []struct {
		Totals []struct {
			Battles      int64   `bson:"battles"`
			Kills        int64   `bson:"kills"`
			ISKDestroyed float64 `bson:"isk_destroyed"`
		} `bson:"totals"`
		Recent []struct {
			Battles int64 `bson:"battles"`
		} `bson:"recent"`
		TopSystems []SystemCount `bson:"top_systems"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}

	stats := &DashboardStats{TopSystems: []SystemCount{}}
	if len(result) > 0 {
		if len(result[0].Totals) > 0 {
			stats.TotalBattles = result[0].Totals[0].Battles
			stats.TotalKills = result[0].Totals[0].Kills
			stats.TotalISKDestroyed = result[0].Totals[0].ISKDestroyed
		}
		if len(result[0].Recent) > 0 {
			stats.BattlesLast24h = result[0].Recent[0].Battles
		}
		stats.TopSystems = result[0].TopSystems
	}
	return stats, nil
}

// ListShipHistory pages a pilot's ship history newest first.
func (r *Repository) ListShipHistory(ctx context.Context, characterID int64, limit int, before time.Time, beforeID int64) ([]models.PilotShipHistory, error) {
	filter := bson.M{"character_id": characterID}
	if !before.IsZero() {
		filter["$or"] = []bson.M{
			{"occurred_at": bson.M{"$lt": before}},
			{"occurred_at": before, "killmail_id": bson.M{"$lt": beforeID}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}, {Key: "killmail_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.shipHistory.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []models.PilotShipHistory
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateIndexes creates the battle-store indexes. The unique edge,
// participant, and history indexes are what make cluster replays no-ops.
func (r *Repository) CreateIndexes(ctx context.Context) error {
	battleIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "start_time", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "system_id", Value: 1}, {Key: "start_time", Value: -1}}},
		{Keys: bson.D{{Key: "security_type", Value: 1}, {Key: "start_time", Value: -1}}},
	}
	if _, err := r.battles.Indexes().CreateMany(ctx, battleIndexes); err != nil {
		return fmt.Errorf("failed to create battle indexes: %w", err)
	}

	edgeIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "battle_id", Value: 1}, {Key: "killmail_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "killmail_id", Value: 1}}},
		{Keys: bson.D{{Key: "victim_alliance_id", Value: 1}}},
		{Keys: bson.D{{Key: "attacker_alliance_ids", Value: 1}}},
	}
	if _, err := r.killmails.Indexes().CreateMany(ctx, edgeIndexes); err != nil {
		return fmt.Errorf("failed to create battle killmail indexes: %w", err)
	}

	participantIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "battle_id", Value: 1},
				{Key: "character_id", Value: 1},
				{Key: "ship_type_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "character_id", Value: 1}}},
		{Keys: bson.D{{Key: "corporation_id", Value: 1}}},
		{Keys: bson.D{{Key: "alliance_id", Value: 1}}},
	}
	if _, err := r.participants.Indexes().CreateMany(ctx, participantIndexes); err != nil {
		return fmt.Errorf("failed to create participant indexes: %w", err)
	}

	historyIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "character_id", Value: 1}, {Key: "killmail_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "character_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
	}
	if _, err := r.shipHistory.Indexes().CreateMany(ctx, historyIndexes); err != nil {
		return fmt.Errorf("failed to create ship history indexes: %w", err)
	}

	return nil
}
