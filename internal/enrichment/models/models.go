package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// EnrichmentCollection holds one record per killmail.
	EnrichmentCollection = "enrichment_records"

	// QueueKey is the Redis list the ingestion service feeds and the
	// enrichment workers consume.
	QueueKey = "enrichment:queue"
)

// Record states. failed records may re-enter pending under the retry budget.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

// ResolvedEntity is one identifier resolved to a name.
type ResolvedEntity struct {
	ID       int64  `bson:"id" json:"id"`
	Name     string `bson:"name" json:"name"`
	Category string `bson:"category" json:"category"`
	Ticker   string `bson:"ticker,omitempty" json:"ticker,omitempty"`
}

// EnrichmentRecord tracks identity resolution for one killmail.
type EnrichmentRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	KillmailID int64              `bson:"killmail_id" json:"killmail_id"`
	Status     string             `bson:"status" json:"status"`

	Entities []ResolvedEntity `bson:"entities,omitempty" json:"entities,omitempty"`

	Attempts  int    `bson:"attempts" json:"attempts"`
	LastError string `bson:"last_error,omitempty" json:"last_error,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	FetchedAt *time.Time `bson:"fetched_at,omitempty" json:"fetched_at,omitempty"`
}
