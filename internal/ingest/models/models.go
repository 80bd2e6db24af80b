package models

import "time"

// ConsumerStateCollection persists per-queue consumer progress and counters
// across restarts.
const ConsumerStateCollection = "ingest_consumer_state"

// ConsumerState is a snapshot of one ingestion consumer.
type ConsumerState struct {
	QueueID        string    `bson:"_id" json:"queue_id"`
	State          string    `bson:"state" json:"state"`
	LastPollTime   time.Time `bson:"last_poll_time" json:"last_poll_time"`
	LastKillmailID int64     `bson:"last_killmail_id" json:"last_killmail_id"`

	TotalPolls    int64 `bson:"total_polls" json:"total_polls"`
	EmptyPolls    int64 `bson:"empty_polls" json:"empty_polls"`
	Stored        int64 `bson:"stored" json:"stored"`
	Duplicates    int64 `bson:"duplicates" json:"duplicates"`
	Filtered      int64 `bson:"filtered" json:"filtered"`
	HTTPErrors    int64 `bson:"http_errors" json:"http_errors"`
	ParseErrors   int64 `bson:"parse_errors" json:"parse_errors"`
	StoreErrors   int64 `bson:"store_errors" json:"store_errors"`
	EnqueueErrors int64 `bson:"enqueue_errors" json:"enqueue_errors"`

	CurrentTTW int       `bson:"current_ttw" json:"current_ttw"`
	NullStreak int       `bson:"null_streak" json:"null_streak"`
	StartedAt  time.Time `bson:"started_at" json:"started_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`

	StoppedAt *time.Time `bson:"stopped_at,omitempty" json:"stopped_at,omitempty"`
}
