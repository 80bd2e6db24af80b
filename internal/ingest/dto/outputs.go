package dto

import "time"

// ConsumerStatusResponse reports the ingestion consumer's state and counters.
type ConsumerStatusResponse struct {
	Status       string     `json:"status" doc:"Consumer state"`
	QueueID      string     `json:"queue_id" doc:"Long-poll queue identifier"`
	LastPoll     *time.Time `json:"last_poll,omitempty" doc:"Time of the last poll"`
	LastKillmail int64      `json:"last_killmail,omitempty" doc:"ID of the last stored killmail"`
	QueueDepth   int64      `json:"queue_depth" doc:"Current enrichment queue depth"`

	TotalPolls    int64 `json:"total_polls"`
	EmptyPolls    int64 `json:"empty_polls"`
	Stored        int64 `json:"stored"`
	Duplicates    int64 `json:"duplicates"`
	Filtered      int64 `json:"filtered"`
	HTTPErrors    int64 `json:"http_errors"`
	ParseErrors   int64 `json:"parse_errors"`
	StoreErrors   int64 `json:"store_errors"`
	EnqueueErrors int64 `json:"enqueue_errors"`
}

// ConsumerStatusOutput wraps the consumer status.
type ConsumerStatusOutput struct {
	Body ConsumerStatusResponse
}
