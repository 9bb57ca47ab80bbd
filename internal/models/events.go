package models

import "time"

// Event types
const (
	EventTypeRunStarted     = "RUN_STARTED"
	EventTypeRunFinished    = "RUN_FINISHED"
	EventTypeProductAdded   = "PRODUCT_ADDED"
	EventTypeProductUpdated = "PRODUCT_UPDATED"
)

// Ingestion commands accepted on the command topic
const (
	CommandStart = "start"
	CommandStop  = "stop"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RunStartedEvent published when an ingestion run begins
type RunStartedEvent struct {
	BaseEvent
	RunID int64 `json:"run_id"`
}

// RunFinishedEvent published when a run reaches completed or failed
type RunFinishedEvent struct {
	BaseEvent
	RunID        int64    `json:"run_id"`
	Status       string   `json:"status"`
	Stats        RunStats `json:"stats"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// ProductIngestedEvent published for every added or updated catalog entry
type ProductIngestedEvent struct {
	BaseEvent
	RunID     int64  `json:"run_id"`
	ProductID int64  `json:"product_id"`
	SourceURL string `json:"source_url"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	OldPrice  string `json:"old_price,omitempty"`
}

// IngestionCommand is consumed from the command topic
type IngestionCommand struct {
	Command    string   `json:"command"`
	Categories []string `json:"categories,omitempty"`
}
