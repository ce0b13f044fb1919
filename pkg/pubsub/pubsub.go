package pubsub

import (
	"context"
	"encoding/json"
)

// Topic names used by the analyzer
const (
	// TopicMeshStatus carries ingest/recompute lifecycle events
	TopicMeshStatus = "mesh_status"
	// TopicViewModel carries the full derived view model after each recompute
	TopicViewModel = "view_model"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // e.g., "ingested", "recomputed"
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // per-topic ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// MeshStatus describes the analyzer's state for status subscribers
type MeshStatus struct {
	State       string `json:"state"` // e.g., "ingested", "recomputing", "ready"
	Message     string `json:"message"`
	Version     uint64 `json:"version"` // topology version the state refers to
	Services    int    `json:"services"`
	Connections int    `json:"connections"`
}
