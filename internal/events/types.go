package events

import (
	"time"

	"github.com/casenetai/anonymizer/internal/anonymizer"
)

// EventType represents the type of event pushed to dashboard clients
type EventType string

const (
	// EventTypeAnonymization is emitted when a document finishes processing
	EventTypeAnonymization EventType = "anonymization"
	// EventTypeSystemStatus is emitted for periodic system information
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection is emitted on client connect/disconnect
	EventTypeConnection EventType = "connection"
)

// Event is a single message sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// AnonymizationEvent summarizes one processed document. It deliberately
// carries only counts, never originals or mapping values.
type AnonymizationEvent struct {
	RequestID    string                        `json:"request_id"`
	Method       anonymizer.Method             `json:"method"`
	Success      bool                          `json:"success"`
	EntityCount  int                           `json:"entity_count"`
	ByType       map[anonymizer.EntityType]int `json:"by_type,omitempty"`
	Degraded     bool                          `json:"degraded"`
	CacheHit     bool                          `json:"cache_hit"`
	ProcessingMS int64                         `json:"processing_ms"`
}

// SystemStatusEvent reports server-wide counters
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalDocuments   int64  `json:"total_documents"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent reports client connect/disconnect
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}
