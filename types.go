package greenledger

import "github.com/totegamma/greenledger/internal/utils"

// EventType names a registry state change reported to event sinks.
type EventType string

const (
	EventCreated         EventType = "created"
	EventVerified        EventType = "verified"
	EventAlreadyVerified EventType = "already-verified"
	EventNotFound        EventType = "not-found"
	EventRestored        EventType = "restored"
)

// Event is informational only; sinks must never feed it back into registry state.
type Event struct {
	Type      EventType `json:"type"`
	Registry  string    `json:"registry"`
	RecordID  uint64    `json:"recordID"`
	URI       string    `json:"uri"`
	Owner     string    `json:"owner,omitempty"`
	Timestamp uint64    `json:"timestamp"`
}

type Endpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

// WellKnown is served at /.well-known/greenledger.
type WellKnown struct {
	Version    string                       `json:"version"`
	Domain     string                       `json:"domain"`
	CSID       string                       `json:"csid"`
	Registries []string                     `json:"registries"`
	Endpoints  utils.OrderedKVMap[Endpoint] `json:"endpoints"`
}
