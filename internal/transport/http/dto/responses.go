package dto

import "time"

// LocationResp is the stable API model of a location. Field names follow
// the camelCase event contract, not the Go structs.
type LocationResp struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Terrain string `json:"terrain,omitempty"`

	Exits []ExitResp `json:"exits"`

	// PendingDirections lists soft exit hints in canonical compass order.
	PendingDirections []string `json:"pendingDirections,omitempty"`

	Tags    []string `json:"tags,omitempty"`
	Version int      `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ExitResp struct {
	Direction    string `json:"direction"`
	ToLocationID string `json:"toLocationId"`

	// 0 means the world default applies.
	TravelDurationMs int64 `json:"travelDurationMs,omitempty"`
}

type LayerResp struct {
	ID         string            `json:"id"`
	LayerType  string            `json:"layerType"`
	Content    string            `json:"content"`
	Priority   int               `json:"priority"`
	AuthoredAt time.Time         `json:"authoredAt"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type RealmResp struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// ViewResp is what a player sees standing in a location.
type ViewResp struct {
	Location *LocationResp `json:"location"`
	Base     *LayerResp    `json:"base,omitempty"`
	Ambient  *LayerResp    `json:"ambient,omitempty"`
	Realms   []RealmResp   `json:"realms,omitempty"`
}

// GenerateAreaResp is the 202 receipt for a requested generation batch.
type GenerateAreaResp struct {
	EventID       string `json:"eventId"`
	CorrelationID string `json:"correlationId"`
	AnchorID      string `json:"anchorId"`
	BatchSize     int    `json:"batchSize"`
	Terrain       string `json:"terrain"`
	Clamped       bool   `json:"clamped"`
}

type MoveResp struct {
	Destination      *LocationResp `json:"destination"`
	Direction        string        `json:"direction"`
	TravelDurationMs int64         `json:"travelDurationMs"`
	EventID          string        `json:"eventId"`
}

// DeadLetterResp is the ops view of one poison delivery. Body is only
// populated on the detail endpoint.
type DeadLetterResp struct {
	ID              string    `json:"id"`
	EventID         string    `json:"eventId,omitempty"`
	EventType       string    `json:"eventType,omitempty"`
	ErrorCode       string    `json:"errorCode"`
	FailureReason   string    `json:"failureReason"`
	CorrelationID   string    `json:"correlationId,omitempty"`
	RetryCount      int       `json:"retryCount"`
	FirstAttemptUtc time.Time `json:"firstAttemptUtc"`
	DeadLetteredUtc time.Time `json:"deadLetteredUtc"`
	Body            string    `json:"body,omitempty"`
}

type ListResp[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}
