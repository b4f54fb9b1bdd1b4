package worldevent

// Typed payloads for the event types this service itself produces or
// handles. Other known types flow through the pipeline with their payloads
// left raw.

// BatchGeneratePayload asks the world to grow around a root location.
// ExpansionDepth counts batches from the original anchor; the first
// player-triggered expansion is depth 1.
type BatchGeneratePayload struct {
	RootLocationID   string   `json:"rootLocationId"`
	Terrain          string   `json:"terrain,omitempty"`
	ArrivalDirection string   `json:"arrivalDirection,omitempty"`
	ExpansionDepth   int      `json:"expansionDepth,omitempty"`
	BatchSize        int      `json:"batchSize"`
	RealmHints       []string `json:"realmHints,omitempty"`
	TravelDurationMs int64    `json:"travelDurationMs,omitempty"`
	RealmKey         string   `json:"realmKey,omitempty"`
}

// ExitCreatePayload materializes an exit between two locations.
// Reciprocal asks for the mirror exit on the far side as well.
type ExitCreatePayload struct {
	FromLocationID   string `json:"fromLocationId"`
	ToLocationID     string `json:"toLocationId"`
	Direction        string `json:"direction"`
	Reciprocal       bool   `json:"reciprocal"`
	TravelDurationMs int64  `json:"travelDurationMs,omitempty"`
}

// PlayerMovePayload is the audit record of a completed move.
type PlayerMovePayload struct {
	FromLocationID   string `json:"fromLocationId"`
	ToLocationID     string `json:"toLocationId"`
	Direction        string `json:"direction"`
	TravelDurationMs int64  `json:"travelDurationMs"`
}

// AmbienceGeneratedPayload carries an ambient description layer for a
// location, authored by the ambience subsystem.
type AmbienceGeneratedPayload struct {
	LocationID  string `json:"locationId"`
	Content     string `json:"content"`
	WeatherType string `json:"weatherType,omitempty"`
	TimeBucket  string `json:"timeBucket,omitempty"`
	Priority    int    `json:"priority"`
}
