package dto

// GenerateAreaReq is the optional body of POST /locations/{id}/generate.
// Every field has a server-side default.
type GenerateAreaReq struct {
	Mode            string   `json:"mode,omitempty"`
	BudgetLocations int      `json:"budgetLocations,omitempty"`
	IdempotencyKey  string   `json:"idempotencyKey,omitempty"`
	RealmHints      []string `json:"realmHints,omitempty"`
}

type MoveReq struct {
	PlayerID       string `json:"playerId"`
	FromLocationID string `json:"fromLocationId"`
	Direction      string `json:"direction"`
}
