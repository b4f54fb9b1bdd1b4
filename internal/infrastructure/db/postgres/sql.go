// Package postgres implements every repository port over database/sql with
// lib/pq. SQL lives in package-level constants; rows map to domain types in
// the repo methods.
package postgres

const upsertLocationSQL = `
INSERT INTO locations (id, name, terrain, tags, pending, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  terrain = EXCLUDED.terrain,
  tags = EXCLUDED.tags,
  pending = EXCLUDED.pending,
  version = EXCLUDED.version,
  updated_at = EXCLUDED.updated_at
`

const getLocationSQL = `
SELECT id, name, terrain, tags, pending, version, created_at, updated_at
FROM locations WHERE id = $1
`

const countLocationsSQL = `SELECT COUNT(*) FROM locations`

const listLocationsSQL = `
SELECT id, name, terrain, tags, pending, version, created_at, updated_at
FROM locations ORDER BY id
`

const listAllExitsSQL = `
SELECT location_id, direction, to_location_id, travel_duration_ms
FROM location_exits ORDER BY location_id, seq
`

const getExitsSQL = `
SELECT direction, to_location_id, travel_duration_ms
FROM location_exits WHERE location_id = $1
ORDER BY seq
`

const deleteExitsSQL = `DELETE FROM location_exits WHERE location_id = $1`

const insertExitSQL = `
INSERT INTO location_exits (location_id, direction, to_location_id, travel_duration_ms)
VALUES ($1, $2, $3, $4)
`

const lockLocationSQL = `SELECT id FROM locations WHERE id = $1 FOR UPDATE`

const getExitForUpdateSQL = `
SELECT to_location_id, travel_duration_ms
FROM location_exits WHERE location_id = $1 AND direction = $2
FOR UPDATE
`

const updateExitTravelSQL = `
UPDATE location_exits SET travel_duration_ms = $3
WHERE location_id = $1 AND direction = $2
`

const clearPendingSQL = `
UPDATE locations
SET pending = pending - $2, version = version + 1, updated_at = $3
WHERE id = $1
`

const bumpLocationVersionSQL = `
UPDATE locations SET version = version + 1, updated_at = $2 WHERE id = $1
`

const addLayerSQL = `
INSERT INTO description_layers (id, location_id, layer_type, content, priority, authored_at, attributes)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
ON CONFLICT (id) DO UPDATE SET
  content = EXCLUDED.content,
  priority = EXCLUDED.priority,
  authored_at = EXCLUDED.authored_at,
  attributes = EXCLUDED.attributes
`

const getActiveLayerSQL = `
SELECT id, location_id, layer_type, content, priority, authored_at, attributes
FROM description_layers
WHERE location_id = $1 AND layer_type = $2
ORDER BY priority DESC, authored_at DESC
LIMIT 1
`

const upsertRealmSQL = `
INSERT INTO realms (key, name, realm_type, scope)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET
  name = EXCLUDED.name,
  realm_type = EXCLUDED.realm_type,
  scope = EXCLUDED.scope
`

const getRealmSQL = `
SELECT key, name, realm_type, scope FROM realms WHERE key = $1
`

const realmExistsSQL = `SELECT EXISTS(SELECT 1 FROM realms WHERE key = $1)`

const locationExistsSQL = `SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1)`

const getLocationTagsSQL = `SELECT tags FROM locations WHERE id = $1`

const addLocationTagSQL = `
UPDATE locations
SET tags = array_append(tags, $2), version = version + 1, updated_at = $3
WHERE id = $1 AND NOT ($2 = ANY(tags))
`

const listRealmsByKeysSQL = `
SELECT key, name, realm_type, scope FROM realms WHERE key = ANY($1)
`

const checkProcessedSQL = `
SELECT EXISTS(SELECT 1 FROM processed_events WHERE idempotency_key = $1)
`

const markProcessedSQL = `
INSERT INTO processed_events (idempotency_key, event_id, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (idempotency_key) DO NOTHING
`

const insertDeadLetterSQL = `
INSERT INTO dead_letters (
  id, body, event_id, event_type, error_code, failure_reason,
  correlation_id, retry_count, first_attempt_at, dead_lettered_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING
`

const selectDeadLetterColumns = `
SELECT id, body, event_id, event_type, error_code, failure_reason,
       correlation_id, retry_count, first_attempt_at, dead_lettered_at
FROM dead_letters
`

const queryDeadLettersSQL = selectDeadLetterColumns + `
WHERE dead_lettered_at >= $1 AND dead_lettered_at <= $2
ORDER BY dead_lettered_at ASC, id ASC
`

const queryDeadLettersLimitSQL = queryDeadLettersSQL + ` LIMIT $3`

const getDeadLetterSQL = selectDeadLetterColumns + ` WHERE id = $1`
