package entity

import (
	"encoding/json"
	"time"
)

// Activity entity types
const (
	ActivityEntityLiquidation = "liquidation"
	ActivityEntityFinancial   = "financial"
	ActivityEntityTransmittal = "transmittal"
	ActivityEntityReference   = "reference"
)

// ActivityLog is a generic before/after record of an entity mutation
type ActivityLog struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id"`
	Before     string    `json:"before,omitempty"`
	After      string    `json:"after,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FieldChange is the old and new value of one changed field
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// DiffSnapshots returns only the keys whose values differ between snapshots
func DiffSnapshots(before, after map[string]interface{}) map[string]FieldChange {
	changes := make(map[string]FieldChange)
	for k, newVal := range after {
		oldVal, ok := before[k]
		if !ok || oldVal != newVal {
			changes[k] = FieldChange{Old: oldVal, New: newVal}
		}
	}
	for k, oldVal := range before {
		if _, ok := after[k]; !ok {
			changes[k] = FieldChange{Old: oldVal, New: nil}
		}
	}
	return changes
}

// NewActivityLog builds an entry holding only the fields that changed between
// the snapshots. Before and After are JSON objects keyed by field name.
func NewActivityLog(entityType, entityID, action, actorID string, before, after map[string]interface{}) ActivityLog {
	changes := DiffSnapshots(before, after)
	oldValues := make(map[string]interface{}, len(changes))
	newValues := make(map[string]interface{}, len(changes))
	for field, change := range changes {
		oldValues[field] = change.Old
		newValues[field] = change.New
	}

	return ActivityLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		Before:     marshalFields(oldValues),
		After:      marshalFields(newValues),
	}
}

func marshalFields(fields map[string]interface{}) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(data)
}
