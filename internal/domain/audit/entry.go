package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action classifies an audited mutation
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionLock   Action = "LOCK"
	ActionUnlock Action = "UNLOCK"
)

// Entry is one append-only audit record. Entries are captured in the same
// database transaction as the mutation they describe and archived
// asynchronously; they never trigger further audit entries.
type Entry struct {
	ID         uuid.UUID       `json:"id" bson:"id"`
	HospitalID uuid.UUID       `json:"hospital_id" bson:"hospital_id"`
	Actor      string          `json:"actor" bson:"actor"`
	Action     Action          `json:"action" bson:"action"`
	TableName  string          `json:"table_name" bson:"table_name"`
	RecordID   string          `json:"record_id" bson:"record_id"`
	OldValues  json.RawMessage `json:"old_values,omitempty" bson:"old_values,omitempty"`
	NewValues  json.RawMessage `json:"new_values,omitempty" bson:"new_values,omitempty"`
	Timestamp  time.Time       `json:"timestamp" bson:"timestamp"`
}

// NewEntry marshals the before/after snapshots and stamps the record.
// Either snapshot may be nil (CREATE has no old values, DELETE no new).
func NewEntry(hospitalID uuid.UUID, actor string, action Action, tableName, recordID string, oldValues, newValues interface{}) (*Entry, error) {
	entry := &Entry{
		ID:         uuid.New(),
		HospitalID: hospitalID,
		Actor:      actor,
		Action:     action,
		TableName:  tableName,
		RecordID:   recordID,
		Timestamp:  time.Now().UTC(),
	}

	if oldValues != nil {
		raw, err := json.Marshal(oldValues)
		if err != nil {
			return nil, err
		}
		entry.OldValues = raw
	}
	if newValues != nil {
		raw, err := json.Marshal(newValues)
		if err != nil {
			return nil, err
		}
		entry.NewValues = raw
	}

	return entry, nil
}
