package audit

import (
	"encoding/json"
	"sort"
	"time"
)

// Type classifies an audit event.
type Type string

const (
	TypeTaskCreated          Type = "task_created"
	TypePayloadAttached      Type = "payload_attached"
	TypeClaimed              Type = "claimed"
	TypeReleased             Type = "released"
	TypeClaimReclaimed       Type = "claim_reclaimed"
	TypeClaimForceCleared    Type = "claim_force_cleared"
	TypeTransition           Type = "transition"
	TypeAdminForceStatus     Type = "admin_force_status"
	TypeAdminClearClaim      Type = "admin_clear_claim"
	TypeAdminResetAssignment Type = "admin_reset_assignments"
)

// Event is one immutable entry in a task's history. The header fields are
// fixed; Metadata is an opaque JSON blob the log never interprets, so
// collaborator-specific content can ride along without schema changes.
type Event struct {
	Seq           int64           `json:"seq"`
	ID            string          `json:"id"`
	TaskID        string          `json:"taskId"`
	Type          Type            `json:"type"`
	FromStage     string          `json:"fromStage,omitempty"`
	ToStage       string          `json:"toStage,omitempty"`
	Actor         string          `json:"actor,omitempty"`
	ActorRole     string          `json:"actorRole,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Before orders events by creation time, breaking ties by insertion order.
// Events sourced outside the store carry Seq zero and sort before stored
// events with the same timestamp.
func (e Event) Before(other Event) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.Seq < other.Seq
}

// Merge combines event streams into a single timeline ordered by creation
// time. Inputs need not be sorted; externally-sourced streams (notification
// deliveries and the like) merge cleanly with stored history.
func Merge(streams ...[]Event) []Event {
	total := 0
	for _, stream := range streams {
		total += len(stream)
	}
	merged := make([]Event, 0, total)
	for _, stream := range streams {
		merged = append(merged, stream...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Before(merged[j])
	})
	return merged
}

// MetadataMap decodes the metadata blob into a generic map. Returns nil when
// no metadata is attached or it is not a JSON object.
func (e Event) MetadataMap() map[string]any {
	if len(e.Metadata) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(e.Metadata, &out); err != nil {
		return nil
	}
	return out
}

// EncodeMetadata marshals a metadata map for storage alongside an event.
func EncodeMetadata(values map[string]any) json.RawMessage {
	if len(values) == 0 {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return raw
}
