package models

import (
	"fmt"
	"time"
)

// ChangeEvent is a row-level change delivered by the CDC transport
type ChangeEvent struct {
	TableName    string         `json:"tableName"`
	Operation    string         `json:"operation"` // c, u, d
	PrimaryKeyID any            `json:"primaryKeyId"`
	Identifier   string         `json:"identifier,omitempty"`
	Snapshot     *EventSnapshot `json:"snapshot,omitempty"`
	Timestamp    time.Time      `json:"timestamp,omitempty"`
}

// EventSnapshot holds the row state around the change
type EventSnapshot struct {
	Prev    map[string]any `json:"prev,omitempty"`
	Current map[string]any `json:"current,omitempty"`
}

func (e ChangeEvent) String() string {
	return fmt.Sprintf("ChangeEvent{table=%s, op=%s, pk=%v, identifier=%s}", e.TableName, e.Operation, e.PrimaryKeyID, e.Identifier)
}

// Before returns the pre-change snapshot or nil
func (e ChangeEvent) Before() map[string]any {
	if e.Snapshot == nil {
		return nil
	}
	return e.Snapshot.Prev
}

// After returns the post-change snapshot or nil
func (e ChangeEvent) After() map[string]any {
	if e.Snapshot == nil {
		return nil
	}
	return e.Snapshot.Current
}

// SyncAction is the operation to apply to the remote appointment
type SyncAction int

const (
	ActionCreate SyncAction = iota + 1
	ActionUpdate
	ActionDelete
)

func (a SyncAction) String() string {
	switch a {
	case ActionCreate:
		return "CREATE"
	case ActionUpdate:
		return "UPDATE"
	case ActionDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ParseSyncAction accepts both the operation codes and the action names
func ParseSyncAction(s string) (SyncAction, bool) {
	switch s {
	case "c", "C", "CREATE", "create":
		return ActionCreate, true
	case "u", "U", "UPDATE", "update":
		return ActionUpdate, true
	case "d", "D", "DELETE", "delete":
		return ActionDelete, true
	}
	return 0, false
}

// SyncFailure is a change event that was rejected without requeue
type SyncFailure struct {
	CorrelationID string
	TableName     string
	Operation     string
	Identifier    string
	Kind          string
	ErrorLog      string
	Payload       []byte
}
