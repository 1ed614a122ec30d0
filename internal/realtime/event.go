package realtime

import "encoding/json"

// ChangeType labels a row-level change.
type ChangeType string

const (
	ChangeInsert   ChangeType = "INSERT"
	ChangeUpdate   ChangeType = "UPDATE"
	ChangeDelete   ChangeType = "DELETE"
	ChangeSnapshot ChangeType = "SNAPSHOT"
)

// ChangeEvent is the wire form of a committed row change pushed to
// subscribers of a table.
type ChangeEvent struct {
	Table  string          `json:"table"`
	Type   ChangeType      `json:"event_type"`
	OldRow json.RawMessage `json:"old_row,omitempty"`
	NewRow json.RawMessage `json:"new_row,omitempty"`
}

// SnapshotEvent seeds a new subscriber with the current table contents
// before incremental changes start flowing.
type SnapshotEvent struct {
	Table string          `json:"table"`
	Type  ChangeType      `json:"event_type"`
	Rows  json.RawMessage `json:"rows"`
}

// NewChangeEvent marshals old/new rows into a ChangeEvent. Marshal failures
// degrade to an event without the offending payload rather than dropping the
// notification.
func NewChangeEvent(table string, changeType ChangeType, oldRow, newRow interface{}) ChangeEvent {
	ev := ChangeEvent{Table: table, Type: changeType}
	if oldRow != nil {
		if raw, err := json.Marshal(oldRow); err == nil {
			ev.OldRow = raw
		}
	}
	if newRow != nil {
		if raw, err := json.Marshal(newRow); err == nil {
			ev.NewRow = raw
		}
	}
	return ev
}
