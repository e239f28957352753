// Package queue defines message payloads exchanged over the message broker
// and the background consumer that persists them.
package queue

// FieldUpdatedEvent is published whenever one field of a shop is committed,
// over the channel or through the REST fallback. The consumer appends it to
// the shop_history table; values travel as display strings so the log keeps
// what the editor saw, not a typed snapshot.
type FieldUpdatedEvent struct {
	ShopID     int64  `json:"shop_id"`
	Field      string `json:"field"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	EditorID   uint64 `json:"editor_id"`
	EditorName string `json:"editor_name"`
	UpdatedAt  string `json:"updated_at"` // RFC3339, UTC
}
