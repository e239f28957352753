// Package protocol defines the messages exchanged over the shop-editor
// collaboration channel. Every frame is a UTF-8 JSON object with a "type"
// discriminator and a "data" payload; one payload struct exists per type so
// dispatchers can switch exhaustively instead of digging through maps.
package protocol

import (
	"encoding/json"
	"errors"
)

// Outbound (client -> server) message types.
const (
	TypeLockRequest   = "lock_request"
	TypeUpdateField   = "update_field"
	TypeUnlockRequest = "unlock_request"
)

// Inbound (server -> client) message types.
const (
	TypeConnected      = "connected"
	TypeLockAcquired   = "lock_acquired"
	TypeLockFailed     = "lock_failed"
	TypeLockReleased   = "lock_released"
	TypeFieldUpdated   = "field_updated"
	TypeLockHeartbeat  = "lock_heartbeat"
	TypeLockMissing    = "lock_missing"
	TypeUpdateRejected = "update_rejected"
	TypeError          = "error"
)

// Message is the wire envelope. Data stays raw until the receiver knows the
// type; unknown types carry through Decode without error and are dropped by
// the dispatcher.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// LockRequest asks the server for editing rights on one shop row.
type LockRequest struct {
	ShopID int64 `json:"shop_id"`
}

// UpdateField proposes a new value for a single field of a shop. Value is
// untyped on the wire: strings for text columns, a number or null for
// wait_time.
type UpdateField struct {
	ShopID int64  `json:"shop_id"`
	Field  string `json:"field"`
	Value  any    `json:"value"`
}

// UnlockRequest releases a held or pending row lock.
type UnlockRequest struct {
	ShopID int64 `json:"shop_id"`
}

// LockAcquired announces that the named user now holds the row lock. The
// local user sees its own grants through the same broadcast.
type LockAcquired struct {
	ShopID   int64  `json:"shop_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// LockFailed reports a denied lock request. The payload names the real
// holder so clients can populate their lock table the same way they do for
// LockAcquired.
type LockFailed struct {
	ShopID       int64  `json:"shop_id"`
	LockedBy     string `json:"locked_by"`
	LockedByName string `json:"locked_by_name"`
}

// LockReleased removes any lock entry for the shop.
type LockReleased struct {
	ShopID int64 `json:"shop_id"`
}

// FieldUpdated broadcasts one committed field change to every client.
type FieldUpdated struct {
	ShopID        int64  `json:"shop_id"`
	Field         string `json:"field"`
	Value         any    `json:"value"`
	UpdatedByName string `json:"updated_by_name"`
}

// LockHeartbeat is an advisory refresh of a held lock's lifetime.
type LockHeartbeat struct {
	ShopID int64 `json:"shop_id"`
}

// LockMissing warns that an update arrived for a row the sender does not
// hold. Advisory; the update itself is rejected separately.
type LockMissing struct {
	ShopID int64 `json:"shop_id"`
}

// UpdateRejected reports a server-side validation failure for an update.
type UpdateRejected struct {
	ShopID int64  `json:"shop_id"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ErrorPayload carries a server-side error message.
type ErrorPayload struct {
	Detail string `json:"detail"`
}

// ErrEmptyType marks a frame whose envelope decoded but carries no type.
var ErrEmptyType = errors.New("protocol: message has no type")

// Encode serializes a payload under the given type discriminator.
func Encode(typ string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: typ, Data: data})
}

// Decode parses a raw frame into the envelope. Payloads are not validated
// here; call DecodeData with the struct matching m.Type. Malformed JSON
// returns an error the caller is expected to log and drop.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, err
	}
	if m.Type == "" {
		return Message{}, ErrEmptyType
	}
	return m, nil
}

// DecodeData unmarshals the payload into v. A missing payload leaves v at
// its zero value, matching the loose validation of the wire contract.
func (m Message) DecodeData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}
