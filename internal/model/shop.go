package model

import (
	"fmt"
	"strconv"
	"time"
)

// Editable shop columns. The derived columns (updated_at, updated_by) are
// never written directly by editors.
const (
	FieldName          = "name"
	FieldAddress       = "address"
	FieldBusinessHours = "business_hours"
	FieldClosedDays    = "closed_days"
	FieldSeats         = "seats"
	FieldWaitTime      = "wait_time"
)

// EditableFields lists every column an editor may change, in display order.
var EditableFields = []string{
	FieldName,
	FieldAddress,
	FieldBusinessHours,
	FieldClosedDays,
	FieldSeats,
	FieldWaitTime,
}

// IsEditableField reports whether editors may write the named column.
func IsEditableField(field string) bool {
	for _, f := range EditableFields {
		if f == field {
			return true
		}
	}
	return false
}

// FieldValueString renders a field value the way the history log stores it:
// text fields pass through, wait_time renders its minutes, null renders as
// the empty string. JSON numbers arrive as float64 and are printed without
// a fraction.
func FieldValueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case *int:
		if t == nil {
			return ""
		}
		return strconv.Itoa(*t)
	default:
		return fmt.Sprint(t)
	}
}

// ShopFieldString reads one editable field of a shop as its display string.
func ShopFieldString(s Shop, field string) string {
	switch field {
	case FieldName:
		return s.Name
	case FieldAddress:
		return s.Address
	case FieldBusinessHours:
		return s.BusinessHours
	case FieldClosedDays:
		return s.ClosedDays
	case FieldSeats:
		return s.Seats
	case FieldWaitTime:
		return FieldValueString(s.WaitTime)
	}
	return ""
}

// Shop represents a ramen shop row as stored in the `shops` table and as
// served to the editor. WaitTime is minutes and nullable; nil means the shop
// has not reported a wait. UpdatedBy is derived from the most recent history
// entry, not a column editors write.
//
// Fields:
//  ID            – primary key identifier, server-assigned.
//  Name          – shop name.
//  Address       – street address.
//  BusinessHours – free-text opening hours.
//  ClosedDays    – free-text description of regular closing days.
//  Seats         – free-text seat count/description.
//  WaitTime      – current wait in minutes (nullable).
//  UpdatedAt     – timestamp of the last change.
//  UpdatedBy     – display name of the last editor (from history).
type Shop struct {
	ID            int64     `json:"id"`             // shops.id
	Name          string    `json:"name"`           // shops.name
	Address       string    `json:"address"`        // shops.address
	BusinessHours string    `json:"business_hours"` // shops.business_hours
	ClosedDays    string    `json:"closed_days"`    // shops.closed_days
	Seats         string    `json:"seats"`          // shops.seats
	WaitTime      *int      `json:"wait_time"`      // shops.wait_time (nullable)
	UpdatedAt     time.Time `json:"updated_at"`     // shops.updated_at
	UpdatedBy     string    `json:"updated_by"`     // latest shop_history.editor_name
}

// ShopHistory is one append-only entry of the per-shop change log.
type ShopHistory struct {
	ID         int64     `json:"id"`          // shop_history.id
	ShopID     int64     `json:"shop_id"`     // shop_history.shop_id
	Field      string    `json:"field"`       // shop_history.field
	OldValue   string    `json:"old_value"`   // shop_history.old_value
	NewValue   string    `json:"new_value"`   // shop_history.new_value
	EditorID   uint64    `json:"editor_id"`   // shop_history.editor_id
	EditorName string    `json:"editor_name"` // shop_history.editor_name
	CreatedAt  time.Time `json:"created_at"`  // shop_history.created_at
}
