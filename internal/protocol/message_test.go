package protocol

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw, err := Encode(TypeUpdateField, UpdateField{ShopID: 7, Field: "wait_time", Value: 45})
	assert.Equal(t, err, nil)

	msg, err := Decode(raw)
	assert.Equal(t, err, nil)
	assert.Equal(t, msg.Type, TypeUpdateField)

	var p UpdateField
	assert.Equal(t, msg.DecodeData(&p), nil)
	assert.Equal(t, p.ShopID, int64(7))
	assert.Equal(t, p.Field, "wait_time")
	// JSON numbers come back as float64 through the untyped field
	assert.Equal(t, p.Value, float64(45))
}

func TestEncodeNullValue(t *testing.T) {
	raw, err := Encode(TypeUpdateField, UpdateField{ShopID: 3, Field: "wait_time", Value: nil})
	assert.Equal(t, err, nil)

	msg, err := Decode(raw)
	assert.Equal(t, err, nil)

	var p UpdateField
	assert.Equal(t, msg.DecodeData(&p), nil)
	assert.Equal(t, p.Value, nil)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "not json at all"},
		{"empty object", "{}"},
		{"missing type", `{"data":{"shop_id":1}}`},
		{"type wrong kind", `{"type":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.raw)); err == nil {
				t.Errorf("Decode(%q) accepted a malformed frame", tt.raw)
			}
		})
	}
}

func TestDecodeUnknownTypePassesThrough(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"future_thing","data":{"x":1}}`))
	assert.Equal(t, err, nil)
	assert.Equal(t, msg.Type, "future_thing")
}

func TestDecodeDataMissingPayload(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"lock_released"}`))
	assert.Equal(t, err, nil)

	var p LockReleased
	assert.Equal(t, msg.DecodeData(&p), nil)
	assert.Equal(t, p.ShopID, int64(0))
}
