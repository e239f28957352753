package model

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestIsEditableField(t *testing.T) {
	for _, f := range EditableFields {
		if !IsEditableField(f) {
			t.Errorf("IsEditableField(%q) = false", f)
		}
	}
	for _, f := range []string{"id", "updated_at", "updated_by", "", "name; DROP TABLE shops"} {
		if IsEditableField(f) {
			t.Errorf("IsEditableField(%q) = true", f)
		}
	}
}

func TestFieldValueString(t *testing.T) {
	w := 45
	assert.Equal(t, FieldValueString(nil), "")
	assert.Equal(t, FieldValueString("x"), "x")
	assert.Equal(t, FieldValueString(45), "45")
	assert.Equal(t, FieldValueString(int64(45)), "45")
	assert.Equal(t, FieldValueString(float64(45)), "45")
	assert.Equal(t, FieldValueString(&w), "45")
	assert.Equal(t, FieldValueString((*int)(nil)), "")
}
