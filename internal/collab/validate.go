package collab

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/choko510/jirotter-sub000/internal/model"
)

var (
	errFieldNotEditable = errors.New("field not editable")
	errBadWaitTime      = errors.New("wait_time must be a non-negative integer or null")
	errValueNotString   = errors.New("value must be a string")
)

// NormalizeFieldValue validates an inbound field value and converts it into
// the shape the storage layer expects. Wait time becomes an int or nil, the
// text columns stay strings. The wire contract is loose, so numbers arrive
// as float64 and numeric strings are tolerated for wait_time.
func NormalizeFieldValue(field string, v any) (any, error) {
	if !model.IsEditableField(field) {
		return nil, errFieldNotEditable
	}
	if field == model.FieldWaitTime {
		switch t := v.(type) {
		case nil:
			return nil, nil
		case float64:
			if t < 0 || t != math.Trunc(t) {
				return nil, errBadWaitTime
			}
			return int(t), nil
		case int:
			if t < 0 {
				return nil, errBadWaitTime
			}
			return t, nil
		case string:
			trimmed := strings.TrimSpace(t)
			if trimmed == "" {
				return nil, nil
			}
			n, err := strconv.Atoi(trimmed)
			if err != nil || n < 0 {
				return nil, errBadWaitTime
			}
			return n, nil
		default:
			return nil, errBadWaitTime
		}
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	default:
		return nil, errValueNotString
	}
}
