package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONValue is a raw JSON document stored as text.
type JSONValue json.RawMessage

var ErrInvalidJSON = errors.New("value is not valid JSON")

func (v JSONValue) Value() (driver.Value, error) {
	if len(v) == 0 {
		return "null", nil
	}
	if !json.Valid(v) {
		return nil, ErrInvalidJSON
	}
	return string(v), nil
}

func (v *JSONValue) Scan(value interface{}) error {
	switch raw := value.(type) {
	case nil:
		*v = JSONValue("null")
	case []byte:
		*v = append(JSONValue(nil), raw...)
	case string:
		*v = JSONValue(raw)
	default:
		return fmt.Errorf("models.JSONValue: unsupported Scan type %T", value)
	}
	return nil
}

func (v JSONValue) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

func (v *JSONValue) UnmarshalJSON(data []byte) error {
	*v = append((*v)[0:0], data...)
	return nil
}

// Raw returns the document as json.RawMessage.
func (v JSONValue) Raw() json.RawMessage {
	if len(v) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(v)
}
