package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayScan(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected StringArray
	}{
		{"nil", nil, StringArray{}},
		{"empty string", "", StringArray{}},
		{"json null", "null", StringArray{}},
		{"bytes", []byte(`["wifi","sauna"]`), StringArray{"wifi", "sauna"}},
		{"string", `["a.jpg"]`, StringArray{"a.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a StringArray
			require.NoError(t, a.Scan(tt.input))
			assert.Equal(t, tt.expected, a)
			assert.NotNil(t, a)
		})
	}
}

func TestStringArrayScan_Invalid(t *testing.T) {
	var a StringArray
	assert.Error(t, a.Scan(42))
	assert.Error(t, a.Scan("{not json"))
}

func TestStringArrayValue_NilIsEmptyArray(t *testing.T) {
	var a StringArray
	v, err := a.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestCabinJSON_ArraysNeverNull(t *testing.T) {
	cabin := Cabin{ID: 7, Name: "Pine"}

	data, err := json.Marshal(cabin)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "7", decoded["id"])
	assert.Equal(t, []interface{}{}, decoded["amenities"])
	assert.Equal(t, []interface{}{}, decoded["images"])
	assert.Equal(t, false, decoded["featured"])
}

func TestCabinCoverImage(t *testing.T) {
	assert.Equal(t, "", Cabin{}.CoverImage())
	assert.Equal(t, "/uploads/a.jpg", Cabin{Images: StringArray{"/uploads/a.jpg", "/uploads/b.jpg"}}.CoverImage())
}

func TestStringArrayClean(t *testing.T) {
	a := StringArray{" wifi ", "", "  ", "sauna"}
	assert.Equal(t, StringArray{"wifi", "sauna"}, a.Clean())
}

func TestJSONValue(t *testing.T) {
	var v JSONValue
	require.NoError(t, v.Scan(`{"title":"X"}`))
	assert.JSONEq(t, `{"title":"X"}`, string(v.Raw()))

	stored, err := JSONValue(`"Y"`).Value()
	require.NoError(t, err)
	assert.Equal(t, `"Y"`, stored)

	_, err = JSONValue(`{broken`).Value()
	assert.ErrorIs(t, err, ErrInvalidJSON)
}
