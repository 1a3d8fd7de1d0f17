package tree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
)

func TestParseDatatype(t *testing.T) {
	for _, s := range []string{"node", "int32", "int64", "enum", "string", "float", "bool", "timestamp", "object", "link"} {
		d, err := ParseDatatype(s)
		require.NoError(t, err)
		assert.Equal(t, Datatype(s), d)
	}

	_, err := ParseDatatype("uint8")
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidDatatype))
}

func TestCoerce(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		datatype Datatype
		in       any
		want     any
	}{
		{"int32 from string", DatatypeInt32, "42", int32(42)},
		{"int32 from json number", DatatypeInt32, float64(42), int32(42)},
		{"int64 from int", DatatypeInt64, 7, int64(7)},
		{"enum from string", DatatypeEnum, "3", int32(3)},
		{"float from string", DatatypeFloat, "1.5", 1.5},
		{"float from int", DatatypeFloat, 2, float64(2)},
		{"bool literal true", DatatypeBool, "true", true},
		{"bool other string", DatatypeBool, "yes", false},
		{"bool capitalized", DatatypeBool, "True", false},
		{"bool native", DatatypeBool, true, true},
		{"string passthrough", DatatypeString, "hello", "hello"},
		{"string from number", DatatypeString, 12, "12"},
		{"link", DatatypeLink, "/instances/7", "/instances/7"},
		{"timestamp rfc3339", DatatypeTimestamp, "2024-05-01T12:00:00Z", ts},
		{"timestamp millis", DatatypeTimestamp, ts.UnixMilli(), time.UnixMilli(ts.UnixMilli())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.datatype, tt.in)
			require.NoError(t, err)
			if want, ok := tt.want.(time.Time); ok {
				assert.True(t, want.Equal(got.(time.Time)))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceFailures(t *testing.T) {
	tests := []struct {
		name     string
		datatype Datatype
		in       any
	}{
		{"int32 garbage", DatatypeInt32, "ninety"},
		{"int32 fractional", DatatypeInt32, 1.5},
		{"int32 overflow", DatatypeInt32, int64(1) << 40},
		{"float garbage", DatatypeFloat, "wide"},
		{"bool from number", DatatypeBool, 1},
		{"link from number", DatatypeLink, 1},
		{"timestamp garbage", DatatypeTimestamp, "yesterday"},
		{"container", DatatypeNode, "x"},
		{"unknown", Datatype("uint8"), "1"},
		{"nil", DatatypeString, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce(tt.datatype, tt.in)
			assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeConversionFailed))
		})
	}
}
