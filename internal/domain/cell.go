package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Cell is a single value taken from a V-QUEST table. A Cell parsed from an
// empty source field is absent; absent cells serialize as null.
type Cell struct {
	value   string
	present bool
}

// Absent is the zero Cell.
var Absent = Cell{}

// Present wraps a value.
func Present(v string) Cell {
	return Cell{value: v, present: true}
}

// CellOf returns Absent for an empty string and a present cell otherwise.
func CellOf(v string) Cell {
	if v == "" {
		return Absent
	}
	return Present(v)
}

// Value returns the cell text and whether the cell is present.
func (c Cell) Value() (string, bool) {
	return c.value, c.present
}

// IsAbsent reports whether the cell carries no value.
func (c Cell) IsAbsent() bool {
	return !c.present
}

// String returns the cell text, or "" when absent.
func (c Cell) String() string {
	return c.value
}

// Float parses the cell as a float64.
func (c Cell) Float() (float64, error) {
	if !c.present {
		return 0, fmt.Errorf("value is absent")
	}
	return strconv.ParseFloat(strings.TrimSpace(c.value), 64)
}

// MarshalJSON implements json.Marshaler.
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.present {
		return []byte("null"), nil
	}
	return json.Marshal(c.value)
}

// UnmarshalJSON implements json.Unmarshaler. Numbers written by other
// tools are kept in their textual form.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Absent
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Present(s)
		return nil
	}
	*c = Present(string(data))
	return nil
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (c Cell) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if !c.present {
		return bsontype.Null, nil, nil
	}
	return bson.MarshalValue(c.value)
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (c *Cell) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*c = Absent
	case bsontype.String:
		*c = Present(raw.StringValue())
	case bsontype.Double:
		*c = Present(strconv.FormatFloat(raw.Double(), 'f', -1, 64))
	case bsontype.Int32:
		*c = Present(strconv.FormatInt(int64(raw.Int32()), 10))
	case bsontype.Int64:
		*c = Present(strconv.FormatInt(raw.Int64(), 10))
	case bsontype.Boolean:
		*c = Present(strconv.FormatBool(raw.Boolean()))
	default:
		return fmt.Errorf("unsupported bson type %s for cell", t)
	}
	return nil
}

// Fields maps column names to cells for one sequence row.
type Fields map[string]Cell

// Get returns the named cell, Absent if the column is missing.
func (f Fields) Get(column string) Cell {
	if f == nil {
		return Absent
	}
	return f[column]
}
