package custom

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Datetime represents a datetime. It is stored as unix seconds in SQL databases and as a BSON datetime in Mongo.
type Datetime time.Time

// Now returns the current time as a Datetime, truncated to the second.
func Now() Datetime {
	return Datetime(time.Now().UTC().Truncate(time.Second))
}

// FromUnix creates a Datetime from unix seconds.
func FromUnix(sec int64) Datetime {
	return Datetime(time.Unix(sec, 0).UTC())
}

// Time returns the underlying time.
func (d Datetime) Time() time.Time {
	return time.Time(d)
}

// Unix returns the unix seconds of the datetime.
func (d Datetime) Unix() int64 {
	return time.Time(d).Unix()
}

// IsZero reports whether the datetime is unset.
func (d Datetime) IsZero() bool {
	return time.Time(d).IsZero()
}

// Before reports whether d is before u.
func (d Datetime) Before(u Datetime) bool {
	return time.Time(d).Before(time.Time(u))
}

// MarshalJSON implements the json.Marshaler interface.
func (d Datetime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf(`%q`, time.Time(d).UTC().Format(time.RFC3339))), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Datetime) UnmarshalJSON(text []byte) error {
	s := strings.Trim(string(text), `"`)
	if s == "" || s == "null" {
		*d = Datetime{}
		return nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid datetime %q: %w", s, err)
	}
	*d = Datetime(t)
	return nil
}

// MarshalBSONValue implements the bson.ValueMarshaler interface.
func (d Datetime) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if d.IsZero() {
		return bson.TypeNull, nil, nil
	}
	return bson.MarshalValue(time.Time(d).UTC())
}

// UnmarshalBSONValue implements the bson.ValueUnmarshaler interface.
func (d *Datetime) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeNull, bson.TypeUndefined:
		*d = Datetime{}
		return nil
	case bson.TypeDateTime:
		*d = Datetime(rv.Time().UTC())
		return nil
	case bson.TypeInt64:
		*d = FromUnix(rv.Int64())
		return nil
	case bson.TypeString:
		got, err := time.Parse(time.RFC3339, rv.StringValue())
		if err != nil {
			return fmt.Errorf("invalid datetime: %w", err)
		}
		*d = Datetime(got)
		return nil
	default:
		return fmt.Errorf("invalid bson type %s for %T", t, d)
	}
}

// Scan implements the sql.Scanner interface.
func (d *Datetime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Datetime{}
	case int64:
		*d = FromUnix(v)
	case time.Time:
		*d = Datetime(v.UTC())
	default:
		return fmt.Errorf("invalid scan, type %T not supported for %T", src, d)
	}
	return nil
}

// Value implements the driver.Valuer interface.
func (d Datetime) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Unix(), nil
}

// String implements the fmt.Stringer interface.
func (d Datetime) String() string {
	return time.Time(d).Format(time.RFC3339)
}
