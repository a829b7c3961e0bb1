package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// StringArray stores a string list in a text column using the PostgreSQL
// array encoding. Scan also accepts a bare comma-separated string so rows
// written before the encoding change still read back.
type StringArray []string

// Value implements the driver.Valuer interface for StringArray
func (sa StringArray) Value() (driver.Value, error) {
	if len(sa) == 0 {
		return nil, nil
	}
	var quoted []string
	for _, s := range sa {
		quoted = append(quoted, `"`+strings.ReplaceAll(s, `"`, `\"`)+`"`)
	}
	return "{" + strings.Join(quoted, ",") + "}", nil
}

// Scan implements the sql.Scanner interface for StringArray
func (sa *StringArray) Scan(value interface{}) error {
	if value == nil {
		*sa = StringArray{}
		return nil
	}

	switch v := value.(type) {
	case string:
		if v == "" {
			*sa = StringArray{}
			return nil
		}
		content := v
		if strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}") {
			content = v[1 : len(v)-1]
		}
		if content == "" {
			*sa = StringArray{}
			return nil
		}
		raw := strings.Split(content, ",")
		clean := make([]string, 0, len(raw))
		for _, entry := range raw {
			entry = strings.TrimSpace(entry)
			entry = strings.Trim(entry, `"`)
			entry = strings.ReplaceAll(entry, `\"`, `"`)
			if entry != "" {
				clean = append(clean, entry)
			}
		}
		*sa = StringArray(clean)
		return nil
	case []byte:
		return sa.Scan(string(v))
	default:
		return errors.New("cannot scan into StringArray")
	}
}

// ToSlice returns a copy of the underlying slice.
func (sa StringArray) ToSlice() []string {
	if len(sa) == 0 {
		return []string{}
	}
	out := make([]string, len(sa))
	copy(out, sa)
	return out
}

// JSON is a generic JSON column type. Plan content, template schemas and audit
// details are stored opaquely through it.
type JSON []byte

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = JSON(v)
		return nil
	case string:
		*j = JSON(v)
		return nil
	default:
		return errors.New("cannot scan into JSON")
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = JSON(data)
	return nil
}

// MarshalJSON implements the json.Marshaler interface
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// AsMap decodes the column into a generic map, returning an empty map for
// NULL or empty payloads.
func (j JSON) AsMap() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(j) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(j, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MustJSON marshals v into a JSON column value, panicking only on types that
// cannot be marshalled (programmer error).
func MustJSON(v interface{}) JSON {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return JSON(data)
}
