package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldType is the declared type of a category custom field
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldDate    FieldType = "date"
	FieldBoolean FieldType = "boolean"
	FieldSelect  FieldType = "select"
)

// Valid reports whether t is one of the five supported field types
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldDate, FieldBoolean, FieldSelect:
		return true
	}
	return false
}

// FieldDef declares one custom field on a category
type FieldDef struct {
	Key     string    `json:"key" binding:"required,max=64"`
	Label   string    `json:"label" binding:"required,max=100"`
	Type    FieldType `json:"type" binding:"omitempty,oneof=text number date boolean select"`
	Options []string  `json:"options"`
}

// FieldSchema is the ordered list of field definitions stored on a category
// as a single JSON column.
type FieldSchema []FieldDef

// Value implements driver.Valuer
func (s FieldSchema) Value() (driver.Value, error) {
	if s == nil {
		s = FieldSchema{}
	}
	b, err := json.Marshal([]FieldDef(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (s *FieldSchema) Scan(value any) error {
	b, err := columnBytes(value)
	if err != nil || len(b) == 0 {
		*s = FieldSchema{}
		return err
	}
	var defs []FieldDef
	if err := json.Unmarshal(b, &defs); err != nil {
		return fmt.Errorf("decode field schema: %w", err)
	}
	*s = defs
	return nil
}

// FieldValue is a custom field value tagged with its field type. Exactly one
// of the payload fields is meaningful, selected by the type.
type FieldValue struct {
	kind    FieldType
	text    string
	number  decimal.Decimal
	date    time.Time
	boolean bool
}

func TextValue(s string) FieldValue { return FieldValue{kind: FieldText, text: s} }

func SelectValue(s string) FieldValue { return FieldValue{kind: FieldSelect, text: s} }

func NumberValue(d decimal.Decimal) FieldValue { return FieldValue{kind: FieldNumber, number: d} }

func BoolValue(b bool) FieldValue { return FieldValue{kind: FieldBoolean, boolean: b} }

func DateValue(t time.Time) FieldValue {
	return FieldValue{kind: FieldDate, date: StartOfDay(t.UTC())}
}

// Type returns the variant tag
func (v FieldValue) Type() FieldType { return v.kind }

// Interface returns the plain Go value: string for text, select and date,
// decimal.Decimal for number, bool for boolean.
func (v FieldValue) Interface() any {
	switch v.kind {
	case FieldNumber:
		return v.number
	case FieldBoolean:
		return v.boolean
	case FieldDate:
		return v.date.Format(DateLayout)
	default:
		return v.text
	}
}

// MarshalJSON renders the untagged value, e.g. "Mart", 12.5 or true
func (v FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Equal compares tag and payload
func (v FieldValue) Equal(o FieldValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case FieldNumber:
		return v.number.Equal(o.number)
	case FieldBoolean:
		return v.boolean == o.boolean
	case FieldDate:
		return v.date.Equal(o.date)
	default:
		return v.text == o.text
	}
}

var (
	ErrNotString   = errors.New("must be a string")
	ErrNotNumber   = errors.New("must be a number")
	ErrNotBoolean  = errors.New("must be true or false")
	ErrNotDate     = errors.New("must be a date (YYYY-MM-DD)")
	ErrNotOption   = errors.New("must be one of the field options")
	ErrUnknownType = errors.New("unknown field type")
)

// IsEmptyJSON reports whether raw is absent, null or an empty string. Such
// values are treated as "not provided".
func IsEmptyJSON(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte(`""`))
}

// ParseFieldValue coerces a raw JSON value into the variant declared by def.
// Numbers and booleans may also arrive as strings, as HTML forms send them.
func ParseFieldValue(def FieldDef, raw json.RawMessage) (FieldValue, error) {
	switch def.Type {
	case FieldText, "":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return FieldValue{}, ErrNotString
		}
		return TextValue(s), nil
	case FieldSelect:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return FieldValue{}, ErrNotString
		}
		if !slices.Contains(def.Options, s) {
			return FieldValue{}, ErrNotOption
		}
		return SelectValue(s), nil
	case FieldNumber:
		d, err := decimal.NewFromString(strings.Trim(string(bytes.TrimSpace(raw)), `"`))
		if err != nil {
			return FieldValue{}, ErrNotNumber
		}
		return NumberValue(d), nil
	case FieldBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return BoolValue(b), nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return FieldValue{}, ErrNotBoolean
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return FieldValue{}, ErrNotBoolean
		}
		return BoolValue(b), nil
	case FieldDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return FieldValue{}, ErrNotDate
		}
		t, err := ParseDate(s)
		if err != nil {
			return FieldValue{}, ErrNotDate
		}
		return DateValue(t), nil
	}
	return FieldValue{}, ErrUnknownType
}

// CustomFields maps field key to typed value
type CustomFields map[string]FieldValue

// storedValue is the tagged column encoding of a FieldValue
type storedValue struct {
	Type  FieldType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON renders the plain key → value object; nil renders as {}
func (c CustomFields) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]FieldValue(c))
}

// Value implements driver.Valuer using the tagged encoding so the column can
// be decoded without the category schema.
func (c CustomFields) Value() (driver.Value, error) {
	out := make(map[string]storedValue, len(c))
	for k, v := range c {
		raw, err := v.MarshalJSON()
		if err != nil {
			return nil, err
		}
		out[k] = storedValue{Type: v.kind, Value: raw}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (c *CustomFields) Scan(value any) error {
	b, err := columnBytes(value)
	if err != nil || len(b) == 0 {
		*c = CustomFields{}
		return err
	}
	var stored map[string]storedValue
	if err := json.Unmarshal(b, &stored); err != nil {
		return fmt.Errorf("decode custom fields: %w", err)
	}
	out := make(CustomFields, len(stored))
	for k, sv := range stored {
		def := FieldDef{Key: k, Type: sv.Type}
		if sv.Type == FieldSelect {
			// the stored value was validated on write; accept it as its own option
			var s string
			_ = json.Unmarshal(sv.Value, &s)
			def.Options = []string{s}
		}
		v, err := ParseFieldValue(def, sv.Value)
		if err != nil {
			return fmt.Errorf("decode custom field %q: %w", k, err)
		}
		out[k] = v
	}
	*c = out
	return nil
}

func columnBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", value)
	}
}
