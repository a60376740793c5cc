package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is how parsed dates are stored. All values are UTC with fixed
// width so string comparison in the store orders them chronologically.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Date is a nullable point in time. The zero value means the source value was
// missing or could not be parsed.
type Date struct {
	Time  time.Time
	Valid bool
}

func NewDate(t time.Time) Date {
	return Date{Time: t, Valid: true}
}

func (d Date) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.UTC().Format(DateLayout)
}

func (d Date) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.UTC())
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("models.Date: unsupported scan type %T", src)
	}
}

func (d *Date) parse(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	for _, layout := range []string{DateLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = NewDate(t.UTC())
			return nil
		}
	}
	return fmt.Errorf("models.Date: cannot parse %q", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.parse(s)
}

// Actions is stored as a JSON array in a single column.
type Actions []MaintenanceAction

func (a Actions) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]MaintenanceAction(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Actions) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("models.Actions: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*a = nil
		return nil
	}
	var out []MaintenanceAction
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*a = out
	return nil
}
