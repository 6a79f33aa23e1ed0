package handler

import (
	"strings"
	"time"
)

// dateOnly accepts "2006-01-02" or full RFC 3339 timestamps in JSON bodies.
type dateOnly struct {
	time.Time
}

func (d *dateOnly) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
	}
	d.Time = t.UTC()
	return nil
}

func (d *dateOnly) timePtr() *time.Time {
	if d == nil || d.Time.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
