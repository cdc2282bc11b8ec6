package orderstatus

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Status is the order lifecycle state shared by every service at build time.
type Status string

const (
	Pending        Status = "pending"
	Accepted       Status = "accepted"
	Rejected       Status = "rejected"
	Preparing      Status = "preparing"
	Ready          Status = "ready"
	OutForDelivery Status = "out_for_delivery"
	Delivered      Status = "delivered"
	Cancelled      Status = "cancelled"
)

// All lists every status in lifecycle order.
var All = []Status{
	Pending,
	Accepted,
	Rejected,
	Preparing,
	Ready,
	OutForDelivery,
	Delivered,
	Cancelled,
}

var ErrInvalidStatus = errors.New("invalid order status")

var byCompactName = func() map[string]Status {
	m := make(map[string]Status, len(All))
	for _, s := range All {
		m[compact(string(s))] = s
	}

	return m
}()

// compact lower-cases s and drops separators, so "OutForDelivery",
// "out-for-delivery" and "OUT_FOR_DELIVERY" all become "outfordelivery".
func compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case '-', '_', ' ':
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// Parse converts any accepted spelling into the canonical Status.
// Unknown words are rejected.
func Parse(s string) (Status, error) {
	st, ok := byCompactName[compact(s)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}

	return st, nil
}

func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is spelled exactly as one of the canonical statuses.
func (s Status) Valid() bool {
	st, ok := byCompactName[compact(string(s))]

	return ok && st == s
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Rejected || s == Cancelled
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, string(data))
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*s = parsed

	return nil
}

func (s Status) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *Status) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*s = ""

		return nil
	default:
		return fmt.Errorf("cannot scan %T into order status", src)
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*s = parsed

	return nil
}
