package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// SubscribeStatus is the upstream subscription intent of a contact.
// Only StatusUnsubscribe changes routing; any other value is treated as
// subscribed.
type SubscribeStatus string

const (
	StatusUnsubscribe SubscribeStatus = "unsubscribe"
	StatusSubscribed  SubscribeStatus = "subscribed"
)

// RawContact is one upstream record as decoded from the RECORD message.
// Every field is optional.
type RawContact map[string]any

// String returns the named field as a string. Absent and null fields report
// ok=false. Numbers keep their literal digits.
func (r RawContact) String(key string) (string, bool) {
	return stringValue(r[key])
}

// Address returns the first element of "addresses", if any.
func (r RawContact) Address() (map[string]any, bool) {
	list, ok := r["addresses"].([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	addr, ok := list[0].(map[string]any)
	return addr, ok
}

// PhoneNumbers returns the "phone_numbers" entries that are objects.
func (r RawContact) PhoneNumbers() []map[string]any {
	list, ok := r["phone_numbers"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// Contact is a record projected onto the SendGrid marketing contact schema.
//
// Email and names are always sent (null when absent upstream). Address and
// phone fields are omitted unless the upstream record carried them.
// SubscribeStatus routes the record and is never serialized.
type Contact struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`

	AddressLine1        *string `json:"address_line_1,omitempty"`
	AddressLine2        *string `json:"address_line_2,omitempty"`
	City                *string `json:"city,omitempty"`
	StateProvinceRegion *string `json:"state_province_region,omitempty"`
	Country             *string `json:"country,omitempty"`
	PostalCode          *string `json:"postal_code,omitempty"`
	PhoneNumber         *string `json:"phone_number,omitempty"`

	SubscribeStatus SubscribeStatus `json:"-"`
}

// EmailAddress returns the contact's email or "" when absent.
func (c Contact) EmailAddress() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// Unsubscribes reports whether the contact belongs in the suppression
// partition.
func (c Contact) Unsubscribes() bool {
	return c.SubscribeStatus == StatusUnsubscribe
}
