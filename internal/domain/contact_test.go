package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRawContact_String(t *testing.T) {
	r := RawContact{
		"email":   "a@example.com",
		"zip":     94107.0,
		"phone":   4155550100.0,
		"postal":  json.Number("1234567"),
		"nothing": nil,
	}

	v, ok := r.String("email")
	assert.True(t, ok)
	assert.Equal(t, "a@example.com", v)

	v, ok = r.String("zip")
	assert.True(t, ok)
	assert.Equal(t, "94107", v)

	v, _ = r.String("phone")
	assert.Equal(t, "4155550100", v)

	v, _ = r.String("postal")
	assert.Equal(t, "1234567", v)

	_, ok = r.String("nothing")
	assert.False(t, ok)
	_, ok = r.String("missing")
	assert.False(t, ok)
}

func TestRawContact_Address(t *testing.T) {
	var r RawContact
	require.NoError(t, json.Unmarshal([]byte(`{"addresses":[{"city":"Austin"},{"city":"Reno"}]}`), &r))

	addr, ok := r.Address()
	require.True(t, ok)
	assert.Equal(t, "Austin", addr["city"])

	_, ok = RawContact{"addresses": []any{}}.Address()
	assert.False(t, ok)
	_, ok = RawContact{}.Address()
	assert.False(t, ok)
}

func TestRawContact_PhoneNumbersSkipsNonObjects(t *testing.T) {
	var r RawContact
	require.NoError(t, json.Unmarshal([]byte(`{"phone_numbers":[{"type":"mobile","number":"1"},"junk"]}`), &r))
	assert.Len(t, r.PhoneNumbers(), 1)
}

func TestContact_JSONNeverCarriesSubscribeStatus(t *testing.T) {
	c := Contact{Email: strPtr("a@example.com"), SubscribeStatus: StatusUnsubscribe}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "subscribe_status")
	assert.JSONEq(t, `{"email":"a@example.com","first_name":null,"last_name":null}`, string(data))
}

func TestContact_Unsubscribes(t *testing.T) {
	assert.True(t, Contact{SubscribeStatus: "unsubscribe"}.Unsubscribes())
	assert.False(t, Contact{SubscribeStatus: "subscribed"}.Unsubscribes())
	assert.False(t, Contact{}.Unsubscribes())
	assert.False(t, Contact{SubscribeStatus: " unsubscribe "}.Unsubscribes())
	assert.False(t, Contact{SubscribeStatus: "Unsubscribe"}.Unsubscribes())
	assert.Equal(t, "", Contact{}.EmailAddress())
}
