package sink

import (
	"github.com/hotgluexyz/target-sendgrid/internal/domain"
	"github.com/hotgluexyz/target-sendgrid/internal/pkg/logger"
)

// addressFields maps upstream address keys onto contact setters.
var addressFields = []struct {
	key string
	set func(c *domain.Contact, v *string)
}{
	{"line1", func(c *domain.Contact, v *string) { c.AddressLine1 = v }},
	{"line2", func(c *domain.Contact, v *string) { c.AddressLine2 = v }},
	{"city", func(c *domain.Contact, v *string) { c.City = v }},
	{"state", func(c *domain.Contact, v *string) { c.StateProvinceRegion = v }},
	{"country", func(c *domain.Contact, v *string) { c.Country = v }},
	{"postal_code", func(c *domain.Contact, v *string) { c.PostalCode = v }},
}

// Transform projects one upstream record onto the SendGrid contact schema.
// It never fails: missing optional fields are left out.
//
// Only the first address is used. Only the first phone number is used, as
// the reserved phone_number field, and only when its number is non-empty.
func Transform(record domain.RawContact, index int) domain.Contact {
	c := domain.Contact{
		Email:     optional(record.String("email")),
		FirstName: optional(record.String("first_name")),
		LastName:  optional(record.String("last_name")),
	}
	if status, ok := record.String("subscribe_status"); ok {
		c.SubscribeStatus = domain.SubscribeStatus(status)
	}
	if c.Email == nil {
		logger.Debug("record has no email", "index", index)
	}

	// Missing address keys are omitted, not sent as null: SendGrid clears a
	// field on null.
	if addr, ok := record.Address(); ok {
		raw := domain.RawContact(addr)
		for _, f := range addressFields {
			f.set(&c, optional(raw.String(f.key)))
		}
	}

	if phones := record.PhoneNumbers(); len(phones) > 0 {
		if number, ok := domain.RawContact(phones[0]).String("number"); ok && number != "" {
			c.PhoneNumber = &number
		}
	}

	return c
}

// TransformAll projects every record, preserving order and count.
func TransformAll(records []domain.RawContact) []domain.Contact {
	out := make([]domain.Contact, len(records))
	for i, r := range records {
		out[i] = Transform(r, i)
	}
	return out
}

func optional(v string, ok bool) *string {
	if !ok {
		return nil
	}
	return &v
}
