package model

import (
	"github.com/renewalpoint/scheduler/internal/dates"
)

// Contact is a row from the organization's contacts table. Contacts are
// read-only input to the scheduler.
type Contact struct {
	ID                 int64      `json:"id"`
	Email              string     `json:"email"`
	ZipCode            string     `json:"zipCode,omitempty"`
	State              string     `json:"state,omitempty"` // two-letter code, upper case
	Birthday           dates.Date `json:"birthday,omitempty"`
	EffectiveDate      dates.Date `json:"effectiveDate,omitempty"`
	Carrier            string     `json:"carrier,omitempty"`
	FailedUnderwriting bool       `json:"failedUnderwriting"`
}

// Sendable reports whether the contact can receive email at all.
func (c *Contact) Sendable() bool {
	return c.Email != ""
}

// HasLocation reports whether the contact carries enough location data to
// evaluate state-targeted campaigns.
func (c *Contact) HasLocation() bool {
	return c.State != "" || c.ZipCode != ""
}
