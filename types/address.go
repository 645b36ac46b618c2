package types

import "time"

// Country is an ISO 3166 country an address can belong to.
type Country struct {
	ID int `json:"id" db:"id"`

	// Code is the upper-case ISO 3166-1 alpha-2 code.
	Code string `json:"code" db:"code"`

	Name string `json:"name" db:"name"`
}

// Address is a postal address. Addresses are shared between persons and
// never change once referenced by a residency.
type Address struct {
	ID         int       `json:"id" db:"id"`
	Street     string    `json:"street" db:"street"`
	City       string    `json:"city" db:"city"`
	PostalCode string    `json:"postal_code" db:"postal_code"`
	CountryID  int       `json:"country_id" db:"country_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Residency records a person living at an address over a date interval.
//
// StartDate is inclusive. EndDate is inclusive; nil means the residency is
// the person's current address. A person has at most one open residency and
// closed residencies never overlap.
type Residency struct {
	ID        int        `json:"id" db:"id"`
	PersonID  int        `json:"person_id" db:"person_id"`
	AddressID int        `json:"address_id" db:"address_id"`
	StartDate time.Time  `json:"start_date" db:"start_date"`
	EndDate   *time.Time `json:"end_date" db:"end_date"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Current reports whether the residency is still open.
func (r Residency) Current() bool {
	return r.EndDate == nil
}
