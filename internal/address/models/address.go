// Package models holds the canonical address representation. Field order in
// the struct is load-bearing: issued credentials serialize addresses in
// declaration order and downstream verifiers compare the wire form.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar date with no time component, serialized as ISO-8601
// (2006-01-02).
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CanonicalAddress is one structural address. Only addressCountry is
// mandatory at submission time; everything else depends on what the property
// actually has.
type CanonicalAddress struct {
	Uprn                           *int64 `json:"uprn,omitempty"`
	OrganisationName               string `json:"organisationName,omitempty"`
	DepartmentName                 string `json:"departmentName,omitempty"`
	SubBuildingName                string `json:"subBuildingName,omitempty"`
	BuildingNumber                 string `json:"buildingNumber,omitempty"`
	BuildingName                   string `json:"buildingName,omitempty"`
	DependentStreetName            string `json:"dependentStreetName,omitempty"`
	StreetName                     string `json:"streetName,omitempty"`
	DoubleDependentAddressLocality string `json:"doubleDependentAddressLocality,omitempty"`
	DependentAddressLocality       string `json:"dependentAddressLocality,omitempty"`
	AddressLocality                string `json:"addressLocality,omitempty"`
	PostalCode                     string `json:"postalCode,omitempty"`
	AddressCountry                 string `json:"addressCountry,omitempty"`
	ValidFrom                      *Date  `json:"validFrom,omitempty"`
	ValidUntil                     *Date  `json:"validUntil,omitempty"`
}

// addressWire mirrors CanonicalAddress plus the legacy field names older
// relying parties still send. Canonical names win when both appear.
type addressWire struct {
	Uprn                           *int64 `json:"uprn"`
	OrganisationName               string `json:"organisationName"`
	DepartmentName                 string `json:"departmentName"`
	SubBuildingName                string `json:"subBuildingName"`
	BuildingNumber                 string `json:"buildingNumber"`
	BuildingName                   string `json:"buildingName"`
	DependentStreetName            string `json:"dependentStreetName"`
	StreetName                     string `json:"streetName"`
	DoubleDependentAddressLocality string `json:"doubleDependentAddressLocality"`
	DependentAddressLocality       string `json:"dependentAddressLocality"`
	AddressLocality                string `json:"addressLocality"`
	PostalCode                     string `json:"postalCode"`
	AddressCountry                 string `json:"addressCountry"`
	ValidFrom                      *Date  `json:"validFrom"`
	ValidUntil                     *Date  `json:"validUntil"`

	ThoroughfareName          string `json:"thoroughfareName"`
	DependentThoroughfareName string `json:"dependentThoroughfareName"`
	PostTown                  string `json:"postTown"`
	TownName                  string `json:"townName"`
	DependentLocality         string `json:"dependentLocality"`
	DoubleDependentLocality   string `json:"doubleDependentLocality"`
	Postcode                  string `json:"postcode"`
	CountryCode               string `json:"countryCode"`
	ResidentFrom              *Date  `json:"residentFrom"`
	ResidentTo                *Date  `json:"residentTo"`
}

func (a *CanonicalAddress) UnmarshalJSON(b []byte) error {
	var w addressWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*a = CanonicalAddress{
		Uprn:                           w.Uprn,
		OrganisationName:               w.OrganisationName,
		DepartmentName:                 w.DepartmentName,
		SubBuildingName:                w.SubBuildingName,
		BuildingNumber:                 w.BuildingNumber,
		BuildingName:                   w.BuildingName,
		DependentStreetName:            firstNonEmpty(w.DependentStreetName, w.DependentThoroughfareName),
		StreetName:                     firstNonEmpty(w.StreetName, w.ThoroughfareName),
		DoubleDependentAddressLocality: firstNonEmpty(w.DoubleDependentAddressLocality, w.DoubleDependentLocality),
		DependentAddressLocality:       firstNonEmpty(w.DependentAddressLocality, w.DependentLocality),
		AddressLocality:                firstNonEmpty(w.AddressLocality, w.PostTown, w.TownName),
		PostalCode:                     firstNonEmpty(w.PostalCode, w.Postcode),
		AddressCountry:                 firstNonEmpty(w.AddressCountry, w.CountryCode),
		ValidFrom:                      firstDate(w.ValidFrom, w.ResidentFrom),
		ValidUntil:                     firstDate(w.ValidUntil, w.ResidentTo),
	}
	return nil
}

func firstDate(values ...*Date) *Date {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsCurrent reports whether the address is open-ended.
func (a *CanonicalAddress) IsCurrent() bool { return a.ValidUntil == nil }
