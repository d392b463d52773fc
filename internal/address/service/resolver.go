// Package service implements address submission: validity resolution over
// the submitted batch, persistence, and the hand-off that makes a session
// eligible for an authorization code.
package service

import (
	"domicile/internal/address/models"
	dErrors "domicile/pkg/domain-errors"
)

// Failure kinds for validity resolution. These surface verbatim in error
// responses so relying parties can distinguish correctable submissions.
const (
	ReasonCountryCodeMissing      = "country_code_missing"
	ReasonSingleAddressNotCurrent = "single_address_not_current"
	ReasonLinkingNotNeeded        = "linking_not_needed"
	ReasonAmbiguousCurrentAddress = "ambiguous_current_address"
	ReasonInvalidAddressInterval  = "invalid_address_interval"
	ReasonTooManyAddresses        = "too_many_addresses"
)

// ResolveValidity infers the validity intervals of a submitted address batch
// and returns the resolved copy. The input slice is never mutated: a batch
// either resolves completely or not at all.
//
// One address must be explicitly current (validFrom set, validUntil open).
// Two addresses must split into one current and one previous; a previous
// with no dates at all inherits the current address's validFrom as its
// validUntil. Three or more are rejected outright.
func ResolveValidity(addresses []models.CanonicalAddress) ([]models.CanonicalAddress, error) {
	for _, a := range addresses {
		if a.AddressCountry == "" {
			return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonCountryCodeMissing,
				"address is missing a country code")
		}
	}

	switch len(addresses) {
	case 0:
		return nil, nil
	case 1:
		return resolveSingle(addresses[0])
	case 2:
		return resolvePair(addresses[0], addresses[1])
	default:
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"cannot resolve validity for %d addresses, a maximum of 2 is supported", len(addresses)).
			WithReason(ReasonTooManyAddresses)
	}
}

func resolveSingle(address models.CanonicalAddress) ([]models.CanonicalAddress, error) {
	if address.ValidFrom == nil && address.ValidUntil == nil {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonSingleAddressNotCurrent,
			"a single submitted address must be a current address")
	}
	if zeroLengthInterval(address) {
		return nil, invalidInterval(address)
	}
	return []models.CanonicalAddress{address}, nil
}

func resolvePair(first, second models.CanonicalAddress) ([]models.CanonicalAddress, error) {
	if zeroLengthInterval(first) || zeroLengthInterval(second) {
		a := first
		if zeroLengthInterval(second) {
			a = second
		}
		return nil, invalidInterval(a)
	}

	// The current address is the one explicitly open-ended with a known
	// start. Classification, not input position, decides the outcome.
	firstCurrent := isExplicitlyCurrent(first)
	secondCurrent := isExplicitlyCurrent(second)
	if firstCurrent == secondCurrent {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonAmbiguousCurrentAddress,
			"exactly one of two submitted addresses must be the current address")
	}

	current, previous := first, second
	if secondCurrent {
		current, previous = second, first
	}

	if previous.ValidUntil != nil {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonLinkingNotNeeded,
			"previous address already has a validUntil date, linking is not needed")
	}
	if previous.ValidFrom == nil {
		// Undated previous address: close its interval at the point the
		// current address took over.
		linkedUntil := *current.ValidFrom
		previous.ValidUntil = &linkedUntil
	}
	return []models.CanonicalAddress{current, previous}, nil
}

func isExplicitlyCurrent(a models.CanonicalAddress) bool {
	return a.ValidFrom != nil && a.ValidUntil == nil
}

// zeroLengthInterval reports validFrom == validUntil with both set. An
// inverted interval (validUntil before validFrom) is deliberately not caught
// here: issued credentials have carried such intervals historically and
// tightening the check would reject previously accepted submissions.
func zeroLengthInterval(a models.CanonicalAddress) bool {
	return a.ValidFrom != nil && a.ValidUntil != nil && a.ValidFrom.Equal(a.ValidUntil.Time)
}

func invalidInterval(a models.CanonicalAddress) error {
	return dErrors.Newf(dErrors.CodeBadRequest,
		"address validFrom %s and validUntil %s do not form a valid interval",
		a.ValidFrom, a.ValidUntil).WithReason(ReasonInvalidAddressInterval)
}
