package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"domicile/internal/address/models"
	dErrors "domicile/pkg/domain-errors"
)

func date(year int, month time.Month, day int) *models.Date {
	d := models.NewDate(year, month, day)
	return &d
}

func address(validFrom, validUntil *models.Date) models.CanonicalAddress {
	return models.CanonicalAddress{
		BuildingNumber:  "8",
		StreetName:      "Hadley Road",
		AddressLocality: "Bath",
		PostalCode:      "BA2 5AA",
		AddressCountry:  "GB",
		ValidFrom:       validFrom,
		ValidUntil:      validUntil,
	}
}

func TestResolveValidity_EmptyBatch(t *testing.T) {
	resolved, err := ResolveValidity(nil)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestResolveValidity_CountryCodeMissing(t *testing.T) {
	a := address(date(2020, time.January, 1), nil)
	a.AddressCountry = ""
	_, err := ResolveValidity([]models.CanonicalAddress{a})
	require.Error(t, err)
	assert.True(t, dErrors.HasReason(err, ReasonCountryCodeMissing))
}

func TestResolveValidity_SingleAddress(t *testing.T) {
	t.Run("current accepted unchanged", func(t *testing.T) {
		in := []models.CanonicalAddress{address(date(2020, time.January, 1), nil)}
		resolved, err := ResolveValidity(in)
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		assert.Equal(t, in[0], resolved[0])
	})

	t.Run("no dates rejected", func(t *testing.T) {
		_, err := ResolveValidity([]models.CanonicalAddress{address(nil, nil)})
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, ReasonSingleAddressNotCurrent))
	})

	t.Run("closed interval accepted", func(t *testing.T) {
		in := []models.CanonicalAddress{address(date(2018, time.March, 5), date(2020, time.January, 1))}
		resolved, err := ResolveValidity(in)
		require.NoError(t, err)
		assert.Equal(t, in, resolved)
	})

	t.Run("zero length interval rejected", func(t *testing.T) {
		_, err := ResolveValidity([]models.CanonicalAddress{
			address(date(2020, time.January, 1), date(2020, time.January, 1)),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, ReasonInvalidAddressInterval))
	})

	t.Run("inverted interval preserved", func(t *testing.T) {
		in := []models.CanonicalAddress{address(date(2020, time.January, 1), date(2019, time.January, 1))}
		resolved, err := ResolveValidity(in)
		require.NoError(t, err)
		assert.Equal(t, in, resolved)
	})
}

func TestResolveValidity_TwoAddresses(t *testing.T) {
	t.Run("undated previous is linked to current validFrom", func(t *testing.T) {
		current := address(date(2020, time.January, 1), nil)
		previous := address(nil, nil)

		resolved, err := ResolveValidity([]models.CanonicalAddress{current, previous})
		require.NoError(t, err)
		require.Len(t, resolved, 2)
		assert.Equal(t, current, resolved[0])
		require.NotNil(t, resolved[1].ValidUntil)
		assert.Equal(t, "2020-01-01", resolved[1].ValidUntil.String())
		assert.Nil(t, resolved[1].ValidFrom)
	})

	t.Run("order independent", func(t *testing.T) {
		current := address(date(2020, time.January, 1), nil)
		previous := address(nil, nil)

		forward, err := ResolveValidity([]models.CanonicalAddress{current, previous})
		require.NoError(t, err)
		reversed, err := ResolveValidity([]models.CanonicalAddress{previous, current})
		require.NoError(t, err)
		assert.Equal(t, forward, reversed)
	})

	t.Run("input batch is never mutated", func(t *testing.T) {
		current := address(date(2020, time.January, 1), nil)
		previous := address(nil, nil)
		in := []models.CanonicalAddress{current, previous}

		_, err := ResolveValidity(in)
		require.NoError(t, err)
		assert.Nil(t, in[1].ValidUntil)
	})

	t.Run("dated previous needs no linking", func(t *testing.T) {
		current := address(date(2020, time.January, 1), nil)
		previous := address(date(2015, time.June, 1), date(2019, time.December, 31))

		_, err := ResolveValidity([]models.CanonicalAddress{current, previous})
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, ReasonLinkingNotNeeded))
	})

	t.Run("two current addresses ambiguous", func(t *testing.T) {
		_, err := ResolveValidity([]models.CanonicalAddress{
			address(date(2020, time.January, 1), nil),
			address(date(2021, time.January, 1), nil),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, ReasonAmbiguousCurrentAddress))
	})

	t.Run("no current address ambiguous", func(t *testing.T) {
		_, err := ResolveValidity([]models.CanonicalAddress{
			address(nil, nil),
			address(nil, date(2020, time.January, 1)),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, ReasonAmbiguousCurrentAddress))
	})

	t.Run("zero length interval rejected before classification", func(t *testing.T) {
		_, err := ResolveValidity([]models.CanonicalAddress{
			address(date(2020, time.January, 1), nil),
			address(date(2019, time.May, 5), date(2019, time.May, 5)),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, ReasonInvalidAddressInterval))
	})
}

func TestResolveValidity_TooManyAddresses(t *testing.T) {
	batch := []models.CanonicalAddress{
		address(date(2020, time.January, 1), nil),
		address(nil, nil),
		address(nil, nil),
	}
	_, err := ResolveValidity(batch)
	require.Error(t, err)
	assert.True(t, dErrors.HasReason(err, ReasonTooManyAddresses))
}
