package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorAggregates(t *testing.T) {
	var c Collector
	assert.NoError(t, c.Err())

	c.Add(CodeCitizenNameMissing, "name")
	require.NoError(t, c.Merge(Validation(CodeCitizenEmailInvalid, "email")))
	require.NoError(t, c.Merge(nil))

	err := c.Err()
	require.Error(t, err)
	assert.Equal(t, []Code{CodeCitizenNameMissing, CodeCitizenEmailInvalid}, CodesOf(err))
}

func TestCollectorPassesSystemErrors(t *testing.T) {
	var c Collector
	sys := Internal("db", errors.New("boom"))
	assert.Same(t, sys, c.Merge(sys))
	assert.NoError(t, c.Err())
}

func TestValidationsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("create booking: %w", Validation(CodeServiceProviderNotAvailable, "full"))
	var v Validations
	require.True(t, errors.As(err, &v))
	assert.True(t, v.Has(CodeServiceProviderNotAvailable))
	assert.False(t, v.Has(CodeOnHoldExpired))
}

func TestSystemErrorKinds(t *testing.T) {
	err := fmt.Errorf("load: %w", BookingNotFound())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, KindNotFound, KindOf(err))

	assert.True(t, errors.Is(ServiceNotConfiguredForAnonymous(), ErrForbidden))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))

	wrapped := Internal("query", errors.New("timeout"))
	assert.Contains(t, wrapped.Error(), "timeout")
}
