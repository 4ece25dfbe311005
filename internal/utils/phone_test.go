package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsValidPhone(t *testing.T) {
	require.True(t, IsValidPhone("+15551234567"))
	require.True(t, IsValidPhone("(555) 123-4567"))
	require.False(t, IsValidPhone(""))
	require.False(t, IsValidPhone("+0123"))
	require.False(t, IsValidPhone("not a number"))
}

func TestNormalizePhone(t *testing.T) {
	require.Equal(t, "+15551234567", NormalizePhone("+1 (555) 123-4567"))
	require.Equal(t, "+441632960961", NormalizePhone("+44 1632 960961"))

	// Bare national numbers pick up the default country code.
	require.Equal(t, DefaultCountryCode+"5551234567", NormalizePhone("555-123-4567"))
}

func TestMaskPhone(t *testing.T) {
	require.Equal(t, "********4567", MaskPhone("+15551234567"))
	require.Equal(t, "123", MaskPhone("123"))
}
