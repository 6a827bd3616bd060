package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidContainerNumber(t *testing.T) {
	// CSQU3054383 is the reference example from the ISO 6346 standard.
	require.True(t, ValidContainerNumber("CSQU3054383"))
	require.True(t, ValidContainerNumber("TEMU1234565"))

	// Same numbers with a wrong check digit.
	require.False(t, ValidContainerNumber("CSQU3054380"))
	require.False(t, ValidContainerNumber("TEMU1234560"))
}

func TestLooksLikeContainerNumber(t *testing.T) {
	require.True(t, LooksLikeContainerNumber("CSQU3054383"))
	require.True(t, LooksLikeContainerNumber("CSQU3054380")) // shape only, checksum ignored

	require.False(t, LooksLikeContainerNumber(""))
	require.False(t, LooksLikeContainerNumber("CSQU305438"))    // too short
	require.False(t, LooksLikeContainerNumber("CSQU30543833"))  // too long
	require.False(t, LooksLikeContainerNumber("csqu3054383"))   // lower case
	require.False(t, LooksLikeContainerNumber("C5QU3054383"))   // digit in owner code
	require.False(t, LooksLikeContainerNumber("CSQU30A4383"))   // letter in serial
	require.False(t, LooksLikeContainerNumber("1234567890A"))
}

func TestContainerCheckDigit(t *testing.T) {
	require.Equal(t, 3, containerCheckDigit("CSQU3054383"))
	require.Equal(t, 5, containerCheckDigit("TEMU1234565"))
}
