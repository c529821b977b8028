package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"128-bit token", TokenSize128},
		{"256-bit token", TokenSize256},
		{"custom size", 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			token2, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1, -100} {
		_, err := GenerateToken(size)
		require.Error(t, err)
	}
}

func TestFingerprintToken(t *testing.T) {
	token := "some-session-token"

	fp := FingerprintToken(token)
	require.NotEmpty(t, fp)
	require.NotEqual(t, token, fp)

	// Deterministic: fingerprinting twice yields the same value.
	require.Equal(t, fp, FingerprintToken(token))

	// Distinct tokens yield distinct fingerprints.
	require.NotEqual(t, fp, FingerprintToken("other-session-token"))
}
