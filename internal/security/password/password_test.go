package password

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := New(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestHash_Verify_RoundTrip(t *testing.T) {
	t.Parallel()

	h := newHasher(t)

	digest, err := h.Hash("secret1")
	require.NoError(t, err)
	require.NotEqual(t, "secret1", digest)

	require.True(t, h.Verify("secret1", digest))
	require.False(t, h.Verify("secret2", digest))
	require.False(t, h.Verify("", digest))
}

func TestHash_SaltDiffersPerCall(t *testing.T) {
	t.Parallel()

	h := newHasher(t)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.True(t, h.Verify("same", a))
	require.True(t, h.Verify("same", b))
}

func TestVerify_MalformedDigest_ReturnsFalse(t *testing.T) {
	t.Parallel()

	h := newHasher(t)

	for _, digest := range []string{"", "not-a-hash", "$2a$10$short"} {
		require.NotPanics(t, func() {
			require.False(t, h.Verify("secret1", digest))
		})
	}
}

func TestNew_CostOutOfRange_FallsBackToDefault(t *testing.T) {
	t.Parallel()

	h, err := New(0)
	require.NoError(t, err)
	require.Equal(t, DefaultCost, h.cost)

	cost, err := bcrypt.Cost([]byte(h.Dummy()))
	require.NoError(t, err)
	require.Equal(t, DefaultCost, cost)
}

func TestDummy_NeverMatchesTypicalPasswords(t *testing.T) {
	t.Parallel()

	h := newHasher(t)
	require.NotEmpty(t, h.Dummy())
	require.False(t, h.Verify("secret1", h.Dummy()))
	require.False(t, h.Verify("", h.Dummy()))
}
