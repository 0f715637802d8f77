package kvstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESGCMSealer_SealOpen(t *testing.T) {
	sealer, err := NewAESGCMSealer("passphrase")
	require.NoError(t, err)

	sealed, err := sealer.Seal("k", []byte("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefixV1))

	// nonce is random per call
	again, err := sealer.Seal("k", []byte("hello"))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)

	pt, err := sealer.Open("k", sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), pt)
}

func TestAESGCMSealer_KeyBoundAsAssociatedData(t *testing.T) {
	sealer, err := NewAESGCMSealer("passphrase")
	require.NoError(t, err)

	sealed, err := sealer.Seal("@nexoai:access_token", []byte("tok"))
	require.NoError(t, err)

	_, err = sealer.Open("@nexoai:refresh_token", sealed)
	require.Error(t, err)
}

func TestAESGCMSealer_WrongSecret(t *testing.T) {
	a, err := NewAESGCMSealer("one")
	require.NoError(t, err)
	b, err := NewAESGCMSealer("two")
	require.NoError(t, err)

	sealed, err := a.Seal("k", []byte("v"))
	require.NoError(t, err)
	_, err = b.Open("k", sealed)
	require.Error(t, err)
}

func TestAESGCMSealer_Errors(t *testing.T) {
	_, err := NewAESGCMSealer("  ")
	require.Error(t, err)

	sealer, err := NewAESGCMSealer("passphrase")
	require.NoError(t, err)

	_, err = sealer.Open("k", "v2:abc")
	require.Error(t, err)
	_, err = sealer.Open("k", sealedPrefixV1+"!!!")
	require.Error(t, err)
	_, err = sealer.Open("k", sealedPrefixV1+"AAAA")
	require.Error(t, err)
}

func TestAESGCMSealer_OpensPlainValues(t *testing.T) {
	sealer, err := NewAESGCMSealer("passphrase")
	require.NoError(t, err)

	plain, err := PlainSealer{}.Seal("k", []byte(`"tok"`))
	require.NoError(t, err)

	pt, err := sealer.Open("k", plain)
	require.NoError(t, err)
	assert.Equal(t, `"tok"`, string(pt))
}

func TestPlainSealer_RejectsSealed(t *testing.T) {
	_, err := PlainSealer{}.Open("k", sealedPrefixV1+"abc")
	require.Error(t, err)
}
