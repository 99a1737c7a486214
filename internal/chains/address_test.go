package chains

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolanaAddressRoundTrip(t *testing.T) {
	var raw [32]byte
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	native := base58.Encode(raw[:])

	universal, err := ToUniversalBytes32(native, KindSolana)
	require.NoError(t, err)
	assert.Equal(t, raw, universal)

	back, err := FromUniversalBytes32(universal, KindSolana)
	require.NoError(t, err)
	assert.Equal(t, native, back)
}

func TestAptosAddressRoundTrip(t *testing.T) {
	native := "0x8a3d0a5b1e2c9f40d17e6b44c0ffee0123456789abcdef0011223344556677aa"

	universal, err := ToUniversalBytes32(native, KindAptos)
	require.NoError(t, err)

	back, err := FromUniversalBytes32(universal, KindAptos)
	require.NoError(t, err)
	assert.Equal(t, native, back)
}

func TestAptosShortAddressIsLeftPadded(t *testing.T) {
	universal, err := ToUniversalBytes32("0x1", KindAptos)
	require.NoError(t, err)

	var want [32]byte
	want[31] = 0x01
	assert.Equal(t, want, universal)

	long, err := FromUniversalBytes32(universal, KindAptos)
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", long)
}

func TestToUniversalRejectsInvalid(t *testing.T) {
	cases := []struct {
		name   string
		native string
		kind   Kind
	}{
		{"bad base58", "0OIl", KindSolana},
		{"short solana key", base58.Encode([]byte{1, 2, 3}), KindSolana},
		{"empty aptos", "0x", KindAptos},
		{"too long aptos", "0x" + string(make([]byte, 70)), KindAptos},
		{"non-hex aptos", "0xzz", KindAptos},
		{"unknown kind", "anything", Kind("cosmos")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ToUniversalBytes32(tc.native, tc.kind)
			assert.Error(t, err)
		})
	}
}

func TestRegistryLookups(t *testing.T) {
	r := NewDefaultRegistry()

	sol, err := r.Get("solana")
	require.NoError(t, err)
	assert.Equal(t, uint32(5), sol.Domain)
	assert.Equal(t, KindSolana, sol.Kind)

	apt, err := r.GetByDomain(9)
	require.NoError(t, err)
	assert.Equal(t, "aptos", apt.Name)

	_, err = r.Get("ethereum")
	assert.Error(t, err)
	_, err = r.GetByDomain(42)
	assert.Error(t, err)

	assert.Equal(t, []string{"aptos", "solana"}, r.Names())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		Chain{Name: "solana", Kind: KindSolana, Domain: 5},
		Chain{Name: "solana", Kind: KindSolana, Domain: 6},
	)
	assert.Error(t, err)

	_, err = NewRegistry(
		Chain{Name: "a", Kind: KindSolana, Domain: 5},
		Chain{Name: "b", Kind: KindAptos, Domain: 5},
	)
	assert.Error(t, err)
}
