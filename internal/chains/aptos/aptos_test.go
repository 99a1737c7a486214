package aptos

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	t.Run("long form round trip", func(t *testing.T) {
		s := "0x8a3d0a5b1e2c9f40d17e6b44c0ffee0123456789abcdef0011223344556677aa"
		addr, err := ParseAddress(s)
		require.NoError(t, err)
		assert.Equal(t, s, addr.String())
	})

	t.Run("short form is left padded", func(t *testing.T) {
		addr, err := ParseAddress("0x1")
		require.NoError(t, err)
		var want AccountAddress
		want[31] = 0x01
		assert.Equal(t, want, addr)
	})

	t.Run("rejects invalid", func(t *testing.T) {
		for _, s := range []string{"", "0x", "0xzz", "0x" + string(make([]byte, 70))} {
			_, err := ParseAddress(s)
			assert.Error(t, err, "input %q", s)
		}
	})
}

func TestUleb128Encoding(t *testing.T) {
	cases := []struct {
		value uint64
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xAC, 0x02}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, tc := range cases {
		e := newBCSEncoder()
		e.Uleb128(tc.value)
		assert.Equal(t, tc.want, e.Result(), "value %d", tc.value)
	}
}

func TestBCSPrimitives(t *testing.T) {
	e := newBCSEncoder()
	e.U64(100000)
	e.U32(5)
	e.Bool(true)
	e.Bytes([]byte{0xAA, 0xBB})
	e.String("abc")

	out := e.Result()
	assert.Equal(t, uint64(100000), binary.LittleEndian.Uint64(out[0:8]))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(out[8:12]))
	assert.Equal(t, byte(1), out[12])
	assert.Equal(t, []byte{0x02, 0xAA, 0xBB}, out[13:16])
	assert.Equal(t, []byte{0x03, 'a', 'b', 'c'}, out[16:20])
}

func TestPrimaryStoreAddress(t *testing.T) {
	owner := MustParseAddress("0xa1")
	metadata := MustParseAddress("0xb2")

	store := PrimaryStoreAddress(owner, metadata)
	assert.False(t, store.IsZero())
	assert.Equal(t, store, PrimaryStoreAddress(owner, metadata))

	// distinct owners and metadata objects derive distinct stores
	assert.NotEqual(t, store, PrimaryStoreAddress(MustParseAddress("0xa2"), metadata))
	assert.NotEqual(t, store, PrimaryStoreAddress(owner, MustParseAddress("0xb3")))
	assert.NotEqual(t, owner, store, "store must differ from the owner's account address")
}

func TestNamedObjectAddress(t *testing.T) {
	creator := MustParseAddress("0xc1")

	a := NamedObjectAddress(creator, []byte("message_transmitter"))
	b := NamedObjectAddress(creator, []byte("token_messenger"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, NamedObjectAddress(creator, []byte("message_transmitter")))
}

func TestRawTransactionEncodeLayout(t *testing.T) {
	sender := MustParseAddress("0xa1")
	pkg := MustParseAddress("0xcc")
	var recipient [32]byte
	recipient[0] = 0xDD

	tx := &RawTransaction{
		Sender:                  sender,
		SequenceNumber:          42,
		Payload:                 BuildDepositForBurn(pkg, 100000, 5, recipient, MustParseAddress("0xee")),
		MaxGasAmount:            10000,
		GasUnitPrice:            100,
		ExpirationTimestampSecs: 1700000000,
		ChainID:                 1,
	}

	out := tx.Encode()
	assert.Equal(t, sender.Bytes(), out[0:32])
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(out[32:40]))
	// payload enum variant 2 = entry function
	assert.Equal(t, byte(2), out[40])
	// module address follows the variant
	assert.Equal(t, pkg.Bytes(), out[41:73])
	// tail: max gas, gas price, expiry, chain id
	n := len(out)
	assert.Equal(t, byte(1), out[n-1])
	assert.Equal(t, uint64(1700000000), binary.LittleEndian.Uint64(out[n-9:n-1]))
	assert.Equal(t, uint64(100), binary.LittleEndian.Uint64(out[n-17:n-9]))
	assert.Equal(t, uint64(10000), binary.LittleEndian.Uint64(out[n-25:n-17]))
}

func TestSigningMessageHasDomainPrefix(t *testing.T) {
	tx := &RawTransaction{Sender: MustParseAddress("0xa1"), ChainID: 1}
	msg := tx.SigningMessage()
	require.Greater(t, len(msg), 32)
	assert.Equal(t, tx.Encode(), msg[32:])
	// prefix is a fixed 32-byte hash, identical across transactions
	other := &RawTransaction{Sender: MustParseAddress("0xb2"), ChainID: 2}
	assert.Equal(t, msg[:32], other.SigningMessage()[:32])
}

func TestAccountSignTransaction(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	account := NewAccountFromSeed(seed)
	assert.Equal(t, account.Address(), AddressFromPublicKey(account.PublicKey()))

	raw := &RawTransaction{
		Sender:         account.Address(),
		SequenceNumber: 1,
		Payload:        BuildDepositForBurn(MustParseAddress("0xcc"), 1, 5, [32]byte{}, MustParseAddress("0xee")),
		MaxGasAmount:   1000,
		GasUnitPrice:   100,
		ChainID:        1,
	}

	signed, err := account.SignTransaction(raw)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(account.PublicKey(), raw.SigningMessage(), signed.Signature))

	encoded, err := signed.Encode()
	require.NoError(t, err)
	// raw txn, authenticator variant, length-prefixed pubkey and signature
	assert.Len(t, encoded, len(raw.Encode())+1+1+32+1+64)
}

func TestAccountRejectsForeignSender(t *testing.T) {
	account := NewAccountFromSeed(make([]byte, ed25519.SeedSize))
	raw := &RawTransaction{Sender: MustParseAddress("0x99"), ChainID: 1}

	_, err := account.SignTransaction(raw)
	assert.Error(t, err)
}

func TestHandleReceiveMessageRequiresPayload(t *testing.T) {
	pkg := MustParseAddress("0xcc")
	_, err := BuildHandleReceiveMessage(pkg, nil, []byte{1})
	assert.Error(t, err)
	_, err = BuildHandleReceiveMessage(pkg, []byte{1}, nil)
	assert.Error(t, err)

	fn, err := BuildHandleReceiveMessage(pkg, []byte{1, 2}, []byte{3})
	require.NoError(t, err)
	assert.Equal(t, "message_transmitter", fn.ModuleName)
	assert.Equal(t, "receive_message", fn.FunctionName)
	assert.Len(t, fn.Args, 2)
}
