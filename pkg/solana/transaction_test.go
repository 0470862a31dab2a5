package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Generated by the Solana SDK for a transfer-like instruction signed by a
// deterministic keypair.
//
// Source: https://github.com/solana-labs/solana/blob/14339dec0a960e8161d1165b6a8e5cfb73e78f23/sdk/src/transaction.rs#L523
const sdkGenerated = "ATMfBMZ8phHEheLph8K9TJhRKhnE4qNZvWiXdUdJRmlTCRsQjWmW2CkQJeRHBCcsqFm2gynjL40M9mTe0Dxp4QIBAAEDfEya6wnC7f3Cv53qnOEywwIJ928rIdqAlfXYI1adXroBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

func TestTransaction_CrossImpl(t *testing.T) {
	keypair := ed25519.NewKeyFromSeed([]byte{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75})
	programID := ed25519.PublicKey{2, 2, 2, 4, 5, 6, 7, 8, 9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 8, 7, 6, 5, 4,
		2, 2, 2}
	to := ed25519.PublicKey{1, 1, 1, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 8, 7, 6, 5, 4, 1, 1, 1}

	tx := NewTransaction(
		public(keypair),
		NewInstruction(
			programID,
			[]byte{1, 2, 3},
			NewAccountMeta(public(keypair), true),
			NewAccountMeta(to, false),
		),
	)
	require.NoError(t, tx.Sign(keypair))
	assert.Equal(t, sdkGenerated, base64.StdEncoding.EncodeToString(tx.Marshal()))

	decoded, err := base64.StdEncoding.DecodeString(sdkGenerated)
	require.NoError(t, err)

	var rtt Transaction
	require.NoError(t, rtt.Unmarshal(decoded))
	assert.Equal(t, tx.Message.Header, rtt.Message.Header)
	assert.Equal(t, tx.Message.Accounts, rtt.Message.Accounts)
	assert.Equal(t, tx.Signatures, rtt.Signatures)

	signers, err := rtt.VerifySignatures()
	require.NoError(t, err)
	require.Len(t, signers, 1)
	assert.Equal(t, public(keypair), signers[0])
}

func TestTransaction_AccountOrdering(t *testing.T) {
	keys := generateKeys(t, 2)
	payer := keys[0]
	program := keys[1]

	keys = generateKeys(t, 4)
	data := []byte{1, 2, 3}

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program),
			data,
			NewReadonlyAccountMeta(public(keys[0]), true),
			NewReadonlyAccountMeta(public(keys[1]), false),
			NewAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[3]), true),
		),
	)

	// Intentionally sign out of order to ensure ordering is fixed.
	require.NoError(t, tx.Sign(keys[0], keys[3], payer))

	require.Len(t, tx.Signatures, 3)
	require.Len(t, tx.Message.Accounts, 6)
	assert.EqualValues(t, 3, tx.Message.Header.NumSignatures)
	assert.EqualValues(t, 1, tx.Message.Header.NumReadonlySigned)
	assert.EqualValues(t, 2, tx.Message.Header.NumReadOnly)

	assert.Equal(t, public(payer), tx.Message.Accounts[0])
	assert.Equal(t, public(keys[3]), tx.Message.Accounts[1])
	assert.Equal(t, public(keys[0]), tx.Message.Accounts[2])
	assert.Equal(t, public(keys[2]), tx.Message.Accounts[3])
	assert.Equal(t, public(keys[1]), tx.Message.Accounts[4])
	assert.Equal(t, public(program), tx.Message.Accounts[5])

	assert.Equal(t, byte(5), tx.Message.Instructions[0].ProgramIndex)
	assert.Equal(t, data, tx.Message.Instructions[0].Data)
	assert.Equal(t, []byte{2, 4, 3, 1}, tx.Message.Instructions[0].Accounts)

	for i, expected := range []struct {
		signer   bool
		writable bool
	}{
		{true, true},
		{true, true},
		{true, false},
		{false, true},
		{false, false},
		{false, false},
	} {
		assert.Equal(t, expected.signer, tx.Message.IsSigner(i), i)
		assert.Equal(t, expected.writable, tx.Message.IsWritable(i), i)
	}

	signers, err := tx.VerifySignatures()
	require.NoError(t, err)
	assert.Equal(t, tx.Message.Accounts[:3], signers)
}

func TestTransaction_DuplicateKeysPromotePermissions(t *testing.T) {
	keys := generateKeys(t, 3)
	payer := keys[0]
	program := keys[1]
	shared := keys[2]

	tx := NewTransaction(
		public(payer),
		NewInstruction(public(program), nil, NewReadonlyAccountMeta(public(shared), false)),
		NewInstruction(public(program), nil, NewAccountMeta(public(shared), true)),
	)

	require.Len(t, tx.Message.Accounts, 3)
	assert.EqualValues(t, 2, tx.Message.Header.NumSignatures)
	assert.EqualValues(t, 0, tx.Message.Header.NumReadonlySigned)
	assert.EqualValues(t, 1, tx.Message.Header.NumReadOnly)
	assert.Equal(t, public(shared), tx.Message.Accounts[1])
	assert.True(t, tx.Message.IsWritable(1))
}

func TestTransaction_VerifySignatures(t *testing.T) {
	keys := generateKeys(t, 3)

	tx := NewTransaction(
		public(keys[0]),
		NewInstruction(public(keys[1]), []byte{1}, NewAccountMeta(public(keys[2]), true)),
	)

	_, err := tx.VerifySignatures()
	assert.Error(t, err)

	require.NoError(t, tx.Sign(keys[0]))
	_, err = tx.VerifySignatures()
	assert.Error(t, err)

	require.NoError(t, tx.Sign(keys[2]))
	signers, err := tx.VerifySignatures()
	require.NoError(t, err)
	assert.Len(t, signers, 2)

	tx.Message.Instructions[0].Data = []byte{2}
	_, err = tx.VerifySignatures()
	assert.Error(t, err)

	assert.Error(t, tx.Sign(keys[1]))
}

func TestTransaction_InvalidAccounts(t *testing.T) {
	keys := generateKeys(t, 2)

	tx := NewTransaction(
		public(keys[0]),
		NewInstruction(
			public(keys[1]),
			nil,
			NewAccountMeta(public(keys[0]), true),
		),
	)
	tx.Message.Instructions[0].ProgramIndex = 2
	assert.Error(t, tx.Unmarshal(tx.Marshal()))

	tx = NewTransaction(
		public(keys[0]),
		NewInstruction(
			public(keys[1]),
			nil,
			NewAccountMeta(public(keys[0]), true),
		),
	)
	tx.Message.Instructions[0].Accounts = []byte{2}
	assert.Error(t, tx.Unmarshal(tx.Marshal()))

	tx = NewTransaction(
		public(keys[0]),
		NewInstruction(
			public(keys[1]),
			nil,
		),
	)
	tx.Message.Instructions[0].ProgramIndex = 0
	assert.Error(t, tx.Unmarshal(tx.Marshal()))
}

func TestTransaction_EmptyAccount(t *testing.T) {
	keys := generateKeys(t, 2)

	tx := NewTransaction(
		public(keys[0]),
		NewInstruction(
			public(keys[1]),
			[]byte{1, 2, 3},
			NewAccountMeta(nil, false),
		),
	)
	require.NoError(t, tx.Sign(keys[0]))

	var rtt Transaction
	require.NoError(t, rtt.Unmarshal(tx.Marshal()))
	assert.Equal(t, make(ed25519.PublicKey, ed25519.PublicKeySize), rtt.Message.Accounts[1])
}

func TestCompactLen(t *testing.T) {
	for _, tc := range []struct {
		val     int
		encoded []byte
	}{
		{0x0, []byte{0x0}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x80, 0x01}},
		{0xff, []byte{0xff, 0x01}},
		{0x100, []byte{0x80, 0x02}},
		{0x7fff, []byte{0xff, 0xff, 0x01}},
		{0xffff, []byte{0xff, 0xff, 0x03}},
	} {
		var b bytesWriter
		require.NoError(t, putCompactLen(&b, tc.val))
		assert.Equal(t, tc.encoded, []byte(b))

		r := bytesReader(tc.encoded)
		actual, err := getCompactLen(&r)
		require.NoError(t, err)
		assert.Equal(t, tc.val, actual)
	}

	var b bytesWriter
	assert.Error(t, putCompactLen(&b, 0x10000))

	r := bytesReader([]byte{0x80, 0x80, 0x80, 0x01})
	_, err := getCompactLen(&r)
	assert.Error(t, err)
}

type bytesWriter []byte

func (w *bytesWriter) WriteByte(c byte) error {
	*w = append(*w, c)
	return nil
}

type bytesReader []byte

func (r *bytesReader) ReadByte() (byte, error) {
	if len(*r) == 0 {
		return 0, io.EOF
	}
	c := (*r)[0]
	*r = (*r)[1:]
	return c, nil
}

func public(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}

func generateKeys(t *testing.T, amount int) []ed25519.PrivateKey {
	keys := make([]ed25519.PrivateKey, amount)

	for i := 0; i < amount; i++ {
		_, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = priv
	}

	return keys
}
