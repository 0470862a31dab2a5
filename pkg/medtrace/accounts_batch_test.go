package medtrace

import (
	"bytes"
	"crypto/ed25519"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medweb3/medtrace/pkg/solana"
	"github.com/medweb3/medtrace/pkg/solana/binary"
)

func TestBatchAccount_CreationLayout(t *testing.T) {
	p := filledKey(0x01)
	account := NewBatchAccount("LOT-A", p, 1_700_000_000)
	require.NoError(t, account.Validate())

	timestamp := []byte{0x00, 0xf1, 0x53, 0x65, 0x00, 0x00, 0x00, 0x00}

	var expected []byte
	expected = append(expected, 0x05, 0x00, 0x00, 0x00)
	expected = append(expected, []byte("LOT-A")...)
	expected = append(expected, p...)
	expected = append(expected, p...)
	expected = append(expected, timestamp...)
	expected = append(expected, 0x01, 0x00, 0x00, 0x00)
	expected = append(expected, p...)
	expected = append(expected, timestamp...)
	expected = append(expected, 0x01)

	encoded := account.Marshal()
	assert.Equal(t, expected, encoded)
	assert.Equal(t, account.Size(), len(encoded))
	assert.Equal(t, 486, GetBatchAccountSize(len("LOT-A")))
}

func TestBatchAccount_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		expected := randomAccount(r)
		require.NoError(t, expected.Validate())

		encoded := expected.Marshal()
		assert.LessOrEqual(t, len(encoded), GetBatchAccountSize(len(expected.BatchId)))

		var actual BatchAccount
		require.NoError(t, actual.Unmarshal(encoded))
		assert.Equal(t, expected, &actual)

		// Slot padding after the record is ignored.
		padded := make([]byte, GetBatchAccountSize(len(expected.BatchId)))
		copy(padded, encoded)
		actual = BatchAccount{}
		require.NoError(t, actual.Unmarshal(padded))
		assert.Equal(t, expected, &actual)
	}
}

func TestBatchAccount_UnmarshalMalformed(t *testing.T) {
	account := NewBatchAccount("LOT-B", filledKey(0x03), 42)
	encoded := account.Marshal()

	for i := 0; i < len(encoded); i++ {
		var decoded BatchAccount
		assert.Error(t, decoded.Unmarshal(encoded[:i]), "truncated at %d", i)
	}

	var decoded BatchAccount

	invalidUTF8 := append([]byte{}, encoded...)
	invalidUTF8[4] = 0xff
	assert.Error(t, decoded.Unmarshal(invalidUTF8))

	invalidBool := append([]byte{}, encoded...)
	invalidBool[len(invalidBool)-1] = 2
	assert.Error(t, decoded.Unmarshal(invalidBool))

	hugeLength := append([]byte{}, encoded...)
	copy(hugeLength, []byte{0xff, 0xff, 0xff, 0xff})
	err := decoded.Unmarshal(hugeLength)
	assert.Error(t, err)
	assert.ErrorIs(t, err, binary.ErrShortBuffer)

	hugeCount := append([]byte{}, encoded...)
	countOffset := 4 + 5 + 32 + 32 + 8
	copy(hugeCount[countOffset:], []byte{0xff, 0xff, 0xff, 0x7f})
	err = decoded.Unmarshal(hugeCount)
	assert.ErrorIs(t, err, ErrInvalidAccountData)

	assert.Error(t, decoded.Unmarshal(nil))
	assert.Error(t, decoded.Unmarshal(make([]byte, 3)))
}

func TestBatchAccount_Validate(t *testing.T) {
	p := filledKey(0x01)
	q := filledKey(0x02)

	valid := NewBatchAccount("LOT-A", p, 10)
	require.NoError(t, valid.Validate())

	for _, tc := range []struct {
		name   string
		mutate func(*BatchAccount)
	}{
		{"empty batch id", func(a *BatchAccount) { a.BatchId = "" }},
		{"long batch id", func(a *BatchAccount) { a.BatchId = strings.Repeat("x", MaxBatchIdLength+1) }},
		{"invalid utf-8", func(a *BatchAccount) { a.BatchId = string([]byte{0xc3, 0x28}) }},
		{"short key", func(a *BatchAccount) { a.Manufacturer = a.Manufacturer[:31] }},
		{"empty history", func(a *BatchAccount) { a.OwnershipHistory = nil }},
		{"wrong first owner", func(a *BatchAccount) { a.OwnershipHistory[0].Owner = q }},
		{"wrong first timestamp", func(a *BatchAccount) { a.OwnershipHistory[0].Timestamp = 11 }},
		{"current owner mismatch", func(a *BatchAccount) { a.CurrentOwner = q }},
		{"history too long", func(a *BatchAccount) {
			for len(a.OwnershipHistory) <= MaxHistoryEntries {
				a.OwnershipHistory = append(a.OwnershipHistory, OwnershipRecord{Owner: p, Timestamp: 10})
			}
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			account := valid.Clone()
			tc.mutate(account)
			assert.Error(t, account.Validate())
		})
	}

	account := valid.Clone()
	assert.NoError(t, ValidateBatchId(strings.Repeat("é", MaxBatchIdLength/2)))
	assert.Error(t, ValidateBatchId(strings.Repeat("é", MaxBatchIdLength/2+1)))
	assert.Equal(t, valid, account)
}

func TestBatchAccount_Clone(t *testing.T) {
	original := NewBatchAccount("LOT-A", filledKey(0x01), 10)
	cloned := original.Clone()
	assert.Equal(t, original, cloned)

	cloned.OwnershipHistory[0].Owner[0] = 0xff
	cloned.Manufacturer[0] = 0xff
	assert.Equal(t, byte(0x01), original.OwnershipHistory[0].Owner[0])
	assert.Equal(t, byte(0x01), original.Manufacturer[0])
}

func TestGetBatchAccount(t *testing.T) {
	account := NewBatchAccount("LOT-A", filledKey(0x01), 10)
	data := make([]byte, GetBatchAccountSize(len(account.BatchId)))
	copy(data, account.Marshal())

	info := &solana.AccountInfo{Key: filledKey(0x09), Owner: PROGRAM_ID, Data: data}
	actual, err := GetBatchAccount(info)
	require.NoError(t, err)
	assert.Equal(t, account, actual)
	assert.Contains(t, actual.String(), "batch_id=LOT-A")

	info.Owner = SYSTEM_PROGRAM_ID
	_, err = GetBatchAccount(info)
	assert.Equal(t, ErrInvalidProgram, err)

	info.Owner = PROGRAM_ID
	info.Data = data[:10]
	_, err = GetBatchAccount(info)
	assert.ErrorIs(t, err, ErrInvalidAccountData)
}

func randomAccount(r *rand.Rand) *BatchAccount {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-é漢"

	runes := []rune(alphabet)
	var sb strings.Builder
	for sb.Len() == 0 || r.Intn(8) != 0 {
		next := string(runes[r.Intn(len(runes))])
		if sb.Len()+len(next) > MaxBatchIdLength {
			break
		}
		sb.WriteString(next)
	}

	manufacturer := randomKey(r)
	createdAt := r.Int63n(2_000_000_000) - 1_000_000_000
	account := NewBatchAccount(sb.String(), manufacturer, createdAt)

	for i := r.Intn(MaxHistoryEntries); i > 0; i-- {
		owner := randomKey(r)
		account.OwnershipHistory = append(account.OwnershipHistory, OwnershipRecord{
			Owner:     owner,
			Timestamp: createdAt + r.Int63n(1_000_000),
		})
		account.CurrentOwner = owner
	}
	account.IsActive = r.Intn(2) == 0

	return account
}

func randomKey(r *rand.Rand) ed25519.PublicKey {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	r.Read(key)
	return key
}

func filledKey(b byte) ed25519.PublicKey {
	return ed25519.PublicKey(bytes.Repeat([]byte{b}, ed25519.PublicKeySize))
}
