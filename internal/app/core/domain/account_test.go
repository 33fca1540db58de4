package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity(b byte) Identity {
	var id Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func TestNewBankAccount(t *testing.T) {
	owner := testIdentity(1)
	acct, err := NewBankAccount(owner, "main")
	require.NoError(t, err)

	assert.Equal(t, uint64(0), acct.Balance)
	assert.Equal(t, owner, acct.Owner)
	assert.Equal(t, "main", acct.Name)
	assert.Equal(t, uint64(AccountSpace), acct.Space)
	assert.Equal(t, DeriveAddress(owner), acct.Address)
}

func TestNameCapacity(t *testing.T) {
	assert.Equal(t, 204, NameCapacity)

	_, err := NewBankAccount(testIdentity(1), strings.Repeat("x", NameCapacity))
	require.NoError(t, err)

	_, err = NewBankAccount(testIdentity(1), strings.Repeat("x", NameCapacity+1))
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestNameInvalidUTF8(t *testing.T) {
	_, err := NewBankAccount(testIdentity(1), "bad\xff")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.NotErrorIs(t, err, ErrNameTooLong)
}

func TestEncodeDecodeAccount(t *testing.T) {
	acct, err := NewBankAccount(testIdentity(7), "savings")
	require.NoError(t, err)
	acct.Balance = 1<<63 + 5

	data, err := EncodeAccount(acct)
	require.NoError(t, err)
	assert.Len(t, data, AccountSpace)

	got, err := DecodeAccount(data)
	require.NoError(t, err)
	assert.Equal(t, acct, got)
}

func TestEncodeFullName(t *testing.T) {
	acct, err := NewBankAccount(testIdentity(3), strings.Repeat("n", NameCapacity))
	require.NoError(t, err)

	data, err := EncodeAccount(acct)
	require.NoError(t, err)
	assert.Len(t, data, AccountSpace)

	got, err := DecodeAccount(data)
	require.NoError(t, err)
	assert.Equal(t, acct.Name, got.Name)
	assert.Equal(t, acct.Owner, got.Owner)
}

func TestDecodeAccountCorrupt(t *testing.T) {
	_, err := DecodeAccount([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptRecord)

	acct, err := NewBankAccount(testIdentity(2), "a")
	require.NoError(t, err)
	data, err := EncodeAccount(acct)
	require.NoError(t, err)

	bad := append([]byte(nil), data...)
	bad[0] ^= 0xff
	_, err = DecodeAccount(bad)
	assert.ErrorIs(t, err, ErrCorruptRecord)

	bad = append([]byte(nil), data...)
	bad[8] = 0xff
	bad[9] = 0xff
	_, err = DecodeAccount(bad)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestClone(t *testing.T) {
	acct, err := NewBankAccount(testIdentity(4), "c")
	require.NoError(t, err)
	c := acct.Clone()
	c.Balance = 99
	assert.Equal(t, uint64(0), acct.Balance)
}
