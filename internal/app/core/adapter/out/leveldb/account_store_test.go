package leveldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
)

func testIdentity(b byte) domain.Identity {
	var id domain.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func newAccount(t *testing.T, owner byte, name string) *domain.BankAccount {
	t.Helper()
	acct, err := domain.NewBankAccount(testIdentity(owner), name)
	require.NoError(t, err)
	return acct
}

func TestLevelDBAccountStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	acct := newAccount(t, 1, "main")
	require.NoError(t, store.Create(ctx, acct, uuid.Nil))
	assert.ErrorIs(t, store.Create(ctx, acct, uuid.Nil), domain.ErrAccountAlreadyExists)

	got, err := store.Get(ctx, acct.Address)
	require.NoError(t, err)
	assert.Equal(t, acct, got)

	got.Balance = 1234
	require.NoError(t, store.Update(ctx, got, uuid.Nil))
	again, err := store.Get(ctx, acct.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), again.Balance)

	_, err = store.Get(ctx, testIdentity(8).Address())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.ErrorIs(t, store.Update(ctx, newAccount(t, 8, "x"), uuid.Nil), domain.ErrAccountNotFound)
}

func TestLevelDBList(t *testing.T) {
	ctx := context.Background()
	store, err := OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	for i := byte(1); i <= 4; i++ {
		require.NoError(t, store.Create(ctx, newAccount(t, i, "acct"), uuid.Nil))
	}
	// 非帳戶前綴的 key 不會被列出
	require.NoError(t, store.db.Put([]byte("meta/version"), []byte{1}, nil))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Address.String(), list[i].Address.String())
	}
}

func TestLevelDBReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.ldb")

	store, err := Open(path)
	require.NoError(t, err)
	acct := newAccount(t, 3, "persisted")
	acct.Balance = 77
	require.NoError(t, store.Create(ctx, acct, uuid.Nil))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get(ctx, acct.Address)
	require.NoError(t, err)
	assert.Equal(t, acct, got)
}

func TestLevelDBAppliedRefsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.ldb")

	store, err := Open(path)
	require.NoError(t, err)
	acct := newAccount(t, 5, "refs")
	createRef, depositRef := uuid.New(), uuid.New()
	require.NoError(t, store.Create(ctx, acct, createRef))
	acct.Balance = 9
	require.NoError(t, store.Update(ctx, acct, depositRef))
	// 失敗的寫入不留下 ref
	missingRef := uuid.New()
	assert.ErrorIs(t, store.Update(ctx, newAccount(t, 6, "x"), missingRef), domain.ErrAccountNotFound)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	refs, err := store.AppliedRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]domain.Address{
		createRef:  acct.Address,
		depositRef: acct.Address,
	}, refs)

	// ref 不會混進帳戶列表
	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
