package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/reserve"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/usecase"
)

// 帳戶位址被當成身分使用時，不能憑空增加餘額，也不能動用帳戶的 backing
func TestEngineRejectsRecordAddressAsDepositor(t *testing.T) {
	ctx := context.Background()
	store, err := NewAccountStore(nil)
	require.NoError(t, err)
	pool, err := NewValuePool(nil)
	require.NoError(t, err)
	engine := usecase.NewEngine(store, pool, reserve.NewCalculator(reserve.StaticRate(1)), nil)

	alice := testIdentity(1)
	bob := testIdentity(2)
	require.NoError(t, pool.Mint(ctx, alice.Address(), 1_000_000))
	require.NoError(t, pool.Mint(ctx, bob.Address(), 1_000_000))

	acct, err := engine.Create(ctx, uuid.New(), alice, "main")
	require.NoError(t, err)
	acct, err = engine.Deposit(ctx, uuid.New(), acct.Address, alice, 500)
	require.NoError(t, err)
	backingBefore := backing(t, pool, acct.Address)
	total := pool.Total()

	aliased := domain.Identity(acct.Address)

	_, err = engine.Deposit(ctx, uuid.New(), acct.Address, aliased, 500)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)

	other, err := engine.Create(ctx, uuid.New(), bob, "other")
	require.NoError(t, err)
	_, err = engine.Deposit(ctx, uuid.New(), other.Address, aliased, 500)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)

	_, err = engine.Withdraw(ctx, uuid.New(), acct.Address, aliased, 1)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	stored, err := store.Get(ctx, acct.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), stored.Balance)
	assert.Equal(t, backingBefore, backing(t, pool, acct.Address))
	assert.Equal(t, total, pool.Total())

	// owner 可以把存款全部領回
	got, err := engine.Withdraw(ctx, uuid.New(), acct.Address, alice, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Balance)
}
