package txpool

import (
	"testing"
	"time"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/inter/accountpk"
	"github.com/rony4d/go-powchain/ledger"
	"github.com/rony4d/go-powchain/logger"
)

type testView struct {
	*ledger.State
	confirmed map[hash.Hash]bool
}

func (v *testView) Confirmed(id hash.Hash) bool {
	return v.confirmed[id]
}

func newView(t *testing.T, funded map[accountpk.PubKey]int64) *testView {
	st := ledger.New()
	for pk, amount := range funded {
		require.NoError(t, st.Apply(inter.NewCoinbase(pk, amount, 0)))
	}
	return &testView{State: st, confirmed: map[hash.Hash]bool{}}
}

func transfer(t *testing.T, from, to uint64, amount int64, nonce uint64) *inter.Transfer {
	priv, fromPk := crypto.FakeAccount(from)
	_, toPk := crypto.FakeAccount(to)
	tx, err := inter.NewTransferWithNonce(crypto.Default, priv, fromPk, toPk, amount, nonce)
	require.NoError(t, err)
	return tx
}

func account(n uint64) accountpk.PubKey {
	_, pk := crypto.FakeAccount(n)
	return pk
}

func newPool(config Config, clk clock.Clock) *Pool {
	return New(config, crypto.Default, clk, logger.Discard())
}

func TestAddErrors(t *testing.T) {
	view := newView(t, map[accountpk.PubKey]int64{account(1): 50})

	tampered := transfer(t, 1, 2, 10, 1)
	tampered.Amount = 20

	zero := transfer(t, 1, 2, 10, 2)
	zero.Amount = 0

	tests := []struct {
		name string
		tx   inter.Transaction
		err  error
	}{
		{"coinbase", inter.NewCoinbase(account(1), 50, 1), inter.ErrInvalidCoinbase},
		{"zero amount", zero, inter.ErrInvalidAmount},
		{"tampered", tampered, inter.ErrInvalidSignature},
		{"overspend", transfer(t, 1, 2, 1000, 3), inter.ErrInsufficientFunds},
		{"unfunded sender", transfer(t, 3, 2, 1, 4), inter.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newPool(DefaultConfig(), nil)
			require.ErrorIs(t, pool.Add(tt.tx, view), tt.err)
			require.Zero(t, pool.Len())
		})
	}
}

func TestDuplicate(t *testing.T) {
	require := require.New(t)

	view := newView(t, map[accountpk.PubKey]int64{account(1): 50})
	pool := newPool(DefaultConfig(), nil)

	tx := transfer(t, 1, 2, 10, 1)
	require.NoError(pool.Add(tx, view))
	require.ErrorIs(pool.Add(tx, view), inter.ErrDuplicateTransaction)
	require.Equal(1, pool.Len())
	require.Equal(int64(10), pool.PendingDebit(account(1)))

	confirmed := transfer(t, 1, 2, 10, 2)
	view.confirmed[confirmed.ID()] = true
	require.ErrorIs(pool.Add(confirmed, view), inter.ErrDuplicateTransaction)
	require.Equal(1, pool.Len())
}

func TestNetsPendingDebits(t *testing.T) {
	require := require.New(t)

	view := newView(t, map[accountpk.PubKey]int64{account(1): 50})
	pool := newPool(DefaultConfig(), nil)

	require.NoError(pool.Add(transfer(t, 1, 2, 30, 1), view))
	require.ErrorIs(pool.Add(transfer(t, 1, 2, 30, 2), view), inter.ErrInsufficientFunds)
	require.NoError(pool.Add(transfer(t, 1, 2, 20, 3), view))

	// account 2 only has pending credits
	require.ErrorIs(pool.Add(transfer(t, 2, 1, 5, 4), view), inter.ErrInsufficientFunds)
	require.Equal(2, pool.Len())
}

func TestSlots(t *testing.T) {
	require := require.New(t)

	view := newView(t, map[accountpk.PubKey]int64{account(1): 50, account(2): 50})
	pool := newPool(Config{GlobalSlots: 3, AccountSlots: 2}, nil)

	require.NoError(pool.Add(transfer(t, 1, 3, 1, 1), view))
	require.NoError(pool.Add(transfer(t, 1, 3, 1, 2), view))
	require.ErrorIs(pool.Add(transfer(t, 1, 3, 1, 3), view), ErrAccountOverflow)
	require.NoError(pool.Add(transfer(t, 2, 3, 1, 4), view))
	require.ErrorIs(pool.Add(transfer(t, 2, 3, 1, 5), view), ErrTxPoolOverflow)
}

func TestSanitize(t *testing.T) {
	pool := newPool(Config{GlobalSlots: 0, AccountSlots: -1, Lifetime: -time.Second}, nil)
	require.Equal(t, DefaultConfig().GlobalSlots, pool.config.GlobalSlots)
	require.Equal(t, DefaultConfig().AccountSlots, pool.config.AccountSlots)
	require.Zero(t, pool.config.Lifetime)
}

func TestRemoveIncluded(t *testing.T) {
	require := require.New(t)

	view := newView(t, map[accountpk.PubKey]int64{account(1): 50})
	pool := newPool(DefaultConfig(), nil)

	a, b, c := transfer(t, 1, 2, 1, 1), transfer(t, 1, 2, 2, 2), transfer(t, 1, 2, 3, 3)
	for _, tx := range []*inter.Transfer{a, b, c} {
		require.NoError(pool.Add(tx, view))
	}

	block := inter.Assemble(hash.Hash{}, 1, inter.NewCoinbase(account(9), 50, 1), []*inter.Transfer{b}, 0)
	pool.RemoveIncluded(block)

	require.Equal([]*inter.Transfer{a, c}, pool.Pending(-1))
	require.False(pool.Has(b.ID()))
	require.Equal(int64(4), pool.PendingDebit(account(1)))
}

func TestRevalidate(t *testing.T) {
	require := require.New(t)

	view := newView(t, map[accountpk.PubKey]int64{account(1): 50, account(2): 50})
	pool := newPool(DefaultConfig(), nil)

	a1, a2 := transfer(t, 1, 3, 20, 1), transfer(t, 1, 3, 20, 2)
	b1 := transfer(t, 2, 3, 10, 3)
	for _, tx := range []*inter.Transfer{a1, b1, a2} {
		require.NoError(pool.Add(tx, view))
	}

	// a competing block confirmed b1 and spent 20 of account 1
	view.confirmed[b1.ID()] = true
	require.NoError(view.Apply(transfer(t, 1, 4, 20, 9)))

	require.Equal(2, pool.Revalidate(view))
	require.Equal([]*inter.Transfer{a1}, pool.Pending(-1))
	require.Equal(int64(20), pool.PendingDebit(account(1)))
	require.Zero(pool.PendingDebit(account(2)))
}

func TestLifetime(t *testing.T) {
	require := require.New(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewTestClock(start)
	view := newView(t, map[accountpk.PubKey]int64{account(1): 50})
	pool := newPool(Config{GlobalSlots: 10, AccountSlots: 10, Lifetime: time.Hour}, clk)

	old := transfer(t, 1, 2, 1, 1)
	require.NoError(pool.Add(old, view))
	clk.SetTime(start.Add(45 * time.Minute))
	fresh := transfer(t, 1, 2, 1, 2)
	require.NoError(pool.Add(fresh, view))

	clk.SetTime(start.Add(90 * time.Minute))
	require.Equal(1, pool.Revalidate(view))
	require.Equal([]*inter.Transfer{fresh}, pool.Pending(-1))
}

func TestSnapshot(t *testing.T) {
	require := require.New(t)

	view := newView(t, map[accountpk.PubKey]int64{account(1): 50})
	pool := newPool(DefaultConfig(), nil)

	var want []*inter.Transfer
	for i := uint64(0); i < 5; i++ {
		tx := transfer(t, 1, 2, 1, i)
		require.NoError(pool.Add(tx, view))
		want = append(want, tx)
	}

	snap := pool.Snapshot()
	require.NoError(pool.Add(transfer(t, 1, 2, 1, 99), view))

	for round := 0; round < 2; round++ {
		var got []*inter.Transfer
		for tx := range snap {
			got = append(got, tx)
		}
		require.Equal(want, got)
	}

	var first []*inter.Transfer
	for tx := range snap {
		first = append(first, tx)
		if len(first) == 2 {
			break
		}
	}
	require.Equal(want[:2], first)
	require.Len(pool.Pending(3), 3)
}

func TestReinject(t *testing.T) {
	require := require.New(t)

	view := newView(t, map[accountpk.PubKey]int64{account(1): 50})
	pool := newPool(DefaultConfig(), nil)

	ok := transfer(t, 1, 2, 30, 1)
	over := transfer(t, 1, 2, 30, 2)
	require.Equal(1, pool.Reinject([]*inter.Transfer{ok, over, ok}, view))
	require.True(pool.Has(ok.ID()))
}
