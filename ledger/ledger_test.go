package ledger

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/royalty-go/royalty"
)

func tempBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var base = time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

func testDistribution(id string, status royalty.Status, age int) *royalty.RoyaltyDistribution {
	return &royalty.RoyaltyDistribution{
		ID:          id,
		AssetID:     "asset-" + id,
		TotalAmount: decimal.RequireFromString("1000.50"),
		Currency:    "USDC",
		Splits: []royalty.RoyaltySplit{
			{RecipientAddress: "artist", RecipientName: "Artist", Percentage: decimal.NewFromInt(60), Role: royalty.RoleArtist},
			{RecipientAddress: "producer", RecipientName: "Producer", Percentage: decimal.NewFromInt(40), Role: royalty.RoleProducer},
		},
		Period:    "Q3 2024",
		Status:    status,
		CreatedAt: base.Add(time.Duration(age) * time.Minute),
		UpdatedAt: base.Add(time.Duration(age) * time.Minute),
	}
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("mem", func(t *testing.T) { fn(t, NewMemStore()) })
	t.Run("bolt", func(t *testing.T) { fn(t, tempBoltStore(t)) })
}

// ---------------------------------------------------------------------------
// Distribution tests
// ---------------------------------------------------------------------------

func TestStore_PutAndGet(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		d := testDistribution("d1", royalty.StatusPending, 0)
		require.NoError(t, s.PutDistribution(d))

		got, err := s.GetDistribution("d1")
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)
		assert.Equal(t, d.AssetID, got.AssetID)
		assert.True(t, d.TotalAmount.Equal(got.TotalAmount))
		assert.Equal(t, d.Currency, got.Currency)
		require.Len(t, got.Splits, 2)
		assert.Equal(t, "producer", got.Splits[1].RecipientAddress)
		assert.True(t, decimal.NewFromInt(40).Equal(got.Splits[1].Percentage))
		assert.Equal(t, royalty.RoleProducer, got.Splits[1].Role)
		assert.Equal(t, royalty.StatusPending, got.Status)
		assert.True(t, d.CreatedAt.Equal(got.CreatedAt))
	})
}

func TestStore_GetReturnsCopy(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		require.NoError(t, s.PutDistribution(testDistribution("d1", royalty.StatusPending, 0)))

		got, err := s.GetDistribution("d1")
		require.NoError(t, err)
		got.Splits[0].RecipientAddress = "mutated"
		got.Status = royalty.StatusFailed

		again, err := s.GetDistribution("d1")
		require.NoError(t, err)
		assert.Equal(t, "artist", again.Splits[0].RecipientAddress)
		assert.Equal(t, royalty.StatusPending, again.Status)
	})
}

func TestStore_Errors(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		d := testDistribution("d1", royalty.StatusPending, 0)
		require.NoError(t, s.PutDistribution(d))

		assert.ErrorIs(t, s.PutDistribution(d), ErrDuplicate)
		assert.ErrorIs(t, s.PutDistribution(nil), ErrNilParam)
		assert.ErrorIs(t, s.PutDistribution(&royalty.RoyaltyDistribution{ID: " "}), ErrInvalidID)

		_, err := s.GetDistribution("missing")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.UpdateDistribution(testDistribution("missing", royalty.StatusFailed, 0)), ErrNotFound)
		assert.ErrorIs(t, s.AppendAttempt(&Attempt{DistributionID: "missing"}), ErrNotFound)
		assert.ErrorIs(t, s.AppendAttempt(nil), ErrNilParam)

		_, err = s.Attempts("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_UpdateMovesStatus(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		d := testDistribution("d1", royalty.StatusPending, 0)
		require.NoError(t, s.PutDistribution(d))

		d.Status = royalty.StatusCompleted
		d.TransactionHashes = []royalty.TransactionHash{{Recipient: "artist", Hash: "0xAAA"}}
		require.NoError(t, s.UpdateDistribution(d))

		pending, err := s.ListByStatus(royalty.StatusPending)
		require.NoError(t, err)
		assert.Empty(t, pending)

		completed, err := s.ListByStatus(royalty.StatusCompleted)
		require.NoError(t, err)
		require.Len(t, completed, 1)
		assert.Equal(t, []royalty.TransactionHash{{Recipient: "artist", Hash: "0xAAA"}}, completed[0].TransactionHashes)
	})
}

func TestStore_ListByStatusOldestFirst(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		require.NoError(t, s.PutDistribution(testDistribution("c", royalty.StatusPending, 1)))
		require.NoError(t, s.PutDistribution(testDistribution("a", royalty.StatusPending, 3)))
		require.NoError(t, s.PutDistribution(testDistribution("b", royalty.StatusPending, 2)))
		require.NoError(t, s.PutDistribution(testDistribution("z", royalty.StatusFailed, 0)))
		// Same timestamp as "c": ties break on ID.
		require.NoError(t, s.PutDistribution(testDistribution("bb", royalty.StatusPending, 1)))

		got, err := s.ListByStatus(royalty.StatusPending)
		require.NoError(t, err)
		var ids []string
		for _, d := range got {
			ids = append(ids, d.ID)
		}
		assert.Equal(t, []string{"bb", "c", "b", "a"}, ids)

		failed, err := s.ListByStatus(royalty.StatusFailed)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "z", failed[0].ID)
	})
}

func TestStore_StatusPrefixIsolation(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		// "pending" must not match a hypothetical "pending2" status prefix.
		require.NoError(t, s.PutDistribution(testDistribution("x", royalty.Status("pending2"), 0)))
		got, err := s.ListByStatus(royalty.StatusPending)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

// ---------------------------------------------------------------------------
// Attempt tests
// ---------------------------------------------------------------------------

func TestStore_Attempts(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		require.NoError(t, s.PutDistribution(testDistribution("d1", royalty.StatusPending, 0)))
		require.NoError(t, s.PutDistribution(testDistribution("d10", royalty.StatusPending, 0)))

		for i := range 3 {
			a := &Attempt{
				DistributionID: "d1",
				Retry:          i > 0,
				StartedAt:      base.Add(time.Duration(i) * time.Hour),
				FinishedAt:     base.Add(time.Duration(i)*time.Hour + time.Second),
				Result: royalty.DistributionResult{
					Success:      i == 2,
					Transactions: []royalty.Transaction{{Recipient: "artist", Hash: fmt.Sprintf("0x%d", i), Amount: decimal.NewFromInt(600)}},
				},
			}
			require.NoError(t, s.AppendAttempt(a))
			assert.Equal(t, i+1, a.Number)
		}
		require.NoError(t, s.AppendAttempt(&Attempt{DistributionID: "d10"}))

		got, err := s.Attempts("d1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, a := range got {
			assert.Equal(t, i+1, a.Number)
			assert.Equal(t, i > 0, a.Retry)
			require.Len(t, a.Result.Transactions, 1)
			assert.Equal(t, fmt.Sprintf("0x%d", i), a.Result.Transactions[0].Hash)
			assert.True(t, decimal.NewFromInt(600).Equal(a.Result.Transactions[0].Amount))
		}
		assert.True(t, got[2].Result.Success)

		other, err := s.Attempts("d10")
		require.NoError(t, err)
		assert.Len(t, other, 1)

		none, err := s.Attempts("d1")
		require.NoError(t, err)
		assert.Len(t, none, 3)
	})
}

func TestBoltStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	s1, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.PutDistribution(testDistribution("d1", royalty.StatusFailed, 0)))
	require.NoError(t, s1.AppendAttempt(&Attempt{DistributionID: "d1"}))
	require.NoError(t, s1.Close())

	s2, err := OpenBoltStore(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	got, err := s2.ListByStatus(royalty.StatusFailed)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)

	attempts, err := s2.Attempts("d1")
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []byte("failed\x00d1"), statusKey(royalty.StatusFailed, "d1"))
	assert.Equal(t, []byte("d1\x00\x00\x00\x00\x02"), attemptKey("d1", 2))
	assert.Equal(t, []byte("d1\x00"), attemptPrefix("d1"))
}
