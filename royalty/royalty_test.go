package royalty

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "amount = %s, want %s", got, want)
}

func makeDistribution(total string, splits ...RoyaltySplit) *RoyaltyDistribution {
	return &RoyaltyDistribution{
		ID:          "dist-1",
		AssetID:     "asset-1",
		TotalAmount: dec(total),
		Currency:    "USDC",
		Splits:      splits,
		Period:      "Q3 2024",
		Status:      StatusPending,
	}
}

func split(addr string, pct string, role Role) RoyaltySplit {
	return RoyaltySplit{RecipientAddress: addr, RecipientName: addr, Percentage: dec(pct), Role: role}
}

// recordingSettler pays every recipient except those listed in fail.
type recordingSettler struct {
	mu    sync.Mutex
	calls []Settlement
	fail  map[string]error
	deny  map[string]string
}

func (r *recordingSettler) Settle(_ context.Context, s Settlement) (SettlementReceipt, error) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
	if err, ok := r.fail[s.Recipient]; ok {
		return SettlementReceipt{}, err
	}
	if reason, ok := r.deny[s.Recipient]; ok {
		return SettlementReceipt{Success: false, Error: reason}, nil
	}
	return SettlementReceipt{Success: true, TransactionHash: "0x" + s.Recipient}, nil
}

func newDistributor(t *testing.T, s Settler, opts ...Option) *Distributor {
	t.Helper()
	d, err := NewDistributor(s, opts...)
	require.NoError(t, err)
	return d
}

// --- ComputeShare tests ---

func TestComputeShare(t *testing.T) {
	tests := []struct {
		name  string
		total string
		pct   string
		want  string
	}{
		{"sixty percent", "1000", "60", "600"},
		{"forty percent", "1000", "40", "400"},
		{"whole", "250.50", "100", "250.5"},
		{"zero percent", "1000", "0", "0"},
		{"zero total", "0", "55", "0"},
		{"fractional percentage", "1000", "33.333", "333.33"},
		{"small total", "0.01", "50", "0.005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeShare(dec(tt.total), dec(tt.pct))
			require.NoError(t, err)
			assertAmount(t, tt.want, got)
		})
	}
}

func TestComputeShare_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		total string
		pct   string
	}{
		{"negative total", "-1", "50"},
		{"negative percentage", "100", "-0.01"},
		{"percentage over 100", "100", "100.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeShare(dec(tt.total), dec(tt.pct))
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

// --- ValidateSplits tests ---

func TestValidateSplits(t *testing.T) {
	tests := []struct {
		name    string
		splits  []RoyaltySplit
		wantErr error
	}{
		{"empty", nil, nil},
		{"full", []RoyaltySplit{split("a", "60", RoleArtist), split("b", "40", RoleProducer)}, nil},
		{"fractional full", []RoyaltySplit{split("a", "33.34", RoleArtist), split("b", "33.33", RoleWriter), split("c", "33.33", RoleLabel)}, nil},
		{"under", []RoyaltySplit{split("a", "60", RoleArtist), split("b", "30", RoleProducer)}, ErrAllocationMismatch},
		{"over", []RoyaltySplit{split("a", "60", RoleArtist), split("b", "41", RoleProducer)}, ErrAllocationMismatch},
		{"duplicate", []RoyaltySplit{split("a", "50", RoleArtist), split("a", "50", RoleWriter)}, ErrDuplicateRecipient},
		{"empty recipient", []RoyaltySplit{split(" ", "100", RoleArtist)}, ErrEmptyRecipient},
		{"negative", []RoyaltySplit{split("a", "110", RoleArtist), split("b", "-10", RoleProducer)}, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSplits(tt.splits)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleArtist, RoleProducer, RoleLabel, RolePublisher, RoleWriter} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("manager").Valid())
}

// --- DistributeRoyalties tests ---

func TestDistributeRoyalties_AllSucceed(t *testing.T) {
	settler := &recordingSettler{}
	d := newDistributor(t, settler)

	dist := makeDistribution("1000", split("artist", "60", RoleArtist), split("producer", "40", RoleProducer))
	res, err := d.DistributeRoyalties(context.Background(), dist)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, "artist", res.Transactions[0].Recipient)
	assert.Equal(t, "0xartist", res.Transactions[0].Hash)
	assertAmount(t, "600", res.Transactions[0].Amount)
	assert.Equal(t, "producer", res.Transactions[1].Recipient)
	assert.Equal(t, "0xproducer", res.Transactions[1].Hash)
	assertAmount(t, "400", res.Transactions[1].Amount)

	require.Len(t, settler.calls, 2)
	call := settler.calls[0]
	assert.Equal(t, "artist", call.DestinationAddress)
	assert.Equal(t, "USDC", call.Currency)
	assert.Equal(t, "asset-1", call.AssetID)
	assert.Contains(t, call.Description, "Q3 2024")
	assert.Contains(t, call.Description, "artist")
	assert.Equal(t, "dist-1:0:artist", call.IdempotencyKey())
	assert.Equal(t, "dist-1:1:producer", settler.calls[1].IdempotencyKey())
}

func TestDistributeRoyalties_OneFailureIsIsolated(t *testing.T) {
	settler := &recordingSettler{fail: map[string]error{
		"producer": errors.New("insufficient facilitator balance"),
	}}
	d := newDistributor(t, settler)

	dist := makeDistribution("1000", split("artist", "60", RoleArtist), split("producer", "40", RoleProducer))
	res, err := d.DistributeRoyalties(context.Background(), dist)
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "artist", res.Transactions[0].Recipient)
	assertAmount(t, "600", res.Transactions[0].Amount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, SplitError{SplitIndex: 1, Recipient: "producer", Error: "insufficient facilitator balance"}, res.Errors[0])
}

func TestDistributeRoyalties_FirstFailureDoesNotStopLater(t *testing.T) {
	settler := &recordingSettler{fail: map[string]error{"a": errors.New("boom")}}
	d := newDistributor(t, settler)

	dist := makeDistribution("10", split("a", "50", RoleArtist), split("b", "50", RoleWriter))
	res, err := d.DistributeRoyalties(context.Background(), dist)
	require.NoError(t, err)

	require.Len(t, settler.calls, 2, "both splits must be attempted")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "a", res.Errors[0].Recipient)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "b", res.Transactions[0].Recipient)
}

func TestDistributeRoyalties_ExplicitFailureReceipt(t *testing.T) {
	settler := &recordingSettler{deny: map[string]string{"b": "recipient blocked"}}
	d := newDistributor(t, settler)

	dist := makeDistribution("10", split("a", "50", RoleArtist), split("b", "50", RoleWriter))
	res, err := d.DistributeRoyalties(context.Background(), dist)
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "recipient blocked", res.Errors[0].Error)
}

func TestDistributeRoyalties_FailureReceiptWithoutReason(t *testing.T) {
	settler := SettlerFunc(func(context.Context, Settlement) (SettlementReceipt, error) {
		return SettlementReceipt{Success: false}, nil
	})
	d := newDistributor(t, settler)

	res, err := d.DistributeRoyalties(context.Background(), makeDistribution("10", split("a", "100", RoleArtist)))
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ErrSettlementFailed.Error(), res.Errors[0].Error)
}

func TestDistributeRoyalties_OrderPreserved(t *testing.T) {
	d := newDistributor(t, &recordingSettler{})

	dist := makeDistribution("300",
		split("A", "20", RoleArtist),
		split("B", "30", RoleProducer),
		split("C", "50", RoleLabel),
	)
	res, err := d.DistributeRoyalties(context.Background(), dist)
	require.NoError(t, err)

	var got []string
	for _, tx := range res.Transactions {
		got = append(got, tx.Recipient)
	}
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestDistributeRoyalties_EmptySplits(t *testing.T) {
	settler := &recordingSettler{}
	d := newDistributor(t, settler)

	res, err := d.DistributeRoyalties(context.Background(), makeDistribution("1000"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.NotNil(t, res.Transactions)
	assert.NotNil(t, res.Errors)
	assert.Empty(t, res.Transactions)
	assert.Empty(t, res.Errors)
	assert.Empty(t, settler.calls)
}

func TestDistributeRoyalties_RejectsUnbalancedSplits(t *testing.T) {
	settler := &recordingSettler{}
	d := newDistributor(t, settler)

	dist := makeDistribution("1000", split("a", "60", RoleArtist), split("b", "30", RoleProducer))
	res, err := d.DistributeRoyalties(context.Background(), dist)
	assert.ErrorIs(t, err, ErrAllocationMismatch)
	assert.Nil(t, res)
	assert.Empty(t, settler.calls, "no settlement may be attempted for rejected input")
}

func TestDistributeRoyalties_PermissiveAllocation(t *testing.T) {
	d := newDistributor(t, &recordingSettler{}, WithRequireFullAllocation(false))

	dist := makeDistribution("1000", split("a", "60", RoleArtist), split("b", "30", RoleProducer))
	res, err := d.DistributeRoyalties(context.Background(), dist)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assertAmount(t, "600", res.Transactions[0].Amount)
	assertAmount(t, "300", res.Transactions[1].Amount)
}

func TestDistributeRoyalties_InvalidAmountFailsOnlyThatSplit(t *testing.T) {
	settler := &recordingSettler{}
	d := newDistributor(t, settler, WithRequireFullAllocation(false))

	dist := makeDistribution("100", split("a", "150", RoleArtist), split("b", "50", RoleWriter))
	res, err := d.DistributeRoyalties(context.Background(), dist)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "a", res.Errors[0].Recipient)
	assert.Contains(t, res.Errors[0].Error, ErrInvalidAmount.Error())
	require.Len(t, res.Transactions, 1)
	require.Len(t, settler.calls, 1, "the invalid split must not reach the settler")
	assert.Equal(t, "b", settler.calls[0].Recipient)
}

func TestDistributeRoyalties_NegativeTotal(t *testing.T) {
	settler := &recordingSettler{}
	d := newDistributor(t, settler)

	res, err := d.DistributeRoyalties(context.Background(), makeDistribution("-5", split("a", "100", RoleArtist)))
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Empty(t, settler.calls)
}

func TestDistributeRoyalties_InvalidInput(t *testing.T) {
	d := newDistributor(t, &recordingSettler{})

	_, err := d.DistributeRoyalties(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidDistribution)

	dist := makeDistribution("10", split("a", "100", RoleArtist))
	dist.Currency = ""
	_, err = d.DistributeRoyalties(context.Background(), dist)
	assert.ErrorIs(t, err, ErrInvalidDistribution)
}

func TestDistributeRoyalties_CanceledContext(t *testing.T) {
	settler := &recordingSettler{}
	d := newDistributor(t, settler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dist := makeDistribution("10", split("a", "50", RoleArtist), split("b", "50", RoleWriter))
	res, err := d.DistributeRoyalties(ctx, dist)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 2)
	assert.Empty(t, settler.calls)
	assert.Equal(t, context.Canceled.Error(), res.Errors[0].Error)
}

func TestNewDistributor_NilSettler(t *testing.T) {
	_, err := NewDistributor(nil)
	assert.ErrorIs(t, err, ErrNilSettler)
}

// --- Partition property ---

func TestDistributeRoyalties_PartitionProperty(t *testing.T) {
	for n := 0; n <= 12; n++ {
		for failEvery := 1; failEvery <= 4; failEvery++ {
			t.Run(fmt.Sprintf("n=%d/fail=%d", n, failEvery), func(t *testing.T) {
				fail := map[string]error{}
				splits := make([]RoyaltySplit, n)
				for i := range splits {
					addr := fmt.Sprintf("r%02d", i)
					splits[i] = split(addr, "1", RoleWriter)
					if i%failEvery == 0 {
						fail[addr] = errors.New("nope")
					}
				}
				d := newDistributor(t, &recordingSettler{fail: fail}, WithRequireFullAllocation(false))
				dist := makeDistribution("500", splits...)

				res, err := d.DistributeRoyalties(context.Background(), dist)
				require.NoError(t, err)
				assert.Equal(t, n, len(res.Transactions)+len(res.Errors))
				assert.Equal(t, len(res.Errors) == 0, res.Success)
				assert.Len(t, res.Errors, len(fail))
				require.NoError(t, VerifyResult(dist, res))
			})
		}
	}
}

// --- Concurrent dispatch ---

func TestDistributeRoyalties_ConcurrentKeepsInputOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	var inFlight, peak atomic.Int32
	settler := SettlerFunc(func(_ context.Context, s Settlement) (SettlementReceipt, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		// Later splits finish first.
		time.Sleep(time.Duration(10-s.SplitIndex) * time.Millisecond)
		if s.SplitIndex == 3 {
			return SettlementReceipt{}, errors.New("split three fails")
		}
		return SettlementReceipt{Success: true, TransactionHash: fmt.Sprintf("h%d", s.SplitIndex)}, nil
	})
	d := newDistributor(t, settler, WithConcurrency(4))

	splits := make([]RoyaltySplit, 10)
	for i := range splits {
		splits[i] = split(fmt.Sprintf("r%d", i), "10", RoleArtist)
	}
	dist := makeDistribution("1000", splits...)

	res, err := d.DistributeRoyalties(context.Background(), dist)
	require.NoError(t, err)

	require.Len(t, res.Transactions, 9)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "r3", res.Errors[0].Recipient)
	for i, tx := range res.Transactions {
		want := i
		if i >= 3 {
			want = i + 1
		}
		assert.Equal(t, fmt.Sprintf("r%d", want), tx.Recipient)
		assert.Equal(t, fmt.Sprintf("h%d", want), tx.Hash)
	}
	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.Greater(t, peak.Load(), int32(1))
	require.NoError(t, VerifyResult(dist, res))
}

// --- Retry tests ---

func TestRetry_OnlyFailedSplits(t *testing.T) {
	settler := &recordingSettler{fail: map[string]error{"b": errors.New("timeout")}}
	d := newDistributor(t, settler)

	dist := makeDistribution("100",
		split("a", "50", RoleArtist),
		split("b", "30", RoleProducer),
		split("c", "20", RoleLabel),
	)
	first, err := d.DistributeRoyalties(context.Background(), dist)
	require.NoError(t, err)
	require.False(t, first.Success)

	failed, err := FailedSplits(dist, first)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].RecipientAddress)

	delete(settler.fail, "b")
	settler.calls = nil

	second, err := d.Retry(context.Background(), dist, first)
	require.NoError(t, err)
	assert.True(t, second.Success)
	require.Len(t, settler.calls, 1)
	assert.Equal(t, "b", settler.calls[0].Recipient)
	assert.Equal(t, 1, settler.calls[0].SplitIndex, "retry keeps the original split index")
	assertAmount(t, "30", second.Transactions[0].Amount)
}

func TestRetry_UnmatchedErrors(t *testing.T) {
	d := newDistributor(t, &recordingSettler{})
	dist := makeDistribution("100", split("a", "100", RoleArtist))
	prev := &DistributionResult{Errors: []SplitError{{Recipient: "zzz", Error: "x"}}}

	_, err := d.Retry(context.Background(), dist, prev)
	assert.ErrorIs(t, err, ErrResultMismatch)
}

func TestRetry_DuplicateRecipientsByIndex(t *testing.T) {
	var mu sync.Mutex
	calls := map[int]int{}
	failures := 2
	settler := SettlerFunc(func(_ context.Context, s Settlement) (SettlementReceipt, error) {
		mu.Lock()
		defer mu.Unlock()
		calls[s.SplitIndex]++
		if s.SplitIndex == 2 && failures > 0 {
			failures--
			return SettlementReceipt{}, errors.New("timeout")
		}
		return SettlementReceipt{Success: true, TransactionHash: fmt.Sprintf("0x%d", s.SplitIndex)}, nil
	})
	d := newDistributor(t, settler, WithRequireFullAllocation(false))

	dist := makeDistribution("100",
		split("a", "30", RoleArtist),
		split("b", "40", RoleProducer),
		split("a", "30", RoleWriter),
	)
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

	res, err := d.DistributeRoyalties(context.Background(), dist)
	require.NoError(t, err)
	require.Equal(t, []SplitError{{SplitIndex: 2, Recipient: "a", Error: "timeout"}}, res.Errors)
	ApplyResult(dist, res, now)

	for range 2 {
		res, err = d.Retry(context.Background(), dist, res)
		require.NoError(t, err)
		ApplyResult(dist, res, now)
	}

	assert.True(t, res.Success)
	assert.Equal(t, map[int]int{0: 1, 1: 1, 2: 3}, calls)
	assert.Equal(t, StatusCompleted, dist.Status)
	require.Len(t, dist.TransactionHashes, 3)
	assert.Equal(t, 2, dist.TransactionHashes[2].SplitIndex)
}

func TestRetry_SkipsSplitsAlreadyPaid(t *testing.T) {
	settler := &recordingSettler{}
	d := newDistributor(t, settler)
	dist := makeDistribution("100", split("a", "60", RoleArtist), split("b", "40", RoleWriter))
	dist.TransactionHashes = []TransactionHash{{SplitIndex: 1, Recipient: "b", Hash: "0xBBB"}}

	prev := &DistributionResult{Errors: []SplitError{
		{SplitIndex: 0, Recipient: "a", Error: "x"},
		{SplitIndex: 1, Recipient: "b", Error: "x"},
	}}
	res, err := d.Retry(context.Background(), dist, prev)
	require.NoError(t, err)
	require.Len(t, settler.calls, 1)
	assert.Equal(t, 0, settler.calls[0].SplitIndex)
	assert.True(t, res.Success)
}

func TestRetry_InvalidPreviousResult(t *testing.T) {
	d := newDistributor(t, &recordingSettler{})
	dist := makeDistribution("100", split("a", "60", RoleArtist), split("b", "40", RoleWriter))

	tests := []struct {
		name string
		errs []SplitError
	}{
		{"index out of range", []SplitError{{SplitIndex: 2, Recipient: "a"}}},
		{"negative index", []SplitError{{SplitIndex: -1, Recipient: "a"}}},
		{"recipient differs", []SplitError{{SplitIndex: 0, Recipient: "b"}}},
		{"repeated index", []SplitError{{SplitIndex: 1, Recipient: "b"}, {SplitIndex: 1, Recipient: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Retry(context.Background(), dist, &DistributionResult{Errors: tt.errs})
			assert.ErrorIs(t, err, ErrResultMismatch)
		})
	}
}

func TestApplyResult_SuccessWithUnpaidSplitIsFailed(t *testing.T) {
	dist := makeDistribution("100", split("a", "60", RoleArtist), split("b", "40", RoleWriter))
	ApplyResult(dist, &DistributionResult{
		Success:      true,
		Transactions: []Transaction{{SplitIndex: 0, Recipient: "a", Hash: "0xAAA", Amount: dec("60")}},
	}, time.Now())
	assert.Equal(t, StatusFailed, dist.Status)
}

// --- VerifyResult tests ---

func TestVerifyResult_Mismatches(t *testing.T) {
	dist := makeDistribution("100", split("a", "60", RoleArtist), split("b", "40", RoleWriter))

	tests := []struct {
		name string
		res  *DistributionResult
	}{
		{"missing outcome", &DistributionResult{Success: true, Transactions: []Transaction{{Recipient: "a", Amount: dec("60")}}}},
		{"wrong amount", &DistributionResult{Success: true, Transactions: []Transaction{
			{SplitIndex: 0, Recipient: "a", Amount: dec("60")}, {SplitIndex: 1, Recipient: "b", Amount: dec("41")},
		}}},
		{"success with errors", &DistributionResult{Success: true,
			Transactions: []Transaction{{SplitIndex: 0, Recipient: "a", Amount: dec("60")}},
			Errors:       []SplitError{{SplitIndex: 1, Recipient: "b", Error: "x"}},
		}},
		{"out of order", &DistributionResult{Success: true, Transactions: []Transaction{
			{SplitIndex: 1, Recipient: "b", Amount: dec("40")}, {SplitIndex: 0, Recipient: "a", Amount: dec("60")},
		}}},
		{"index names another recipient", &DistributionResult{Success: true, Transactions: []Transaction{
			{SplitIndex: 0, Recipient: "b", Amount: dec("40")}, {SplitIndex: 1, Recipient: "a", Amount: dec("60")},
		}}},
		{"index out of range", &DistributionResult{Success: true, Transactions: []Transaction{
			{SplitIndex: 0, Recipient: "a", Amount: dec("60")}, {SplitIndex: 2, Recipient: "b", Amount: dec("40")},
		}}},
		{"split in both lists", &DistributionResult{
			Transactions: []Transaction{{SplitIndex: 0, Recipient: "a", Amount: dec("60")}},
			Errors:       []SplitError{{SplitIndex: 0, Recipient: "a", Error: "x"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, VerifyResult(dist, tt.res), ErrResultMismatch)
		})
	}
}

// --- ApplyResult tests ---

func TestApplyResult(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	dist := makeDistribution("100", split("a", "60", RoleArtist), split("b", "40", RoleWriter))

	ApplyResult(dist, &DistributionResult{
		Transactions: []Transaction{{SplitIndex: 0, Recipient: "a", Hash: "0xAAA", Amount: dec("60")}},
		Errors:       []SplitError{{SplitIndex: 1, Recipient: "b", Error: "down"}},
	}, now)
	assert.Equal(t, StatusFailed, dist.Status)
	assert.Equal(t, []TransactionHash{{SplitIndex: 0, Recipient: "a", Hash: "0xAAA"}}, dist.TransactionHashes)
	assert.Equal(t, now, dist.UpdatedAt)

	ApplyResult(dist, &DistributionResult{
		Success:      true,
		Transactions: []Transaction{{SplitIndex: 1, Recipient: "b", Hash: "0xBBB", Amount: dec("40")}},
	}, now)
	assert.Equal(t, StatusCompleted, dist.Status)
	assert.Equal(t, map[string]string{"a": "0xAAA", "b": "0xBBB"}, PaidRecipients(dist))
}

// --- ComposeDerivative tests ---

func TestComposeDerivative(t *testing.T) {
	child := []RoyaltySplit{split("remixer", "80", RoleArtist), split("engineer", "20", RoleProducer)}
	parent := []RoyaltySplit{split("original", "70", RoleArtist), split("publisher", "30", RolePublisher)}

	got, err := ComposeDerivative(child, parent, dec("25"))
	require.NoError(t, err)
	require.Len(t, got, 4)

	want := map[string]string{"remixer": "60", "engineer": "15", "original": "17.5", "publisher": "7.5"}
	for _, s := range got {
		assertAmount(t, want[s.RecipientAddress], s.Percentage)
	}
	assert.NoError(t, ValidateSplits(got))
}

func TestComposeDerivative_SharedRecipientMerged(t *testing.T) {
	child := []RoyaltySplit{split("artist", "100", RoleArtist)}
	parent := []RoyaltySplit{split("artist", "50", RoleArtist), split("label", "50", RoleLabel)}

	got, err := ComposeDerivative(child, parent, dec("10"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assertAmount(t, "95", got[0].Percentage)
	assertAmount(t, "5", got[1].Percentage)
	assert.NoError(t, ValidateSplits(got))
}

func TestComposeDerivative_Invalid(t *testing.T) {
	full := []RoyaltySplit{split("a", "100", RoleArtist)}
	partial := []RoyaltySplit{split("a", "90", RoleArtist)}

	_, err := ComposeDerivative(full, full, dec("101"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ComposeDerivative(partial, full, dec("10"))
	assert.ErrorIs(t, err, ErrAllocationMismatch)

	_, err = ComposeDerivative(full, nil, dec("10"))
	assert.ErrorIs(t, err, ErrAllocationMismatch)
}

func TestSplitsFromShares(t *testing.T) {
	tests := []struct {
		name     string
		holdings []Shareholding
		places   int32
		want     []string
	}{
		{
			name:     "even",
			holdings: []Shareholding{{RecipientAddress: "a", Units: 50}, {RecipientAddress: "b", Units: 50}},
			places:   2,
			want:     []string{"50", "50"},
		},
		{
			name:     "thirds give last the remainder",
			holdings: []Shareholding{{RecipientAddress: "a", Units: 1}, {RecipientAddress: "b", Units: 1}, {RecipientAddress: "c", Units: 1}},
			places:   2,
			want:     []string{"33.33", "33.33", "33.34"},
		},
		{
			name:     "whole percentages",
			holdings: []Shareholding{{RecipientAddress: "a", Units: 2}, {RecipientAddress: "b", Units: 1}},
			places:   0,
			want:     []string{"66", "34"},
		},
		{
			name:     "single holder",
			holdings: []Shareholding{{RecipientAddress: "a", Units: 7}},
			places:   4,
			want:     []string{"100"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits, err := SplitsFromShares(tt.holdings, tt.places)
			require.NoError(t, err)
			require.Len(t, splits, len(tt.want))
			for i, w := range tt.want {
				assertAmount(t, w, splits[i].Percentage)
				assert.Equal(t, tt.holdings[i].RecipientAddress, splits[i].RecipientAddress)
			}
			assert.True(t, TotalPercentage(splits).Equal(dec("100")))
		})
	}
}

func TestSplitsFromShares_Invalid(t *testing.T) {
	_, err := SplitsFromShares(nil, 2)
	assert.ErrorIs(t, err, ErrNoShares)

	_, err = SplitsFromShares([]Shareholding{{RecipientAddress: "a", Units: 0}}, 2)
	assert.ErrorIs(t, err, ErrZeroShares)

	_, err = SplitsFromShares([]Shareholding{{RecipientAddress: " ", Units: 1}}, 2)
	assert.ErrorIs(t, err, ErrEmptyRecipient)

	_, err = SplitsFromShares([]Shareholding{
		{RecipientAddress: "a", Units: 1 << 63},
		{RecipientAddress: "b", Units: 1 << 63},
	}, 2)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = SplitsFromShares([]Shareholding{{RecipientAddress: "a", Units: 1}, {RecipientAddress: "a", Units: 1}}, 2)
	assert.ErrorIs(t, err, ErrDuplicateRecipient)
}

func TestSplitsFromShares_FeedsDistributor(t *testing.T) {
	splits, err := SplitsFromShares([]Shareholding{
		{RecipientAddress: "a", Units: 1, Role: RoleWriter},
		{RecipientAddress: "b", Units: 1, Role: RoleWriter},
		{RecipientAddress: "c", Units: 1, Role: RolePublisher},
	}, 2)
	require.NoError(t, err)

	d := newDistributor(t, &recordingSettler{})
	res, err := d.DistributeRoyalties(context.Background(), makeDistribution("300", splits...))
	require.NoError(t, err)
	require.True(t, res.Success)
	assertAmount(t, "99.99", res.Transactions[0].Amount)
	assertAmount(t, "99.99", res.Transactions[1].Amount)
	assertAmount(t, "100.02", res.Transactions[2].Amount)
}
