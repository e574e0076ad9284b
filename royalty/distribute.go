package royalty

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/bitfsorg/royalty-go/royalty"

// Settler transfers one share to its recipient. Implementations report a
// refused payment either as an error or as a receipt with Success false.
type Settler interface {
	Settle(ctx context.Context, s Settlement) (SettlementReceipt, error)
}

// SettlerFunc adapts a function to the Settler interface.
type SettlerFunc func(ctx context.Context, s Settlement) (SettlementReceipt, error)

// Settle calls f(ctx, s).
func (f SettlerFunc) Settle(ctx context.Context, s Settlement) (SettlementReceipt, error) {
	return f(ctx, s)
}

// Distributor turns a distribution into one settlement attempt per split.
// It keeps no state between calls and is safe for concurrent use.
type Distributor struct {
	settler     Settler
	concurrency int
	requireFull bool
	logger      *zap.Logger
	tracer      trace.Tracer
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithConcurrency sets how many settlements may be in flight at once.
// Values below 2 settle splits one at a time in input order.
func WithConcurrency(n int) Option {
	return func(d *Distributor) { d.concurrency = n }
}

// WithRequireFullAllocation controls whether split percentages must sum to
// 100 before any settlement is attempted. The default is true.
func WithRequireFullAllocation(require bool) Option {
	return func(d *Distributor) { d.requireFull = require }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Distributor) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Distributor) {
		if t != nil {
			d.tracer = t
		}
	}
}

// NewDistributor creates a Distributor that settles through settler.
func NewDistributor(settler Settler, opts ...Option) (*Distributor, error) {
	if settler == nil {
		return nil, ErrNilSettler
	}
	d := &Distributor{
		settler:     settler,
		concurrency: 1,
		requireFull: true,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// DistributeRoyalties settles every split of dist and returns the outcomes.
//
// Per-split failures never escape as an error: each split yields exactly one
// entry in either Transactions or Errors, in input order, and a failing
// split does not stop the rest. The returned error is reserved for input
// that is rejected before any settlement is attempted.
func (d *Distributor) DistributeRoyalties(ctx context.Context, dist *RoyaltyDistribution) (*DistributionResult, error) {
	if err := validateDistribution(dist); err != nil {
		return nil, err
	}
	if d.requireFull {
		if err := ValidateSplits(dist.Splits); err != nil {
			return nil, err
		}
	}
	indexes := make([]int, len(dist.Splits))
	for i := range indexes {
		indexes[i] = i
	}
	return d.distribute(ctx, dist, indexes), nil
}

// Retry settles only the splits that failed in prev. Splits that prev
// reports as paid, or that dist already holds a hash for, are never
// attempted again.
func (d *Distributor) Retry(ctx context.Context, dist *RoyaltyDistribution, prev *DistributionResult) (*DistributionResult, error) {
	if err := validateDistribution(dist); err != nil {
		return nil, err
	}
	indexes, err := failedIndexes(dist, prev)
	if err != nil {
		return nil, err
	}
	return d.distribute(ctx, dist, indexes), nil
}

// FailedSplits returns the splits of dist that prev recorded as errors and
// that have not been paid since.
func FailedSplits(dist *RoyaltyDistribution, prev *DistributionResult) ([]RoyaltySplit, error) {
	indexes, err := failedIndexes(dist, prev)
	if err != nil {
		return nil, err
	}
	splits := make([]RoyaltySplit, len(indexes))
	for i, idx := range indexes {
		splits[i] = dist.Splits[idx]
	}
	return splits, nil
}

// failedIndexes returns the split indexes prev recorded as errors, in
// ascending order, leaving out any split dist already holds a hash for.
// Recipients may repeat, so splits are identified by index only.
func failedIndexes(dist *RoyaltyDistribution, prev *DistributionResult) ([]int, error) {
	if dist == nil || prev == nil {
		return nil, fmt.Errorf("%w: nil distribution or result", ErrResultMismatch)
	}
	paid := paidIndexes(dist)
	seen := make(map[int]bool, len(prev.Errors))
	failed := make([]int, 0, len(prev.Errors))
	for _, e := range prev.Errors {
		if err := checkOutcome(dist, e.SplitIndex, e.Recipient); err != nil {
			return nil, err
		}
		if seen[e.SplitIndex] {
			return nil, fmt.Errorf("%w: split %d failed twice in one result", ErrResultMismatch, e.SplitIndex)
		}
		seen[e.SplitIndex] = true
		if paid[e.SplitIndex] {
			continue
		}
		failed = append(failed, e.SplitIndex)
	}
	slices.Sort(failed)
	return failed, nil
}

// checkOutcome reports whether idx names a split of dist paid to recipient.
func checkOutcome(dist *RoyaltyDistribution, idx int, recipient string) error {
	if idx < 0 || idx >= len(dist.Splits) {
		return fmt.Errorf("%w: split index %d out of range [0, %d)", ErrResultMismatch, idx, len(dist.Splits))
	}
	if got := dist.Splits[idx].RecipientAddress; got != recipient {
		return fmt.Errorf("%w: split %d is %s, outcome names %s", ErrResultMismatch, idx, got, recipient)
	}
	return nil
}

// outcome is the result of one split: a hash on success, otherwise a message.
type outcome struct {
	index     int
	recipient string
	amount    decimal.Decimal
	hash      string
	failure   string
	ok        bool
}

func (d *Distributor) distribute(ctx context.Context, dist *RoyaltyDistribution, indexes []int) *DistributionResult {
	ctx, span := d.tracer.Start(ctx, "royalty.Distribute", trace.WithAttributes(
		attribute.String("royalty.distribution_id", dist.ID),
		attribute.String("royalty.asset_id", dist.AssetID),
		attribute.String("royalty.currency", dist.Currency),
		attribute.Int("royalty.splits", len(indexes)),
	))
	defer span.End()

	outcomes := make([]outcome, len(indexes))
	if d.concurrency < 2 || len(indexes) < 2 {
		for slot, idx := range indexes {
			outcomes[slot] = d.settleSplit(ctx, dist, idx)
		}
	} else {
		// A plain group: one split failing must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(d.concurrency)
		for slot, idx := range indexes {
			g.Go(func() error {
				outcomes[slot] = d.settleSplit(ctx, dist, idx)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := &DistributionResult{
		Transactions: []Transaction{},
		Errors:       []SplitError{},
	}
	for _, o := range outcomes {
		if o.ok {
			res.Transactions = append(res.Transactions, Transaction{SplitIndex: o.index, Recipient: o.recipient, Hash: o.hash, Amount: o.amount})
		} else {
			res.Errors = append(res.Errors, SplitError{SplitIndex: o.index, Recipient: o.recipient, Error: o.failure})
		}
	}
	res.Success = len(res.Errors) == 0

	span.SetAttributes(
		attribute.Int("royalty.settled", len(res.Transactions)),
		attribute.Int("royalty.failed", len(res.Errors)),
	)
	if !res.Success {
		span.SetStatus(codes.Error, "partial distribution")
	}
	d.logger.Info("royalty distribution processed",
		zap.String("distribution_id", dist.ID),
		zap.String("asset_id", dist.AssetID),
		zap.Int("settled", len(res.Transactions)),
		zap.Int("failed", len(res.Errors)),
	)
	return res
}

func (d *Distributor) settleSplit(ctx context.Context, dist *RoyaltyDistribution, idx int) outcome {
	split := dist.Splits[idx]
	o := outcome{index: idx, recipient: split.RecipientAddress}

	amount, err := ComputeShare(dist.TotalAmount, split.Percentage)
	if err != nil {
		o.failure = err.Error()
		d.logFailure(dist, split, o.failure)
		return o
	}
	o.amount = amount

	if err := ctx.Err(); err != nil {
		o.failure = err.Error()
		d.logFailure(dist, split, o.failure)
		return o
	}

	ctx, span := d.tracer.Start(ctx, "royalty.Settle", trace.WithAttributes(
		attribute.String("royalty.recipient", split.RecipientAddress),
		attribute.String("royalty.role", string(split.Role)),
		attribute.String("royalty.amount", amount.String()),
	))
	defer span.End()

	d.logger.Debug("settling royalty share",
		zap.String("distribution_id", dist.ID),
		zap.String("recipient", split.RecipientAddress),
		zap.String("amount", amount.String()),
		zap.String("currency", dist.Currency),
	)
	receipt, err := d.settler.Settle(ctx, Settlement{
		DistributionID:     dist.ID,
		SplitIndex:         idx,
		Recipient:          split.RecipientAddress,
		DestinationAddress: split.RecipientAddress,
		Amount:             amount,
		Currency:           dist.Currency,
		Description:        describe(dist, split),
		AssetID:            dist.AssetID,
	})
	switch {
	case err != nil:
		o.failure = err.Error()
	case !receipt.Success:
		o.failure = receipt.Error
		if o.failure == "" {
			o.failure = ErrSettlementFailed.Error()
		}
	default:
		o.ok = true
		o.hash = receipt.TransactionHash
		span.SetAttributes(attribute.String("royalty.tx_hash", o.hash))
		return o
	}
	span.SetStatus(codes.Error, o.failure)
	d.logFailure(dist, split, o.failure)
	return o
}

func (d *Distributor) logFailure(dist *RoyaltyDistribution, split RoyaltySplit, reason string) {
	d.logger.Warn("royalty settlement failed",
		zap.String("distribution_id", dist.ID),
		zap.String("recipient", split.RecipientAddress),
		zap.String("error", reason),
	)
}

func describe(dist *RoyaltyDistribution, split RoyaltySplit) string {
	return fmt.Sprintf("Royalty payment for %s (%s)", dist.Period, split.Role)
}
