// Package payout owns the lifecycle of royalty distributions: it accepts
// them, runs the distributor over them, records every attempt and
// publishes the outcome.
package payout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitfsorg/royalty-go/events"
	"github.com/bitfsorg/royalty-go/ledger"
	"github.com/bitfsorg/royalty-go/royalty"
)

// Service moves distributions through pending, processing, completed and
// failed. It is safe for concurrent use within one process.
type Service struct {
	store       ledger.Store
	distributor *royalty.Distributor
	publisher   events.Publisher
	strict      bool
	now         func() time.Time
	logger      *zap.Logger

	mu sync.Mutex // serializes claiming a distribution for a run
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets where outcomes are published. The default drops them.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithStrictSplits controls whether Submit requires split percentages to
// sum to 100. The default is true.
func WithStrictSplits(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service persisting to store and paying through d.
func NewService(store ledger.Store, d *royalty.Distributor, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilParam)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: distributor", ErrNilParam)
	}
	s := &Service{
		store:       store,
		distributor: d,
		publisher:   events.NopPublisher{},
		strict:      true,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit records d as a new pending distribution. An empty ID is replaced
// with a random UUID; settlement hashes and timestamps are reset.
func (s *Service) Submit(ctx context.Context, d *royalty.RoyaltyDistribution) (*royalty.RoyaltyDistribution, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: distribution", ErrNilParam)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validate(d); err != nil {
		return nil, err
	}

	if strings.TrimSpace(d.ID) == "" {
		d.ID = uuid.NewString()
	}
	now := s.now().UTC()
	d.Status = royalty.StatusPending
	d.TransactionHashes = nil
	d.CreatedAt = now
	d.UpdatedAt = now

	if err := s.store.PutDistribution(d); err != nil {
		return nil, err
	}
	s.logger.Info("royalty distribution submitted",
		zap.String("distribution_id", d.ID),
		zap.String("asset_id", d.AssetID),
		zap.String("amount", d.TotalAmount.String()),
		zap.String("currency", d.Currency),
		zap.Int("splits", len(d.Splits)),
	)
	return d, nil
}

func (s *Service) validate(d *royalty.RoyaltyDistribution) error {
	if d.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: negative total %s", royalty.ErrInvalidAmount, d.TotalAmount)
	}
	if len(d.Splits) > 0 && strings.TrimSpace(d.Currency) == "" {
		return fmt.Errorf("%w: currency is required", royalty.ErrInvalidDistribution)
	}
	if s.strict {
		return royalty.ValidateSplits(d.Splits)
	}
	for i, sp := range d.Splits {
		if strings.TrimSpace(sp.RecipientAddress) == "" {
			return fmt.Errorf("%w: split %d", royalty.ErrEmptyRecipient, i)
		}
	}
	return nil
}

// Run settles a pending distribution, or the failed splits of a failed
// one, and records the outcome. Per-split failures are reported in the
// result and leave the distribution failed; the returned error is for
// distributions that could not be run at all.
func (s *Service) Run(ctx context.Context, id string) (*royalty.DistributionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, prev, err := s.claim(id, royalty.StatusPending, royalty.StatusFailed)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, d, prev)
}

// Retry settles only the splits that failed in the last attempt of a
// failed distribution.
func (s *Service) Retry(ctx context.Context, id string) (*royalty.DistributionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, prev, err := s.claim(id, royalty.StatusFailed)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, d, prev)
}

// claim moves a distribution in one of the allowed statuses to processing.
// For a failed distribution it also returns the last attempt's result.
func (s *Service) claim(id string, allowed ...royalty.Status) (*royalty.RoyaltyDistribution, *royalty.DistributionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.store.GetDistribution(id)
	if err != nil {
		return nil, nil, err
	}
	ok := false
	for _, st := range allowed {
		ok = ok || d.Status == st
	}
	if !ok {
		if len(allowed) == 1 && allowed[0] == royalty.StatusFailed {
			return nil, nil, fmt.Errorf("%w: %s is %s", ErrNotRetryable, id, d.Status)
		}
		return nil, nil, fmt.Errorf("%w: %s is %s", ErrNotRunnable, id, d.Status)
	}

	var prev *royalty.DistributionResult
	if d.Status == royalty.StatusFailed {
		attempts, err := s.store.Attempts(id)
		if err != nil {
			return nil, nil, err
		}
		if len(attempts) == 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoAttempts, id)
		}
		last := attempts[len(attempts)-1].Result
		prev = &last
	}

	d.Status = royalty.StatusProcessing
	d.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateDistribution(d); err != nil {
		return nil, nil, err
	}
	return d, prev, nil
}

func (s *Service) run(ctx context.Context, d *royalty.RoyaltyDistribution, prev *royalty.DistributionResult) (*royalty.DistributionResult, error) {
	started := s.now().UTC()
	retry := prev != nil

	var (
		res *royalty.DistributionResult
		err error
	)
	if retry {
		res, err = s.distributor.Retry(ctx, d, prev)
	} else {
		res, err = s.distributor.DistributeRoyalties(ctx, d)
	}
	if err != nil {
		// Nothing was attempted; release it in the status it was claimed from.
		d.Status = royalty.StatusPending
		if retry {
			d.Status = royalty.StatusFailed
		}
		d.UpdatedAt = s.now().UTC()
		if uerr := s.store.UpdateDistribution(d); uerr != nil {
			s.logger.Error("failed to release distribution", zap.String("distribution_id", d.ID), zap.Error(uerr))
		}
		return nil, err
	}

	royalty.ApplyResult(d, res, s.now())
	if err := s.store.UpdateDistribution(d); err != nil {
		return res, fmt.Errorf("payout: record result: %w", err)
	}
	if err := s.store.AppendAttempt(&ledger.Attempt{
		DistributionID: d.ID,
		Retry:          retry,
		StartedAt:      started,
		FinishedAt:     d.UpdatedAt,
		Result:         *res,
	}); err != nil {
		return res, fmt.Errorf("payout: record attempt: %w", err)
	}

	// The ledger is authoritative; a lost event is logged, not fatal.
	if err := s.publisher.PublishDistribution(ctx, d, res); err != nil {
		s.logger.Warn("failed to publish distribution event",
			zap.String("distribution_id", d.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("royalty distribution run finished",
		zap.String("distribution_id", d.ID),
		zap.String("status", string(d.Status)),
		zap.Bool("retry", retry),
		zap.Int("settled", len(res.Transactions)),
		zap.Int("failed", len(res.Errors)),
	)
	return res, nil
}

// RunPending runs every pending distribution, oldest first. It returns
// how many ran and how many of those ended with failed splits, and stops
// at the first distribution that cannot be run.
func (s *Service) RunPending(ctx context.Context) (ran, failed int, err error) {
	pending, err := s.store.ListByStatus(royalty.StatusPending)
	if err != nil {
		return 0, 0, err
	}
	for _, d := range pending {
		res, runErr := s.Run(ctx, d.ID)
		if runErr != nil {
			return ran, failed, fmt.Errorf("run %s: %w", d.ID, runErr)
		}
		ran++
		if !res.Success {
			failed++
		}
	}
	return ran, failed, nil
}

// ListPending returns pending distributions, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]*royalty.RoyaltyDistribution, error) {
	return s.List(ctx, royalty.StatusPending)
}

// List returns distributions with the given status, oldest first.
func (s *Service) List(ctx context.Context, status royalty.Status) ([]*royalty.RoyaltyDistribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListByStatus(status)
}

// Get returns a distribution by ID.
func (s *Service) Get(ctx context.Context, id string) (*royalty.RoyaltyDistribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.GetDistribution(id)
}

// Attempts returns the recorded attempts for a distribution in order.
func (s *Service) Attempts(ctx context.Context, id string) ([]*ledger.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.Attempts(id)
}
