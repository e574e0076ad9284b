package payout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bitfsorg/royalty-go/royalty"
	"github.com/bitfsorg/royalty-go/x402"
)

// Facilitator settles one request. *x402.Client implements it.
type Facilitator interface {
	Settle(ctx context.Context, req *x402.SettlementRequest, idempotencyKey string) (*x402.SettlementResponse, error)
}

// FacilitatorSettler settles royalty shares through an x402 facilitator.
type FacilitatorSettler struct {
	facilitator Facilitator
}

var _ royalty.Settler = (*FacilitatorSettler)(nil)

// NewFacilitatorSettler wraps f as a royalty.Settler.
func NewFacilitatorSettler(f Facilitator) (*FacilitatorSettler, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: facilitator", ErrNilParam)
	}
	return &FacilitatorSettler{facilitator: f}, nil
}

// Settle sends s to the facilitator. A refusal with a reason becomes an
// unsuccessful receipt carrying that reason unchanged; every other failure
// is returned as an error.
func (fs *FacilitatorSettler) Settle(ctx context.Context, s royalty.Settlement) (royalty.SettlementReceipt, error) {
	req := x402.NewSettlementRequest(s.DestinationAddress, s.Amount, s.Currency, s.Description, s.AssetID)
	resp, err := fs.facilitator.Settle(ctx, req, s.IdempotencyKey())
	if err != nil {
		if errors.Is(err, x402.ErrSettlementRejected) && resp != nil && resp.Error != "" {
			return royalty.SettlementReceipt{Success: false, Error: resp.Error}, nil
		}
		return royalty.SettlementReceipt{}, err
	}
	return royalty.SettlementReceipt{Success: true, TransactionHash: resp.TransactionHash}, nil
}

// RecipientResolver maps a split recipient to a payable address.
// *paymail.Resolver implements it.
type RecipientResolver interface {
	Resolve(ctx context.Context, recipient string) (string, error)
	Forget(ctx context.Context, recipient string) error
}

// ResolvingSettler resolves each recipient before handing the share to the
// next settler. A recipient that cannot be resolved fails its own split only.
type ResolvingSettler struct {
	resolver RecipientResolver
	next     royalty.Settler
	logger   *zap.Logger
}

var _ royalty.Settler = (*ResolvingSettler)(nil)

// NewResolvingSettler decorates next with recipient resolution.
func NewResolvingSettler(resolver RecipientResolver, next royalty.Settler, logger *zap.Logger) (*ResolvingSettler, error) {
	if resolver == nil {
		return nil, fmt.Errorf("%w: resolver", ErrNilParam)
	}
	if next == nil {
		return nil, fmt.Errorf("%w: settler", ErrNilParam)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolvingSettler{resolver: resolver, next: next, logger: logger}, nil
}

// Settle resolves s.Recipient into s.DestinationAddress and settles. When
// a resolved payment fails, the cached resolution is dropped so the next
// attempt asks the recipient's host again.
func (rs *ResolvingSettler) Settle(ctx context.Context, s royalty.Settlement) (royalty.SettlementReceipt, error) {
	addr, err := rs.resolver.Resolve(ctx, s.Recipient)
	if err != nil {
		return royalty.SettlementReceipt{}, err
	}
	s.DestinationAddress = addr

	receipt, err := rs.next.Settle(ctx, s)
	if addr != s.Recipient && (err != nil || !receipt.Success) {
		if ferr := rs.resolver.Forget(ctx, s.Recipient); ferr != nil {
			rs.logger.Warn("failed to drop cached recipient",
				zap.String("recipient", s.Recipient),
				zap.Error(ferr),
			)
		}
	}
	return receipt, err
}
