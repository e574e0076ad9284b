package royalty

import "errors"

var (
	// ErrInvalidAmount indicates a total or percentage that cannot produce a share.
	ErrInvalidAmount = errors.New("royalty: invalid amount")

	// ErrInvalidDistribution indicates the distribution is missing required fields.
	ErrInvalidDistribution = errors.New("royalty: invalid distribution")

	// ErrAllocationMismatch indicates split percentages do not sum to 100.
	ErrAllocationMismatch = errors.New("royalty: split percentages must sum to 100")

	// ErrDuplicateRecipient indicates the same recipient appears in more than one split.
	ErrDuplicateRecipient = errors.New("royalty: duplicate recipient")

	// ErrEmptyRecipient indicates a split has no recipient address.
	ErrEmptyRecipient = errors.New("royalty: empty recipient address")

	// ErrSettlementFailed indicates the settler reported an unsuccessful settlement.
	ErrSettlementFailed = errors.New("royalty: settlement failed")

	// ErrNoShares indicates a share table with no holders.
	ErrNoShares = errors.New("royalty: no shareholdings")

	// ErrZeroShares indicates a holder with zero share units.
	ErrZeroShares = errors.New("royalty: zero share units")

	// ErrNilSettler indicates a distributor was built without a settler.
	ErrNilSettler = errors.New("royalty: nil settler")

	// ErrResultMismatch indicates a result does not account for its distribution's splits.
	ErrResultMismatch = errors.New("royalty: result does not match distribution")
)
