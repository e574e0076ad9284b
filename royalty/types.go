// Package royalty splits a royalty payment across recipients and settles
// each share independently through an external payment facilitator.
package royalty

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Role tags a recipient's relationship to the asset. It has no effect on
// how a share is computed or settled.
type Role string

// Recognized recipient roles.
const (
	RoleArtist    Role = "artist"
	RoleProducer  Role = "producer"
	RoleLabel     Role = "label"
	RolePublisher Role = "publisher"
	RoleWriter    Role = "writer"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleArtist, RoleProducer, RoleLabel, RolePublisher, RoleWriter:
		return true
	}
	return false
}

// Status is the lifecycle state of a distribution. The distributor never
// changes it; the caller that owns the distribution does.
type Status string

// Distribution statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// RoyaltySplit is one recipient's allocation.
type RoyaltySplit struct {
	RecipientAddress string          `json:"recipientAddress"` // address or paymail handle
	RecipientName    string          `json:"recipientName"`
	Percentage       decimal.Decimal `json:"percentage"` // 0-100
	Role             Role            `json:"role"`
}

// TransactionHash records the settlement hash paid to a recipient.
type TransactionHash struct {
	SplitIndex int    `json:"splitIndex"`
	Recipient  string `json:"recipient"`
	Hash       string `json:"hash"`
}

// RoyaltyDistribution is one payout event for an asset and period.
type RoyaltyDistribution struct {
	ID                string            `json:"id"`
	AssetID           string            `json:"assetId"`
	TotalAmount       decimal.Decimal   `json:"totalAmount"`
	Currency          string            `json:"currency"`
	Splits            []RoyaltySplit    `json:"splits"`
	Period            string            `json:"period"`
	Status            Status            `json:"status"`
	TransactionHashes []TransactionHash `json:"transactionHashes"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Transaction is a successfully settled share.
type Transaction struct {
	SplitIndex int             `json:"splitIndex"` // position in RoyaltyDistribution.Splits
	Recipient  string          `json:"recipient"`
	Hash       string          `json:"hash"`
	Amount     decimal.Decimal `json:"amount"`
}

// SplitError is a share that could not be settled.
type SplitError struct {
	SplitIndex int    `json:"splitIndex"` // position in RoyaltyDistribution.Splits
	Recipient  string `json:"recipient"`
	Error      string `json:"error"`
}

// DistributionResult partitions the splits of one distribution by outcome.
// Success is true only when Errors is empty; a partial payout reports false
// and the caller must inspect Transactions to see who was paid.
type DistributionResult struct {
	Success      bool          `json:"success"`
	Transactions []Transaction `json:"transactions"`
	Errors       []SplitError  `json:"errors"`
}

// Settlement is the request handed to a Settler for one share.
type Settlement struct {
	DistributionID     string
	SplitIndex         int
	Recipient          string // split's recipient as given
	DestinationAddress string // where funds go; differs from Recipient once resolved
	Amount             decimal.Decimal
	Currency           string
	Description        string
	AssetID            string
}

// IdempotencyKey identifies this share of this distribution, so a
// facilitator can reject a second payment of the same share.
func (s Settlement) IdempotencyKey() string {
	return s.DistributionID + ":" + strconv.Itoa(s.SplitIndex) + ":" + s.Recipient
}

// SettlementReceipt is what a Settler reports back. A receipt with
// Success false carries the facilitator's reason in Error.
type SettlementReceipt struct {
	Success         bool
	TransactionHash string
	Error           string
}
