package royalty

import "time"

// ApplyResult records res on dist the way an owning caller should: each
// settled share's hash is appended to TransactionHashes and the status
// becomes completed once every split holds a hash, failed otherwise.
//
// When res comes from Retry, earlier hashes are kept, so a completed
// status always means every split has been paid exactly once.
func ApplyResult(dist *RoyaltyDistribution, res *DistributionResult, now time.Time) {
	if dist == nil || res == nil {
		return
	}
	for _, tx := range res.Transactions {
		dist.TransactionHashes = append(dist.TransactionHashes, TransactionHash{
			SplitIndex: tx.SplitIndex,
			Recipient:  tx.Recipient,
			Hash:       tx.Hash,
		})
	}
	if res.Success && allPaid(dist) {
		dist.Status = StatusCompleted
	} else {
		dist.Status = StatusFailed
	}
	dist.UpdatedAt = now.UTC()
}

// PaidRecipients returns the recipients that already have a transaction hash.
func PaidRecipients(dist *RoyaltyDistribution) map[string]string {
	paid := make(map[string]string, len(dist.TransactionHashes))
	for _, h := range dist.TransactionHashes {
		paid[h.Recipient] = h.Hash
	}
	return paid
}

// paidIndexes returns the split indexes dist holds a hash for.
func paidIndexes(dist *RoyaltyDistribution) map[int]bool {
	paid := make(map[int]bool, len(dist.TransactionHashes))
	for _, h := range dist.TransactionHashes {
		paid[h.SplitIndex] = true
	}
	return paid
}

func allPaid(dist *RoyaltyDistribution) bool {
	paid := paidIndexes(dist)
	for i := range dist.Splits {
		if !paid[i] {
			return false
		}
	}
	return true
}
