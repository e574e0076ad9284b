package x402

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// VerifySettlementTx checks that a settlement transaction contains an output
// paying at least minSatoshis to payTo, and that its ID equals expectedTxID
// when one is given.
//
// WARNING: This function does NOT verify input signatures or that the
// transaction was accepted by the network. It only confirms that the
// facilitator's reported hash and transaction agree with the request.
//
// Returns the transaction ID (TxID hex) on success.
func VerifySettlementTx(rawTx []byte, payTo string, minSatoshis uint64, expectedTxID string) (string, error) {
	if len(rawTx) == 0 {
		return "", fmt.Errorf("%w: empty raw transaction", ErrInvalidTx)
	}

	tx, err := transaction.NewTransactionFromBytes(rawTx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTx, err)
	}

	expectedAddr, err := script.NewAddressFromString(payTo)
	if err != nil {
		return "", fmt.Errorf("%w: invalid destination address: %w", ErrInvalidParams, err)
	}

	expectedPKH := []byte(expectedAddr.PublicKeyHash)
	if len(expectedPKH) == 0 {
		return "", fmt.Errorf("%w: empty public key hash from address", ErrInvalidParams)
	}

	txid := tx.TxID().String()
	if expectedTxID != "" && !strings.EqualFold(strings.TrimPrefix(expectedTxID, "0x"), txid) {
		return "", fmt.Errorf("%w: reported %s, transaction is %s", ErrTxIDMismatch, expectedTxID, txid)
	}

	var best uint64
	found := false
	for _, output := range tx.Outputs {
		if output.LockingScript == nil || !output.LockingScript.IsP2PKH() {
			continue
		}

		outputPKH, err := output.LockingScript.PublicKeyHash()
		if err != nil {
			continue
		}

		if !bytes.Equal(outputPKH, expectedPKH) {
			continue
		}

		found = true
		if output.Satoshis >= minSatoshis {
			return txid, nil
		}
		best = max(best, output.Satoshis)
	}

	if !found {
		return "", ErrNoMatchingOutput
	}
	return "", fmt.Errorf("%w: output has %d satoshis, need %d", ErrInsufficientPayment, best, minSatoshis)
}
