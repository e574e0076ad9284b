package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/royalty-go/royalty"
)

var (
	bucketDistributions = []byte("distributions")
	bucketStatusIndex   = []byte("status_index")
	bucketAttempts      = []byte("attempts")
)

// keySep separates the parts of composite keys. IDs never contain it.
const keySep = 0x00

// BoltStore persists distributions in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDistributions, bucketStatusIndex, bucketAttempts} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// statusKey is status + sep + id, so one status is a key prefix.
func statusKey(status royalty.Status, id string) []byte {
	k := make([]byte, 0, len(status)+1+len(id))
	k = append(k, status...)
	k = append(k, keySep)
	return append(k, id...)
}

// attemptKey is id + sep + 4-byte big-endian attempt number.
func attemptKey(id string, n int) []byte {
	k := make([]byte, 0, len(id)+5)
	k = append(k, id...)
	k = append(k, keySep)
	return binary.BigEndian.AppendUint32(k, uint32(n))
}

func attemptPrefix(id string) []byte {
	return append([]byte(id), keySep)
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// PutDistribution stores a new distribution. Returns ErrDuplicate if the ID exists.
func (s *BoltStore) PutDistribution(d *royalty.RoyaltyDistribution) error {
	if err := checkDistribution(d); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDistributions)
		if b.Get([]byte(d.ID)) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicate, d.ID)
		}
		return putDistribution(tx, d)
	})
}

func putDistribution(tx *bbolt.Tx, d *royalty.RoyaltyDistribution) error {
	data, err := encodeGob(d)
	if err != nil {
		return fmt.Errorf("encode distribution: %w", err)
	}
	if err := tx.Bucket(bucketDistributions).Put([]byte(d.ID), data); err != nil {
		return fmt.Errorf("boltstore: put distribution: %w", err)
	}
	if err := tx.Bucket(bucketStatusIndex).Put(statusKey(d.Status, d.ID), []byte{}); err != nil {
		return fmt.Errorf("boltstore: put status index: %w", err)
	}
	return nil
}

func getDistribution(tx *bbolt.Tx, id string) (*royalty.RoyaltyDistribution, error) {
	data := tx.Bucket(bucketDistributions).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var d royalty.RoyaltyDistribution
	if err := decodeGob(data, &d); err != nil {
		return nil, fmt.Errorf("boltstore: decode distribution: %w", err)
	}
	return &d, nil
}

// GetDistribution retrieves a distribution by ID.
func (s *BoltStore) GetDistribution(id string) (*royalty.RoyaltyDistribution, error) {
	var d *royalty.RoyaltyDistribution
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		d, err = getDistribution(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDistribution overwrites an existing distribution and moves its
// status index entry.
func (s *BoltStore) UpdateDistribution(d *royalty.RoyaltyDistribution) error {
	if err := checkDistribution(d); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		old, err := getDistribution(tx, d.ID)
		if err != nil {
			return err
		}
		if old.Status != d.Status {
			if err := tx.Bucket(bucketStatusIndex).Delete(statusKey(old.Status, old.ID)); err != nil {
				return fmt.Errorf("boltstore: delete status index: %w", err)
			}
		}
		return putDistribution(tx, d)
	})
}

// ListByStatus returns distributions with the given status, oldest first.
func (s *BoltStore) ListByStatus(status royalty.Status) ([]*royalty.RoyaltyDistribution, error) {
	prefix := statusKey(status, "")

	var out []*royalty.RoyaltyDistribution
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketStatusIndex).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			d, err := getDistribution(tx, string(k[len(prefix):]))
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list by status: %w", err)
	}
	sortOldestFirst(out)
	return out, nil
}

// AppendAttempt records an attempt and assigns its number.
func (s *BoltStore) AppendAttempt(a *Attempt) error {
	if a == nil {
		return fmt.Errorf("%w: attempt", ErrNilParam)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketDistributions).Get([]byte(a.DistributionID)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, a.DistributionID)
		}

		b := tx.Bucket(bucketAttempts)
		prefix := attemptPrefix(a.DistributionID)
		n := 0
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			n++
		}
		a.Number = n + 1

		data, err := encodeGob(a)
		if err != nil {
			return fmt.Errorf("encode attempt: %w", err)
		}
		if err := b.Put(attemptKey(a.DistributionID, a.Number), data); err != nil {
			return fmt.Errorf("boltstore: put attempt: %w", err)
		}
		return nil
	})
}

// Attempts returns the attempts for a distribution in order.
func (s *BoltStore) Attempts(id string) ([]*Attempt, error) {
	var out []*Attempt
	err := s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketDistributions).Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		prefix := attemptPrefix(id)
		c := tx.Bucket(bucketAttempts).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var a Attempt
			if err := decodeGob(v, &a); err != nil {
				return fmt.Errorf("boltstore: decode attempt: %w", err)
			}
			out = append(out, &a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
