package blockstore

import (
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/strataledger/strata/util"
)

// persisted records live in their own key partition of the badger DB

const recordDBPartition = byte(0x01)

func recordDBKey(blockID string) []byte {
	return append([]byte{recordDBPartition}, blockID...)
}

func OpenDB(dirname string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dirname)
	opts.Logger = nil
	return badger.Open(opts)
}

func MustOpenDB(dirname string) *badger.DB {
	ret, err := OpenDB(dirname)
	util.AssertNoError(err)
	return ret
}

func writeRecord(db *badger.DB, rec *Record) error {
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordDBKey(rec.BlockID), rec.Bytes())
	})
}

// fetchRecord returns (nil, false) when no record exists for the block id
func fetchRecord(db *badger.DB, blockID string) (*Record, bool) {
	var data []byte
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordDBKey(blockID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false
	}
	util.AssertNoError(err)

	rec, err := RecordFromBytes(data)
	util.AssertNoError(err)
	return rec, true
}

func hasRecord(db *badger.DB, blockID string) bool {
	_, found := fetchRecord(db, blockID)
	return found
}

// IterateRecords walks all persisted block store records. Order is the byte
// order of block ids, not chain order
func IterateRecords(db *badger.DB, fun func(rec *Record) bool) {
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{recordDBPartition}
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := RecordFromBytes(data)
			if err != nil {
				return err
			}
			if !fun(rec) {
				return nil
			}
		}
		return nil
	})
	util.AssertNoError(err)
}
