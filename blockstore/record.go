package blockstore

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/strataledger/strata/journal"
	"github.com/strataledger/strata/util"
)

// Record is the durable serialization of one committed block store: the block
// linkage plus the per-family deltas. Only deltas are persisted, never the
// composed state; durability mirrors the in-memory chain exactly
type Record struct {
	BlockID         string                    `msgpack:"block_id"`
	PreviousBlockID string                    `msgpack:"previous_block_id"`
	Stores          map[string]*journal.Delta `msgpack:"stores"`
}

// Record captures the bundle's linkage and per-family deltas for persistence
func (b *BlockStore) Record() *Record {
	stores := make(map[string]*journal.Delta, len(b.stores))
	for name, store := range b.stores {
		stores[name] = store.Delta()
	}
	return &Record{
		BlockID:         b.blockID,
		PreviousBlockID: b.prevID,
		Stores:          stores,
	}
}

// Bytes encodes the record with sorted map keys. Some transaction families
// hash serialized store content, so the encoding must be byte-stable across
// processes: equal records always produce equal bytes
func (r *Record) Bytes() []byte {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(r)
	util.AssertNoError(err)
	return buf.Bytes()
}

func RecordFromBytes(data []byte) (*Record, error) {
	ret := &Record{}
	if err := msgpack.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("block store record: %w", err)
	}
	if ret.BlockID == "" {
		return nil, fmt.Errorf("block store record: empty block id")
	}
	return ret, nil
}
