package blockstore

import "errors"

var (
	// ErrUnknownAncestor commit attempted on top of a block id which is neither resident nor persisted
	ErrUnknownAncestor = errors.New("unknown ancestor block")
	// ErrUnknownBlock the chain of persisted records breaks before reaching any known anchor
	ErrUnknownBlock = errors.New("unknown block")
)
