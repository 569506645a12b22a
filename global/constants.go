package global

import "strings"

const (
	// BlockStoreDBName default name of the badger database with persisted block store records
	BlockStoreDBName = "stratadb"

	ConfigKeyDBName    = "db.name"
	ConfigKeyLogLevel  = "log.level"
	ConfigKeyLogOutput = "log.output"
)

// RootBlockID is the reserved identifier of the root (genesis predecessor) block store.
// All ancestor chains terminate at it
var RootBlockID = strings.Repeat("0", 16)
