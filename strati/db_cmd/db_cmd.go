package db_cmd

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/strataledger/strata/blockstore"
	"github.com/strataledger/strata/global"
	"github.com/strataledger/strata/strati/console"
)

func Init(rootCmd *cobra.Command) {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "specifies subcommands on the persisted block store database",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	dbCmd.AddCommand(
		initInfoCmd(),
		initFamiliesCmd(),
		initDumpCmd(),
		initDeltaCmd(),
		initChainCmd(),
		initTreeCmd(),
	)
	dbCmd.InitDefaultHelpCmd()
	rootCmd.AddCommand(dbCmd)
}

func dbName() string {
	ret := viper.GetString(global.ConfigKeyDBName)
	if ret == "" {
		ret = global.BlockStoreDBName
	}
	return ret
}

func mustOpenDB() *badger.DB {
	name := dbName()
	console.Verbosef("opening block store database '%s'", name)
	db, err := blockstore.OpenDB(name)
	console.AssertNoError(err)
	return db
}

// fetchAllRecords returns all persisted records keyed by block id
func fetchAllRecords(db *badger.DB) map[string]*blockstore.Record {
	ret := make(map[string]*blockstore.Record)
	blockstore.IterateRecords(db, func(rec *blockstore.Record) bool {
		ret[rec.BlockID] = rec
		return true
	})
	return ret
}
