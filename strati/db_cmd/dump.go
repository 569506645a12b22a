package db_cmd

import (
	"golang.org/x/exp/slices"

	"github.com/spf13/cobra"

	"github.com/strataledger/strata/blockstore"
	"github.com/strataledger/strata/global"
	"github.com/strataledger/strata/strati/console"
	"github.com/strataledger/strata/util"
)

var dumpObjectType string

func initDumpCmd() *cobra.Command {
	dumpCmd := &cobra.Command{
		Use:   "dump <block id> <family>",
		Short: "dumps everything visible in the family as of the block",
		Args:  cobra.ExactArgs(2),
		Run:   runDumpCmd,
	}
	dumpCmd.PersistentFlags().StringVarP(&dumpObjectType, "type", "t", "", "filter by object type")
	return dumpCmd
}

func runDumpCmd(_ *cobra.Command, args []string) {
	db := mustOpenDB()
	defer db.Close()

	mgr := blockstore.NewGlobalStoreManager(db, global.NewDefault())

	var objectType []string
	if dumpObjectType != "" {
		objectType = []string{dumpObjectType}
	}
	dump, err := mgr.DumpFamily(args[0], args[1], objectType...)
	console.AssertNoError(err)

	keys := util.Keys(dump)
	slices.Sort(keys)
	console.Infof("block '%s', family '%s': %d objects", args[0], args[1], len(dump))
	for _, k := range keys {
		console.Infof("    %s -> %s", k, dump[k].String())
	}
}
