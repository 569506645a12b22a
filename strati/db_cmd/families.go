package db_cmd

import (
	"github.com/spf13/cobra"

	"github.com/strataledger/strata/blockstore"
	"github.com/strataledger/strata/global"
	"github.com/strataledger/strata/strati/console"
	"github.com/strataledger/strata/util"
)

func initFamiliesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "lists the transaction families registered in the root record",
		Args:  cobra.NoArgs,
		Run:   runFamiliesCmd,
	}
}

func runFamiliesCmd(_ *cobra.Command, _ []string) {
	db := mustOpenDB()
	defer db.Close()

	records := fetchAllRecords(db)
	root, found := records[global.RootBlockID]
	if !found {
		console.Fatalf("no root record: the database has not been initialized")
	}
	names := rootFamilies(root)
	console.Infof("%d families registered in the root record:", len(names))
	for _, name := range names {
		delta := root.Stores[name]
		console.Infof("    %s   initial writes: %d", name, len(delta.Writes))
	}
}

// rootFamilies returns the family names of the root record, sorted
func rootFamilies(root *blockstore.Record) []string {
	return util.KeySet(root.Stores).Ordered(func(name1, name2 string) bool {
		return name1 < name2
	})
}
