package db_cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/strataledger/strata/global"
	"github.com/strataledger/strata/strati/console"
	"github.com/strataledger/strata/util"
	"github.com/strataledger/strata/util/testutil"
)

func initInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "displays general information about the block store database",
		Args:  cobra.NoArgs,
		Run:   runInfoCmd,
	}
}

func runInfoCmd(_ *cobra.Command, _ []string) {
	db := mustOpenDB()
	defer db.Close()

	records := fetchAllRecords(db)
	console.Infof("database: %s", dbName())
	console.Infof("persisted block store records: %s", testutil.GoThousands(len(records)))

	root, found := records[global.RootBlockID]
	if !found {
		console.Infof("no root record: the database has not been initialized")
		return
	}
	families := util.Keys(root.Stores)
	slices.Sort(families)
	console.Infof("families registered in the root record: %+v", families)

	// tips are blocks no other record links back to
	tips := util.KeySet(records)
	numWrites := 0
	numDeletes := 0
	for _, rec := range records {
		tips.Remove(rec.PreviousBlockID)
		for _, delta := range rec.Stores {
			numWrites += len(delta.Writes)
			numDeletes += len(delta.Deleted)
		}
	}
	console.Infof("persisted writes: %s, tombstones: %s",
		testutil.GoThousands(numWrites), testutil.GoThousands(numDeletes))
	console.Infof("tip blocks: %+v", tips.Ordered(func(id1, id2 string) bool {
		return id1 < id2
	}))
}
