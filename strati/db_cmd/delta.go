package db_cmd

import (
	"github.com/spf13/cobra"

	"github.com/strataledger/strata/strati/console"
)

func initDeltaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delta <block id> <family>",
		Short: "displays keys changed and deleted by the block in the family",
		Args:  cobra.ExactArgs(2),
		Run:   runDeltaCmd,
	}
}

func runDeltaCmd(_ *cobra.Command, args []string) {
	db := mustOpenDB()
	defer db.Close()

	records := fetchAllRecords(db)
	rec, found := records[args[0]]
	if !found {
		console.Fatalf("no persisted record for block '%s'", args[0])
	}
	delta, found := rec.Stores[args[1]]
	if !found {
		console.Fatalf("block '%s' has no family '%s'", args[0], args[1])
	}
	console.Infof("block '%s', family '%s': %d writes, %d tombstones",
		args[0], args[1], len(delta.Writes), len(delta.Deleted))
	console.Infof("%s", delta.Lines("    ").String())
}
