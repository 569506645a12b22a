package db_cmd

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strataledger/strata/global"
	"github.com/strataledger/strata/strati/console"
)

func initChainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chain <block id>",
		Short: "walks the ancestry of the block back to the root",
		Args:  cobra.ExactArgs(1),
		Run:   runChainCmd,
	}
}

func runChainCmd(_ *cobra.Command, args []string) {
	db := mustOpenDB()
	defer db.Close()

	records := fetchAllRecords(db)
	if _, found := records[args[0]]; !found {
		console.Fatalf("no persisted record for block '%s'", args[0])
	}

	chain := make([]string, 0)
	for id := args[0]; ; {
		rec, found := records[id]
		if !found {
			console.Fatalf("ancestry broken: no persisted record for block '%s'", id)
		}
		chain = append(chain, id)
		if id == global.RootBlockID {
			break
		}
		id = rec.PreviousBlockID
	}
	console.Infof("chain of %d blocks, tip to root:", len(chain))
	for _, id := range chain {
		rec := records[id]
		families := make([]string, 0, len(rec.Stores))
		writes, tombstones := 0, 0
		for name, delta := range rec.Stores {
			families = append(families, name)
			writes += len(delta.Writes)
			tombstones += len(delta.Deleted)
		}
		sort.Strings(families)
		console.Infof("    %s   families: [%s], writes: %d, tombstones: %d",
			id, strings.Join(families, ", "), writes, tombstones)
	}
}
