package db_cmd

import (
	"fmt"
	"os"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/strataledger/strata/global"
	"github.com/strataledger/strata/strati/console"
	"github.com/strataledger/strata/util"
)

func initTreeCmd() *cobra.Command {
	treeCmd := &cobra.Command{
		Use:   "tree",
		Short: "renders the persisted block ancestry tree as a DOT file",
		Args:  cobra.NoArgs,
		Run:   runTreeCmd,
	}
	treeCmd.PersistentFlags().StringP("output", "o", "strata_tree", "output file name without extension")
	err := viper.BindPFlag("output", treeCmd.PersistentFlags().Lookup("output"))
	console.AssertNoError(err)
	return treeCmd
}

var (
	fontsizeAttribute = graph.VertexAttribute("fontsize", "10")

	blockNodeAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("colorscheme", "blues3"),
		graph.VertexAttribute("style", "filled"),
		graph.VertexAttribute("fillcolor", "1"),
	}
	rootNodeAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("colorscheme", "blues3"),
		graph.VertexAttribute("style", "filled"),
		graph.VertexAttribute("fillcolor", "2"),
		graph.VertexAttribute("shape", "box"),
	}
)

func runTreeCmd(_ *cobra.Command, _ []string) {
	db := mustOpenDB()
	defer db.Close()

	records := fetchAllRecords(db)
	if len(records) == 0 {
		console.Fatalf("database '%s' contains no block records", dbName())
	}

	gr := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())
	sortedIDs := util.SortKeys(records, func(id1, id2 string) bool {
		return id1 < id2
	})
	for _, id := range sortedIDs {
		writes := 0
		for _, delta := range records[id].Stores {
			writes += len(delta.Writes)
		}
		attr := blockNodeAttributes
		if id == global.RootBlockID {
			attr = rootNodeAttributes
		}
		attr = append(attr, graph.VertexAttribute("xlabel", fmt.Sprintf("%d", writes)))
		err := gr.AddVertex(id, attr...)
		console.AssertNoError(err)
	}
	for _, id := range sortedIDs {
		if id == global.RootBlockID {
			continue
		}
		_ = gr.AddEdge(records[id].PreviousBlockID, id)
	}

	fname := viper.GetString("output")
	dotFile, err := os.Create(fname + ".gv")
	console.AssertNoError(err)
	defer dotFile.Close()

	err = draw.DOT(gr, dotFile)
	console.AssertNoError(err)
	console.Infof("block tree with %d records saved to '%s.gv'", len(records), fname)
}
