package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c-daly/logos/internal/types"
)

var snapshotKind string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Dump a bounded snapshot of the graph as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var kind types.NodeKind
		if snapshotKind != "" {
			parsed, err := types.ParseNodeKind(snapshotKind)
			if err != nil {
				return err
			}
			kind = parsed
		}

		engine, cleanup, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		snapshot, err := engine.GetGraphSnapshot(ctx, kind)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		log.Info(ctx, "snapshot complete",
			"nodes", len(snapshot.Nodes), "edges", len(snapshot.Edges))
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotKind, "kind", "k", "", "Restrict to one node kind: entity, concept, state, process")
}
