package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c-daly/logos/internal/hcg"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe backend health once and report the verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		engine, cleanup, err := connectEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		status := hcg.NewHealthMonitor(engine, log).Check(ctx)

		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if status.IsUnhealthy() {
			return fmt.Errorf("backend unhealthy: %s", status.LastError)
		}
		return nil
	},
}
