package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Download and inspect the reference datasets",
}

var datasetsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download configured dataset sources into the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sync"); err != nil {
			return err
		}
		syncer := initSyncer()

		results, err := syncer.Sync(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "datasets fetch")
		}

		changed := 0
		for _, r := range results {
			if r.Changed {
				changed++
			}
		}
		zap.L().Info("datasets fetched", zap.Int("sources", len(results)), zap.Int("changed", changed))
		return writeOutput(cmd.OutOrStdout(), outputFormat, results)
	},
}

var datasetsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Load the datasets and report row counts, baseline and scorer state",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context(), "query")
		if err != nil {
			return err
		}
		defer env.Close()

		return writeOutput(cmd.OutOrStdout(), outputFormat, env.Engine.Health())
	},
}

func init() {
	datasetsCmd.AddCommand(datasetsFetchCmd, datasetsStatusCmd)
	rootCmd.AddCommand(datasetsCmd)
}
