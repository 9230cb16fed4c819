package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var autocompleteLimit int

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve an address to coordinates",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		env := &engineEnv{}
		defer env.Close()

		gc, err := initGeocoder(cmd.Context(), env)
		if err != nil {
			return err
		}
		res, err := gc.Geocode(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, res)
	},
}

var autocompleteCmd = &cobra.Command{
	Use:   "autocomplete <partial address>",
	Short: "Suggest addresses for a partial query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		env := &engineEnv{}
		defer env.Close()

		gc, err := initGeocoder(cmd.Context(), env)
		if err != nil {
			return err
		}
		res, err := gc.Autocomplete(cmd.Context(), strings.Join(args, " "), autocompleteLimit)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, res)
	},
}

func init() {
	autocompleteCmd.Flags().IntVar(&autocompleteLimit, "limit", 5, "maximum suggestions")
	rootCmd.AddCommand(geocodeCmd, autocompleteCmd)
}
