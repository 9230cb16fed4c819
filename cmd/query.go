package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/findmyspot/findmyspot/internal/engine"
	"github.com/findmyspot/findmyspot/internal/model"
)

var (
	findAddress     string
	findLat         float64
	findLon         float64
	findRadius      float64
	findPredictions bool
	findHoursAhead  int

	predictZone       string
	predictHour       int
	predictDayType    string
	predictHoursAhead int
	predictSuggest    bool
	predictRadius     float64
	predictMaxResults int

	realtimeZone          string
	realtimeOnlyAvailable bool

	historyDayType string
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find bays, zones and rules near an address or coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		hasLat, hasLon := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
		if hasLat != hasLon {
			return fmt.Errorf("--lat and --lon must be given together")
		}

		env, err := initEngine(cmd.Context(), "query")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.FindByLocation(cmd.Context(), engine.LocationQuery{
			Address:            findAddress,
			Lat:                findLat,
			Lon:                findLon,
			HasCoordinate:      hasLat && hasLon,
			RadiusM:            findRadius,
			IncludePredictions: findPredictions,
			HoursAhead:         findHoursAhead,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, res)
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Forecast availability for a zone and suggest nearby alternatives",
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, err := model.ParseZoneID(predictZone)
		if err != nil {
			return err
		}

		env, err := initEngine(cmd.Context(), "query")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.ForecastZone(cmd.Context(), engine.ZoneQuery{
			Zone:       zone,
			Hour:       predictHour,
			DayType:    model.ParseDayType(predictDayType),
			Weekday:    model.ParseDayOfWeek(predictDayType),
			HoursAhead: predictHoursAhead,
			Suggest:    predictSuggest,
			RadiusM:    predictRadius,
			MaxResults: predictMaxResults,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, res)
	},
}

var realtimeCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Show the latest sensor status of every bay in a zone",
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, err := model.ParseZoneID(realtimeZone)
		if err != nil {
			return err
		}

		env, err := initEngine(cmd.Context(), "query")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.Realtime(zone, realtimeOnlyAvailable)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, res)
	},
}

var zoneCmd = &cobra.Command{
	Use:   "zone",
	Short: "Zone lookups: sign plate rules, streets and hourly history",
}

var zoneRulesCmd = &cobra.Command{
	Use:   "rules <zone>",
	Short: "Show the sign plate rules of a zone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, err := model.ParseZoneID(args[0])
		if err != nil {
			return err
		}

		env, err := initEngine(cmd.Context(), "query")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.ZoneRules(zone)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, res)
	},
}

var zoneStreetCmd = &cobra.Command{
	Use:   "street <name>",
	Short: "List zones linked to a street",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context(), "query")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.ZonesByStreet(args[0])
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, res)
	},
}

var zoneHistoryCmd = &cobra.Command{
	Use:   "history <zone>",
	Short: "Show distinct free bays per local hour for a zone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, err := model.ParseZoneID(args[0])
		if err != nil {
			return err
		}

		env, err := initEngine(cmd.Context(), "query")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.HistoricalByHour(zone, model.ParseDayType(historyDayType))
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, res)
	},
}

func init() {
	findCmd.Flags().StringVar(&findAddress, "address", "", "address to geocode")
	findCmd.Flags().Float64Var(&findLat, "lat", 0, "latitude (with --lon, skips geocoding)")
	findCmd.Flags().Float64Var(&findLon, "lon", 0, "longitude")
	findCmd.Flags().Float64Var(&findRadius, "radius", 0, "search radius in meters (default from config)")
	findCmd.Flags().BoolVar(&findPredictions, "predictions", true, "attach a forecast to each zone")
	findCmd.Flags().IntVar(&findHoursAhead, "hours-ahead", 1, "forecast hours per zone (1-3)")

	predictCmd.Flags().StringVar(&predictZone, "zone", "", "zone number")
	predictCmd.Flags().IntVar(&predictHour, "hour", engine.HourNow, "hour of day 0-23 (default: current hour)")
	predictCmd.Flags().StringVar(&predictDayType, "day-type", "weekday", "weekday, saturday, sunday or a day name")
	predictCmd.Flags().IntVar(&predictHoursAhead, "hours-ahead", 1, "consecutive hours to forecast (1-3)")
	predictCmd.Flags().BoolVar(&predictSuggest, "suggest", true, "rank nearby alternative zones")
	predictCmd.Flags().Float64Var(&predictRadius, "radius", 0, "suggestion radius in meters (default from config)")
	predictCmd.Flags().IntVar(&predictMaxResults, "max-results", 0, "maximum suggestions (default from config)")
	_ = predictCmd.MarkFlagRequired("zone")

	realtimeCmd.Flags().StringVar(&realtimeZone, "zone", "", "zone number")
	realtimeCmd.Flags().BoolVar(&realtimeOnlyAvailable, "only-available", false, "only list unoccupied bays")
	_ = realtimeCmd.MarkFlagRequired("zone")

	zoneHistoryCmd.Flags().StringVar(&historyDayType, "day-type", "weekday", "weekday, saturday or sunday")

	zoneCmd.AddCommand(zoneRulesCmd, zoneStreetCmd, zoneHistoryCmd)
	rootCmd.AddCommand(findCmd, predictCmd, realtimeCmd, zoneCmd)
}
